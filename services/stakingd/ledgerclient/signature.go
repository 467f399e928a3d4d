package ledgerclient

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"stakeledger/crypto"
)

const (
	// SignatureHeader carries the hex-encoded recoverable signature.
	SignatureHeader = "X-Ledger-Signature"
	// TimestampHeader carries the unix timestamp bound into the signature.
	TimestampHeader = "X-Ledger-Timestamp"
	// NonceHeader carries the single-use value bound into the signature.
	NonceHeader = "X-Ledger-Nonce"

	// DefaultSkew bounds how far a signed timestamp may drift from local time.
	DefaultSkew = 5 * time.Minute

	maxNonceLength = 128
)

var (
	ErrMissingSignature = errors.New("ledger signature: missing headers")
	ErrStaleSignature   = errors.New("ledger signature: timestamp outside window")
	ErrSignerMismatch   = errors.New("ledger signature: unexpected signer")
	ErrReplayedNonce    = errors.New("ledger signature: nonce already used")
)

// Headers are the authentication values attached to a signed request.
type Headers struct {
	Signature string
	Timestamp string
	Nonce     string
}

// HeadersFrom reads the authentication headers of a request.
func HeadersFrom(h http.Header) Headers {
	return Headers{
		Signature: h.Get(SignatureHeader),
		Timestamp: h.Get(TimestampHeader),
		Nonce:     h.Get(NonceHeader),
	}
}

// Apply sets the authentication headers on h.
func (s Headers) Apply(h http.Header) {
	h.Set(SignatureHeader, s.Signature)
	h.Set(TimestampHeader, s.Timestamp)
	h.Set(NonceHeader, s.Nonce)
}

// SigningPayload binds the timestamp, nonce, method and path to the request body.
func SigningPayload(timestamp int64, nonce, method, path string, body []byte) []byte {
	prefix := fmt.Sprintf("%d\n%s\n%s\n%s\n", timestamp, nonce, strings.ToUpper(method), path)
	out := make([]byte, 0, len(prefix)+len(body))
	out = append(out, prefix...)
	return append(out, body...)
}

// Sign authenticates a request with a fresh random nonce.
func Sign(key *crypto.PrivateKey, timestamp int64, method, path string, body []byte) (Headers, error) {
	return SignWithNonce(key, timestamp, uuid.NewString(), method, path, body)
}

// SignWithNonce authenticates a request with a caller supplied nonce.
func SignWithNonce(key *crypto.PrivateKey, timestamp int64, nonce, method, path string, body []byte) (Headers, error) {
	if strings.TrimSpace(nonce) == "" {
		return Headers{}, errors.New("ledger signature: empty nonce")
	}
	sig, err := key.Sign(SigningPayload(timestamp, nonce, method, path, body))
	if err != nil {
		return Headers{}, err
	}
	return Headers{
		Signature: hex.EncodeToString(sig),
		Timestamp: strconv.FormatInt(timestamp, 10),
		Nonce:     nonce,
	}, nil
}

// Verifier checks inbound signatures against a single expected signer. With a
// nonce cache set, each nonce is accepted once.
type Verifier struct {
	Expected [20]byte
	Skew     time.Duration
	Now      func() time.Time
	Nonces   *NonceCache
}

// Verify recovers the signer of a request, checks it against the expected
// address and the timestamp window, then consumes the nonce.
func (v Verifier) Verify(ctx context.Context, h Headers, method, path string, body []byte) error {
	signature := strings.TrimPrefix(strings.TrimSpace(h.Signature), "0x")
	timestamp := strings.TrimSpace(h.Timestamp)
	nonce := strings.TrimSpace(h.Nonce)
	if signature == "" || timestamp == "" || nonce == "" {
		return ErrMissingSignature
	}
	if len(nonce) > maxNonceLength {
		return fmt.Errorf("ledger signature: nonce longer than %d bytes", maxNonceLength)
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("ledger signature: invalid timestamp: %w", err)
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	current := now()
	drift := current.Sub(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > v.skew() {
		return ErrStaleSignature
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("ledger signature: decode: %w", err)
	}
	signer, err := crypto.RecoverSigner(SigningPayload(ts, nonce, method, path, body), sig)
	if err != nil {
		return fmt.Errorf("ledger signature: recover: %w", err)
	}
	if signer != v.Expected {
		return ErrSignerMismatch
	}
	if v.Nonces == nil {
		return nil
	}
	fresh, err := v.Nonces.Register(ctx, nonce, current)
	if err != nil {
		return fmt.Errorf("ledger signature: register nonce: %w", err)
	}
	if !fresh {
		return ErrReplayedNonce
	}
	return nil
}

func (v Verifier) skew() time.Duration {
	if v.Skew <= 0 {
		return DefaultSkew
	}
	return v.Skew
}
