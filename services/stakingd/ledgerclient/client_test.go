package ledgerclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"stakeledger/crypto"
	"stakeledger/native/staking"
)

func TestTransferPostsSignedRequest(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := key.PubKey().Address().Bytes20()
	now := time.Unix(1_700_000_000, 0)

	var got TransferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, transfersPath, r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		verifier := Verifier{Expected: signer, Now: func() time.Time { return now }}
		require.NoError(t, verifier.Verify(r.Context(), HeadersFrom(r.Header), r.Method, r.URL.Path, body))
		require.NotEmpty(t, r.Header.Get(NonceHeader))
		require.Equal(t, "stakeledger-transfer-9", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL + "/", Signer: key, Memo: "stakeledger", Now: func() time.Time { return now }})
	require.NoError(t, err)

	var account [20]byte
	account[19] = 7
	err = client.Transfer(context.Background(), &staking.PendingTransfer{
		ID:       9,
		Account:  account,
		Kind:     staking.TransferUnstake,
		RecordID: 4,
		Amount:   uint256.NewInt(1250),
		Attempts: 2,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(9), got.ID)
	require.Equal(t, "1250", got.Amount)
	require.Equal(t, "unstake", got.Kind)
	require.Equal(t, crypto.FormatAddress(account), got.To)
	require.Equal(t, uint32(2), got.Attempt)
}

func TestTransferSurfacesRejection(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient treasury", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL, Signer: key})
	require.NoError(t, err)
	err = client.Transfer(context.Background(), &staking.PendingTransfer{ID: 1, Amount: uint256.NewInt(1)})
	require.ErrorContains(t, err, "insufficient treasury")

	require.Error(t, client.Transfer(context.Background(), &staking.PendingTransfer{ID: 2}))
}

func TestVerifierRejectsWrongSignerAndStaleTimestamp(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"amount":"5"}`)
	ctx := context.Background()

	auth, err := Sign(other, now.Unix(), http.MethodPost, "/v1/ledger/notify", body)
	require.NoError(t, err)
	v := Verifier{Expected: key.PubKey().Address().Bytes20(), Now: func() time.Time { return now }}
	require.ErrorIs(t, v.Verify(ctx, auth, http.MethodPost, "/v1/ledger/notify", body), ErrSignerMismatch)

	auth, err = Sign(key, now.Add(-time.Hour).Unix(), http.MethodPost, "/v1/ledger/notify", body)
	require.NoError(t, err)
	require.ErrorIs(t, v.Verify(ctx, auth, http.MethodPost, "/v1/ledger/notify", body), ErrStaleSignature)

	auth, err = Sign(key, now.Unix(), http.MethodPost, "/v1/ledger/notify", body)
	require.NoError(t, err)
	require.NoError(t, v.Verify(ctx, auth, http.MethodPost, "/v1/ledger/notify", body))
	require.Error(t, v.Verify(ctx, auth, http.MethodPost, "/v1/ledger/fail", body))

	missing := auth
	missing.Signature = ""
	require.ErrorIs(t, v.Verify(ctx, missing, http.MethodPost, "/", body), ErrMissingSignature)
	missing = auth
	missing.Nonce = ""
	require.ErrorIs(t, v.Verify(ctx, missing, http.MethodPost, "/v1/ledger/notify", body), ErrMissingSignature)

	swapped := auth
	swapped.Nonce = "another-nonce"
	require.ErrorIs(t, v.Verify(ctx, swapped, http.MethodPost, "/v1/ledger/notify", body), ErrSignerMismatch)
}

func TestVerifierRejectsReplayedNonce(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"sender":"0x01","amount":"500","message":"stake"}`)
	ctx := context.Background()

	v := Verifier{
		Expected: key.PubKey().Address().Bytes20(),
		Now:      func() time.Time { return now },
		Nonces:   NewNonceCache(DefaultSkew, 0, nil),
	}
	auth, err := Sign(key, now.Unix(), http.MethodPost, "/v1/ledger/notify", body)
	require.NoError(t, err)
	require.NoError(t, v.Verify(ctx, auth, http.MethodPost, "/v1/ledger/notify", body))

	now = now.Add(4 * time.Minute)
	require.ErrorIs(t, v.Verify(ctx, auth, http.MethodPost, "/v1/ledger/notify", body), ErrReplayedNonce)

	fresh, err := Sign(key, now.Unix(), http.MethodPost, "/v1/ledger/notify", body)
	require.NoError(t, err)
	require.NoError(t, v.Verify(ctx, fresh, http.MethodPost, "/v1/ledger/notify", body))
}

type memoryNonces struct {
	seen   map[string]time.Time
	pruned int
}

func (m *memoryNonces) EnsureNonce(_ context.Context, nonce string, observedAt time.Time) (bool, error) {
	if _, ok := m.seen[nonce]; ok {
		return true, nil
	}
	m.seen[nonce] = observedAt
	return false, nil
}

func (m *memoryNonces) PruneNonces(_ context.Context, cutoff time.Time) error {
	m.pruned++
	for nonce, at := range m.seen {
		if !at.After(cutoff) {
			delete(m.seen, nonce)
		}
	}
	return nil
}

func TestNonceCacheConsultsPersistenceAfterEviction(t *testing.T) {
	store := &memoryNonces{seen: map[string]time.Time{}}
	cache := NewNonceCache(time.Minute, 2, store)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for _, nonce := range []string{"a", "b", "c"} {
		fresh, err := cache.Register(ctx, nonce, now)
		require.NoError(t, err)
		require.True(t, fresh)
	}
	require.Equal(t, 2, cache.Len())

	fresh, err := cache.Register(ctx, "a", now)
	require.NoError(t, err)
	require.False(t, fresh, "evicted nonce must still be caught by persistence")

	later := now.Add(3 * time.Minute)
	fresh, err = cache.Register(ctx, "a", later)
	require.NoError(t, err)
	require.True(t, fresh, "nonce outside the window is accepted again")
	require.Equal(t, 2, store.pruned)
}
