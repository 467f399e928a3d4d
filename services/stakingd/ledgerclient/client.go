package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stakeledger/crypto"
	"stakeledger/native/staking"
)

const transfersPath = "/v1/transfers"

// TransferRequest is the body posted to the token ledger.
type TransferRequest struct {
	ID       uint64 `json:"id"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Kind     string `json:"kind"`
	RecordID uint64 `json:"recordId"`
	Attempt  uint32 `json:"attempt"`
	Memo     string `json:"memo,omitempty"`
}

// Config captures client settings.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Memo     string
	Signer   *crypto.PrivateKey
	Client   *http.Client
	Logger   *slog.Logger
	Now      func() time.Time
}

// Client initiates outbound token transfers over HTTP. It implements
// staking.Transferer; confirmation arrives later through the ledger callbacks.
type Client struct {
	endpoint string
	memo     string
	signer   *crypto.PrivateKey
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

var _ staking.Transferer = (*Client)(nil)

// New validates the configuration and builds a client.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("ledgerclient: endpoint required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("ledgerclient: signer required")
	}
	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{endpoint: endpoint, memo: cfg.Memo, signer: cfg.Signer, http: httpClient, logger: logger, now: now}, nil
}

// Transfer posts the pending transfer to the ledger. A 2xx response means the
// ledger accepted the instruction, not that it settled.
func (c *Client) Transfer(ctx context.Context, t *staking.PendingTransfer) error {
	if t == nil {
		return errors.New("ledgerclient: nil transfer")
	}
	if t.Amount == nil {
		return fmt.Errorf("ledgerclient: transfer %d has no amount", t.ID)
	}
	body, err := json.Marshal(TransferRequest{
		ID:       t.ID,
		To:       crypto.FormatAddress(t.Account),
		Amount:   staking.FormatAmount(t.Amount),
		Kind:     t.Kind.String(),
		RecordID: t.RecordID,
		Attempt:  t.Attempts,
		Memo:     c.memo,
	})
	if err != nil {
		return fmt.Errorf("ledgerclient: encode: %w", err)
	}
	auth, err := Sign(c.signer, c.now().Unix(), http.MethodPost, transfersPath, body)
	if err != nil {
		return fmt.Errorf("ledgerclient: sign: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+transfersPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledgerclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("stakeledger-transfer-%d", t.ID))
	auth.Apply(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledgerclient: post transfer %d: %w", t.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledgerclient: transfer %d rejected: %s: %s", t.ID, resp.Status, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.logger.Debug("transfer initiated",
		slog.Uint64("transfer", t.ID),
		slog.String("kind", t.Kind.String()),
		slog.Int("status", resp.StatusCode))
	return nil
}
