package recon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stakeledger/crypto"
	"stakeledger/native/staking"
	"stakeledger/observability/metrics"
)

// Engine is the subset of the staking engine the reconciler drives.
type Engine interface {
	StaleTransfers(cutoff int64, limit int) ([]*staking.PendingTransfer, error)
	RetryTransfer(ctx context.Context, caller [20]byte, id uint64) (*staking.PendingTransfer, error)
	PendingTransfers(after uint64, limit int) ([]*staking.PendingTransfer, error)
	Pool() (*staking.RewardPool, error)
}

// Config captures the dependencies required to construct a Reconciler.
type Config struct {
	Engine     Engine
	Operator   [20]byte
	Interval   time.Duration
	StaleAfter time.Duration
	Batch      int
	Now        func() time.Time
	Logger     *slog.Logger
}

// Result summarises one reconciliation pass.
type Result struct {
	Stale   int
	Retried int
	Errors  int
	Pending int
}

// Reconciler re-initiates transfers the token ledger has not settled within
// StaleAfter and refreshes the ledger gauges.
type Reconciler struct {
	engine     Engine
	operator   [20]byte
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	now        func() time.Time
	logger     *slog.Logger
}

// New builds a configured reconciler.
func New(cfg Config) (*Reconciler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("recon: engine is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	batch := cfg.Batch
	if batch <= 0 {
		batch = 100
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		engine:     cfg.Engine,
		operator:   cfg.Operator,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      batch,
		now:        now,
		logger:     logger,
	}, nil
}

// Run executes passes on the configured interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("reconcile pass failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce retries every stale transfer once.
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	cutoff := r.now().Add(-r.staleAfter).Unix()
	stale, err := r.engine.StaleTransfers(cutoff, r.batch)
	if err != nil {
		metrics.Staking().ObserveReconcile("error")
		return res, err
	}
	res.Stale = len(stale)
	for _, t := range stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := r.engine.RetryTransfer(ctx, r.operator, t.ID); err != nil {
			res.Errors++
			r.logger.Warn("transfer retry rejected",
				slog.Uint64("transfer", t.ID),
				slog.String("account", crypto.FormatAddress(t.Account)),
				slog.Any("error", err))
			continue
		}
		res.Retried++
	}
	pending, err := r.countPending()
	if err != nil {
		metrics.Staking().ObserveReconcile("error")
		return res, err
	}
	res.Pending = pending
	if err := r.publishGauges(pending); err != nil {
		return res, err
	}
	outcome := "ok"
	if res.Errors > 0 {
		outcome = "partial"
	}
	metrics.Staking().ObserveReconcile(outcome)
	if res.Stale > 0 {
		r.logger.Info("reconcile pass complete",
			slog.Int("stale", res.Stale),
			slog.Int("retried", res.Retried),
			slog.Int("errors", res.Errors))
	}
	return res, nil
}

func (r *Reconciler) countPending() (int, error) {
	var (
		after uint64
		total int
	)
	for {
		page, err := r.engine.PendingTransfers(after, staking.DefaultRoundBatch)
		if err != nil {
			return 0, err
		}
		total += len(page)
		if len(page) < staking.DefaultRoundBatch {
			return total, nil
		}
		after = page[len(page)-1].ID
	}
}

func (r *Reconciler) publishGauges(pending int) error {
	pool, err := r.engine.Pool()
	if err != nil {
		return err
	}
	metrics.Staking().SetLedger(pool.Balance, pool.TotalStaked, pending)
	return nil
}
