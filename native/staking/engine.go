package staking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stakeledger/core/events"
	"stakeledger/core/types"
)

// Engine applies staking operations against a Store. Every mutating call runs
// under a single lock, stages its writes and commits them as one batch; events
// and outbound transfers are released only after a successful commit.
type Engine struct {
	mu         sync.Mutex
	store      Store
	emitter    events.Emitter
	transferer Transferer
	nowFn      func() int64
	params     Params
}

// NewEngine validates params and constructs an engine with default dependencies.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}, nil
}

// SetStore configures the persistence backend.
func (e *Engine) SetStore(store Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = store
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTransferer configures the outbound transfer initiator. Without one,
// transfers stay pending until retried.
func (e *Engine) SetTransferer(t Transferer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transferer = t
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns the engine policy.
func (e *Engine) Params() Params { return e.params }

// WeightFor exposes the configured weight table.
func (e *Engine) WeightFor(elapsed uint64) uint64 { return e.params.Weights.WeightFor(elapsed) }

// now reads the time source. The caller must hold e.mu.
func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) requireOperator(caller [20]byte) error {
	if isZeroAddress(caller) || caller != e.params.Operator {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) requireLedger(caller [20]byte) error {
	if isZeroAddress(caller) || caller != e.params.TokenLedger {
		return ErrUnauthorized
	}
	return nil
}

// update runs fn against a fresh transaction and commits the result. The
// caller must hold e.mu.
func (e *Engine) update(fn func(tx *txn) error) (*txn, error) {
	if e.store == nil {
		return nil, errNilStore
	}
	tx := newTxn(e.store)
	if err := fn(tx); err != nil {
		return nil, err
	}
	if err := e.store.Commit(tx.batch()); err != nil {
		return nil, fmt.Errorf("staking engine: commit: %w", err)
	}
	for _, evt := range tx.events {
		e.emit(evt)
	}
	return tx, nil
}

// execute wraps update with locking and post-commit transfer dispatch.
func (e *Engine) execute(ctx context.Context, fn func(tx *txn) error) error {
	e.mu.Lock()
	tx, err := e.update(fn)
	transferer := e.transferer
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.dispatch(ctx, transferer, tx.dispatch)
	return nil
}

// view runs a read-only function under the engine lock.
func (e *Engine) view(fn func(store Store) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return errNilStore
	}
	return fn(e.store)
}

func (e *Engine) dispatch(ctx context.Context, transferer Transferer, transfers []*PendingTransfer) {
	if transferer == nil || len(transfers) == 0 {
		return
	}
	for _, t := range transfers {
		if err := transferer.Transfer(ctx, t.Clone()); err != nil {
			e.recordDispatchError(t.ID, err)
		}
	}
}

func (e *Engine) recordDispatchError(id uint64, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Best effort; the transfer remains pending regardless.
	_, _ = e.update(func(tx *txn) error {
		t, ok, err := tx.transfer(id)
		if err != nil || !ok {
			return err
		}
		t.LastError = cause.Error()
		t.UpdatedAt = e.now()
		tx.emit(TransferDispatchErrorEvent(t, cause))
		return nil
	})
}
