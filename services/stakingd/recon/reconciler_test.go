package recon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"stakeledger/native/staking"
)

type fakeEngine struct {
	pending  []*staking.PendingTransfer
	retried  []uint64
	reject   map[uint64]error
	lastCut  int64
	caller   [20]byte
	staleErr error
}

func (f *fakeEngine) StaleTransfers(cutoff int64, limit int) ([]*staking.PendingTransfer, error) {
	f.lastCut = cutoff
	if f.staleErr != nil {
		return nil, f.staleErr
	}
	var out []*staking.PendingTransfer
	for _, t := range f.pending {
		if t.UpdatedAt <= cutoff {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEngine) RetryTransfer(_ context.Context, caller [20]byte, id uint64) (*staking.PendingTransfer, error) {
	f.caller = caller
	if err := f.reject[id]; err != nil {
		return nil, err
	}
	f.retried = append(f.retried, id)
	return &staking.PendingTransfer{ID: id}, nil
}

func (f *fakeEngine) PendingTransfers(after uint64, limit int) ([]*staking.PendingTransfer, error) {
	var out []*staking.PendingTransfer
	for _, t := range f.pending {
		if t.ID > after {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeEngine) Pool() (*staking.RewardPool, error) {
	return &staking.RewardPool{Balance: uint256.NewInt(10), TotalStaked: uint256.NewInt(20)}, nil
}

func TestRunOnceRetriesStaleTransfers(t *testing.T) {
	now := time.Unix(10_000, 0)
	engine := &fakeEngine{
		pending: []*staking.PendingTransfer{
			{ID: 1, UpdatedAt: 1_000},
			{ID: 2, UpdatedAt: 9_900},
			{ID: 3, UpdatedAt: 2_000},
		},
		reject: map[uint64]error{3: staking.ErrTransferNotFound},
	}
	var operator [20]byte
	operator[0] = 0xAA
	r, err := New(Config{
		Engine:     engine,
		Operator:   operator,
		StaleAfter: 10 * time.Minute,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, now.Add(-10*time.Minute).Unix(), engine.lastCut)
	require.Equal(t, Result{Stale: 2, Retried: 1, Errors: 1, Pending: 3}, res)
	require.Equal(t, []uint64{1}, engine.retried)
	require.Equal(t, operator, engine.caller)
}

func TestRunOnceSurfacesEngineErrors(t *testing.T) {
	engine := &fakeEngine{staleErr: errors.New("store offline")}
	r, err := New(Config{Engine: engine})
	require.NoError(t, err)
	_, err = r.RunOnce(context.Background())
	require.ErrorContains(t, err, "store offline")
}

func TestRunStopsOnCancel(t *testing.T) {
	r, err := New(Config{Engine: &fakeEngine{}, Interval: time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("reconciler did not stop")
	}
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
