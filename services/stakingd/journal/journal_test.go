package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stakeledger/core/types"
	"stakeledger/native/staking"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("sqlite", filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalPersistsEventsInOrder(t *testing.T) {
	j := openTestJournal(t)
	j.Emit(staking.WrapEvent(&types.Event{Type: staking.EventTypePoolFunded, Attributes: map[string]string{"amount": "10"}}))
	j.Emit(staking.WrapEvent(&types.Event{Type: staking.EventTypeStakeCreated, Attributes: map[string]string{"account": "stake1abc", "amount": "5"}}))
	j.Emit(staking.WrapEvent(nil))

	all, err := j.Events(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, uint64(1), all[0].Sequence)
	require.Equal(t, staking.EventTypeStakeCreated, all[1].Type)

	attrs, err := all[1].Decode()
	require.NoError(t, err)
	require.Equal(t, "5", attrs["amount"])

	byAccount, err := j.Events(context.Background(), Query{Account: "stake1abc"})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)

	after, err := j.Events(context.Background(), Query{After: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
}

func TestJournalResumesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open("sqlite", path, nil)
	require.NoError(t, err)
	j.Emit(staking.WrapEvent(&types.Event{Type: "a"}))
	require.NoError(t, j.Close())

	reopened, err := Open("sqlite", path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	reopened.Emit(staking.WrapEvent(&types.Event{Type: "b"}))

	all, err := reopened.Events(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, uint64(2), all[1].Sequence)
}

func TestIdempotencyRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	_, err := j.LookupIdempotency(ctx, "k1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, j.SaveIdempotency(ctx, &IdempotencyKey{Key: "k1", Method: "POST", Path: "/v1/records/1/claim", Status: 200, Response: `{"ok":true}`}))
	got, err := j.LookupIdempotency(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, 200, got.Status)
	require.NotEmpty(t, got.RequestID)

	require.Error(t, j.SaveIdempotency(ctx, &IdempotencyKey{Key: "k1"}))
}

func TestLedgerNoncesAreSingleUse(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	existed, err := j.EnsureNonce(ctx, "n-1", observed)
	require.NoError(t, err)
	require.False(t, existed)
	existed, err = j.EnsureNonce(ctx, "n-1", observed.Add(time.Second))
	require.NoError(t, err)
	require.True(t, existed)

	require.NoError(t, j.PruneNonces(ctx, observed))
	existed, err = j.EnsureNonce(ctx, "n-1", observed.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, existed)

	_, err = j.EnsureNonce(ctx, " ", observed)
	require.Error(t, err)
}

func TestExportsListNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	_, err := j.RecordExport(ctx, "accounts", "/tmp/a.parquet", "aa", 3)
	require.NoError(t, err)
	_, err = j.RecordExport(ctx, "settlements", "/tmp/s.parquet", "bb", 1)
	require.NoError(t, err)

	out, err := j.Exports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", nil)
	require.Error(t, err)
}
