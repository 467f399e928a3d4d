package staking

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	core "stakeledger/native/staking"
	"stakeledger/storage"
)

const day = 24 * 60 * 60

func testAddr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

var (
	operator = testAddr(0xA0)
	ledger   = testAddr(0xB0)
	alice    = testAddr(0x01)
	bob      = testAddr(0x02)
)

type noopTransferer struct{}

func (noopTransferer) Transfer(context.Context, *core.PendingTransfer) error { return nil }

func newEngine(t *testing.T, store core.Store, now *int64) *core.Engine {
	t.Helper()
	params := core.DefaultParams()
	params.Operator = operator
	params.TokenLedger = ledger
	params.SettlementHistory = 2
	engine, err := core.NewEngine(params)
	require.NoError(t, err)
	engine.SetStore(store)
	engine.SetTransferer(noopTransferer{})
	engine.SetNowFunc(func() int64 { return *now })
	return engine
}

// exerciseStore drives a full lifecycle and leaves an open round, a pending
// transfer and pruned settlement history behind.
func exerciseStore(t *testing.T, store core.Store) {
	t.Helper()
	now := int64(1_700_000_000)
	engine := newEngine(t, store, &now)
	ctx := context.Background()

	a1, err := engine.AppendStake(alice, uint256.NewInt(500), 0)
	require.NoError(t, err)
	_, err = engine.AppendStake(alice, uint256.NewInt(250), 60*day)
	require.NoError(t, err)
	_, err = engine.AppendStake(bob, uint256.NewInt(1000), 0)
	require.NoError(t, err)
	require.NoError(t, engine.AssignTier(operator, bob, core.TierQueen))
	_, err = engine.Fund(operator, uint256.NewInt(1_000_000))
	require.NoError(t, err)
	_, err = engine.Fund(operator, uint256.NewInt(5))
	require.NoError(t, err)

	now += 31 * day
	for i := 0; i < 3; i++ {
		_, err = engine.Distribute(operator, uint256.NewInt(1000))
		require.NoError(t, err)
	}
	claim, err := engine.Claim(ctx, alice, a1.ID)
	require.NoError(t, err)

	_, err = engine.BeginDistribution(operator, uint256.NewInt(10))
	require.NoError(t, err)
	_, err = engine.StepDistribution(operator, 1)
	require.NoError(t, err)

	accounts, err := store.Accounts([20]byte{}, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, alice, accounts[0].Address)
	require.Equal(t, bob, accounts[1].Address)
	require.Equal(t, core.TierQueen, accounts[1].Tier)

	page, err := store.Accounts(alice, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, bob, page[0].Address)

	pool, ok, err := store.Pool()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, pool.Round)
	require.Equal(t, core.PhaseTally, pool.Round.Phase)
	require.Equal(t, alice, pool.Round.Cursor)
	require.Equal(t, "1750", pool.TotalStaked.Dec())
	require.Equal(t, "997005", pool.Balance.Dec())

	funding, err := store.FundingLog(2, 0)
	require.NoError(t, err)
	require.Len(t, funding, 1)
	require.Equal(t, "5", funding[0].Amount.Dec())

	transfer, ok, err := store.Transfer(claim.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, claim.Amount.Dec(), transfer.Amount.Dec())
	require.Equal(t, core.TransferReward, transfer.Kind)
	require.True(t, transfer.FirstClaim)

	pending, err := store.Transfers(0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	pending, err = store.Transfers(claim.ID, 0)
	require.NoError(t, err)
	require.Empty(t, pending)

	settlements, err := store.Settlements(0)
	require.NoError(t, err)
	require.Len(t, settlements, 2)
	require.Equal(t, uint64(3), settlements[0].Round)
	require.Equal(t, uint64(2), settlements[1].Round)
	require.Len(t, settlements[0].Payouts, 2)
}

func TestKVStoreOverMemDB(t *testing.T) {
	exerciseStore(t, NewKVStore(storage.NewMemDB()))
}

func TestKVStoreOverLevelDBSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(path)
	require.NoError(t, err)
	exerciseStore(t, NewKVStore(db))
	require.NoError(t, db.Close())

	db, err = storage.NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	store := NewKVStore(db)
	pool, ok, err := store.Pool()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1750", pool.TotalStaked.Dec())
	require.NotNil(t, pool.Round)
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := OpenBoltStore(path, nil)
	require.NoError(t, err)
	exerciseStore(t, store)
	require.NoError(t, store.Close())

	store, err = OpenBoltStore(path, nil)
	require.NoError(t, err)
	defer store.Close()
	acc, ok, err := store.Account(alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, acc.Records, 2)
	require.True(t, acc.Records[0].Claimed)
	require.NotZero(t, acc.Records[0].PendingTransfer)
}

func TestCodecPreservesUnstakeSnapshot(t *testing.T) {
	transfer := &core.PendingTransfer{
		ID:        9,
		Account:   alice,
		Kind:      core.TransferUnstake,
		RecordID:  4,
		Amount:    uint256.NewInt(650),
		Principal: uint256.NewInt(400),
		Rewards:   uint256.NewInt(250),
		Record: &core.StakeRecord{
			ID:              4,
			Amount:          uint256.NewInt(400),
			StartTime:       1_700_000_000,
			LockupDuration:  30 * day,
			WeightBps:       12_500,
			CreditedRewards: uint256.NewInt(250),
			Claimed:         true,
		},
		Attempts:  2,
		CreatedAt: 1_700_000_100,
		UpdatedAt: 1_700_000_200,
		LastError: "timeout",
	}
	data, err := EncodeTransfer(transfer)
	require.NoError(t, err)
	decoded, err := DecodeTransfer(data)
	require.NoError(t, err)
	require.Equal(t, transfer, decoded)

	transfer.Record = nil
	data, err = EncodeTransfer(transfer)
	require.NoError(t, err)
	decoded, err = DecodeTransfer(data)
	require.NoError(t, err)
	require.Nil(t, decoded.Record)
}

func TestCodecRejectsOversizedAmounts(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	data, err := EncodeFunding(&core.FundingRecord{Sequence: 1, Funder: operator, Amount: huge})
	require.NoError(t, err)
	_, err = DecodeFunding(data)
	require.ErrorIs(t, err, core.ErrArithmeticOverflow)
}
