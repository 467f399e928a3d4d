package staking

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/holiman/uint256"

	"stakeledger/core/events"
)

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) count(eventType string) int {
	n := 0
	for _, evt := range c.events {
		if evt.EventType() == eventType {
			n++
		}
	}
	return n
}

type recordingTransferer struct {
	mu   sync.Mutex
	sent []*PendingTransfer
	err  error
}

func (r *recordingTransferer) Transfer(_ context.Context, t *PendingTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, t)
	return r.err
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

var (
	operator   = testAddr(0xA0)
	ledgerAddr = testAddr(0xB0)
	alice      = testAddr(0x01)
	bob        = testAddr(0x02)
	carol      = testAddr(0x03)
)

func amt(v uint64) *uint256.Int { return uint256.NewInt(v) }

type harness struct {
	engine     *Engine
	store      *MemoryStore
	emitter    *captureEmitter
	transferer *recordingTransferer
	now        int64
}

func newHarness(t *testing.T, mutate ...func(*Params)) *harness {
	t.Helper()
	params := DefaultParams()
	params.Operator = operator
	params.TokenLedger = ledgerAddr
	for _, fn := range mutate {
		fn(&params)
	}
	engine, err := NewEngine(params)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h := &harness{
		engine:     engine,
		store:      NewMemoryStore(),
		emitter:    &captureEmitter{},
		transferer: &recordingTransferer{},
		now:        1_700_000_000,
	}
	engine.SetStore(h.store)
	engine.SetEmitter(h.emitter)
	engine.SetTransferer(h.transferer)
	engine.SetNowFunc(func() int64 { return h.now })
	return h
}

func (h *harness) advance(seconds uint64) { h.now += int64(seconds) }

func (h *harness) stake(t *testing.T, who [20]byte, amount uint64) *StakeRecord {
	t.Helper()
	rec, err := h.engine.AppendStake(who, amt(amount), 0)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	return rec
}

func (h *harness) fund(t *testing.T, amount uint64) {
	t.Helper()
	if _, err := h.engine.Fund(operator, amt(amount)); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (h *harness) credited(t *testing.T, who [20]byte) uint64 {
	t.Helper()
	recs, err := h.engine.Records(who)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	total := uint64(0)
	for _, rec := range recs {
		total += rec.CreditedRewards.Uint64()
	}
	return total
}

func (h *harness) pool(t *testing.T) *RewardPool {
	t.Helper()
	pool, err := h.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

func (h *harness) assertStakeConserved(t *testing.T) {
	t.Helper()
	sum := new(uint256.Int)
	var after [20]byte
	for {
		page, err := h.store.Accounts(after, 2)
		if err != nil {
			t.Fatalf("accounts: %v", err)
		}
		for _, acc := range page {
			for _, rec := range acc.Records {
				sum.Add(sum, rec.Amount)
			}
			after = acc.Address
		}
		if len(page) < 2 {
			break
		}
	}
	if pool := h.pool(t); !pool.TotalStaked.Eq(sum) {
		t.Fatalf("total staked %s does not match record sum %s", pool.TotalStaked.Dec(), sum.Dec())
	}
}

func TestStakeFundDistributeClaimUnstake(t *testing.T) {
	h := newHarness(t)
	rec := h.stake(t, alice, 500)
	h.fund(t, 1_000_000)
	h.advance(31 * day)

	settlement, err := h.engine.Distribute(operator, amt(1000))
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if settlement.Credited.Uint64() != 1000 || !settlement.Dust.IsZero() {
		t.Fatalf("unexpected settlement credited=%s dust=%s", settlement.Credited.Dec(), settlement.Dust.Dec())
	}
	if got := h.credited(t, alice); got != 1000 {
		t.Fatalf("expected 1000 credited, got %d", got)
	}
	pool := h.pool(t)
	if pool.Balance.Uint64() != 999_000 {
		t.Fatalf("expected pool 999000, got %s", pool.Balance.Dec())
	}
	if pool.LastDistributionTime != h.now {
		t.Fatalf("expected last distribution at %d, got %d", h.now, pool.LastDistributionTime)
	}

	ctx := context.Background()
	claim, err := h.engine.Claim(ctx, alice, rec.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.Amount.Uint64() != 1000 || claim.Kind != TransferReward {
		t.Fatalf("unexpected claim transfer %+v", claim)
	}
	if _, err := h.engine.Claim(ctx, alice, rec.ID); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected nothing to claim, got %v", err)
	}
	if _, err := h.engine.Unstake(ctx, alice, rec.ID); !errors.Is(err, ErrTransferPending) {
		t.Fatalf("expected pending transfer to block unstake, got %v", err)
	}
	if _, err := h.engine.ConfirmTransfer(ledgerAddr, claim.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	unstake, err := h.engine.Unstake(ctx, alice, rec.ID)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if unstake.Amount.Uint64() != 500 || unstake.Principal.Uint64() != 500 || !unstake.Rewards.IsZero() {
		t.Fatalf("unexpected unstake transfer %+v", unstake)
	}
	if !h.pool(t).TotalStaked.IsZero() {
		t.Fatalf("expected no stake left")
	}
	recs, err := h.engine.Records(alice)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
	acc, err := h.engine.Account(alice)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acc.TotalRewardsClaimed.Uint64() != 1000 {
		t.Fatalf("expected 1000 claimed, got %s", acc.TotalRewardsClaimed.Dec())
	}
	if len(h.transferer.sent) != 2 {
		t.Fatalf("expected two dispatched transfers, got %d", len(h.transferer.sent))
	}
	if h.emitter.count(EventTypeRewardsClaimed) != 1 || h.emitter.count(EventTypeStakeUnstaked) != 1 {
		t.Fatalf("missing lifecycle events")
	}
}

func TestDistributeKeepsRoundingDustInPool(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 1)
	h.stake(t, bob, 1)
	h.stake(t, carol, 1)
	h.fund(t, 100)
	h.advance(31 * day)

	settlement, err := h.engine.Distribute(operator, amt(10))
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	for _, who := range [][20]byte{alice, bob, carol} {
		if got := h.credited(t, who); got != 3 {
			t.Fatalf("expected 3 credited, got %d", got)
		}
	}
	if settlement.Credited.Uint64() != 9 || settlement.Dust.Uint64() != 1 {
		t.Fatalf("unexpected credited=%s dust=%s", settlement.Credited.Dec(), settlement.Dust.Dec())
	}
	if balance := h.pool(t).Balance.Uint64(); balance != 91 {
		t.Fatalf("expected pool 91, got %d", balance)
	}
	if len(settlement.Payouts) != 3 || settlement.EligibleRecords != 3 {
		t.Fatalf("unexpected payouts %d eligible %d", len(settlement.Payouts), settlement.EligibleRecords)
	}
}

func TestDistributeWithoutEligibleStakeIsNoop(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fund(t, 1000)
	h.advance(10 * day)
	before := h.pool(t)

	if _, err := h.engine.Distribute(operator, amt(100)); !errors.Is(err, ErrNoEligibleStake) {
		t.Fatalf("expected no eligible stake, got %v", err)
	}
	after := h.pool(t)
	if !after.Balance.Eq(before.Balance) || after.LastDistributionTime != before.LastDistributionTime || after.NextRoundID != before.NextRoundID {
		t.Fatalf("pool changed on failed distribution")
	}
	if got := h.credited(t, alice); got != 0 {
		t.Fatalf("expected nothing credited, got %d", got)
	}
}

func TestDistributeRejectsInvalidRequests(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fund(t, 50)
	h.advance(31 * day)

	if _, err := h.engine.Distribute(alice, amt(10)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := h.engine.Distribute(operator, amt(51)); !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("expected insufficient pool, got %v", err)
	}
	if _, err := h.engine.Distribute(operator, amt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if balance := h.pool(t).Balance.Uint64(); balance != 50 {
		t.Fatalf("pool changed: %d", balance)
	}
}

func TestEligibilityFloorExcludesYoungStake(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.advance(10 * day)
	h.stake(t, bob, 100)
	h.fund(t, 1000)
	h.advance(21 * day)

	if _, err := h.engine.Distribute(operator, amt(1000)); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if got := h.credited(t, alice); got != 1000 {
		t.Fatalf("expected alice to receive the full release, got %d", got)
	}
	if got := h.credited(t, bob); got != 0 {
		t.Fatalf("expected bob to receive nothing, got %d", got)
	}
}

func TestLongerStakesEarnHigherWeight(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.advance(60 * day)
	h.stake(t, bob, 100)
	h.fund(t, 10_000)
	h.advance(31 * day)

	if _, err := h.engine.Distribute(operator, amt(2700)); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	// alice: 91 days -> 1.5x, bob: 31 days -> 1.25x
	if got := h.credited(t, alice); got != 1472 {
		t.Fatalf("expected 1472 for alice, got %d", got)
	}
	if got := h.credited(t, bob); got != 1227 {
		t.Fatalf("expected 1227 for bob, got %d", got)
	}
	recs, _ := h.engine.Records(alice)
	if recs[0].WeightBps != 15_000 {
		t.Fatalf("expected stored weight 15000, got %d", recs[0].WeightBps)
	}
}

func TestTierBoostScalesShares(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 1000)
	h.stake(t, bob, 1000)
	if err := h.engine.AssignTier(operator, bob, TierQueen); err != nil {
		t.Fatalf("assign tier: %v", err)
	}
	if err := h.engine.AssignTier(alice, bob, TierDrone); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized tier change, got %v", err)
	}
	h.fund(t, 1000)
	h.advance(31 * day)

	settlement, err := h.engine.Distribute(operator, amt(1000))
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if got := h.credited(t, alice); got != 444 {
		t.Fatalf("expected 444 for alice, got %d", got)
	}
	if got := h.credited(t, bob); got != 555 {
		t.Fatalf("expected 555 for bob, got %d", got)
	}
	if settlement.Dust.Uint64() != 1 {
		t.Fatalf("expected dust 1, got %s", settlement.Dust.Dec())
	}
}

func TestLockupGatesClaimAndUnstake(t *testing.T) {
	const lockup = 60 * day
	cases := []struct {
		name    string
		unstake bool
		elapsed uint64
		err     error
	}{
		{name: "claim one second early", elapsed: lockup - 1, err: ErrLockupActive},
		{name: "claim at unlock", elapsed: lockup},
		{name: "unstake one second early", unstake: true, elapsed: lockup - 1, err: ErrLockupActive},
		{name: "unstake at unlock", unstake: true, elapsed: lockup},
		{name: "unstake well after unlock", unstake: true, elapsed: 2 * lockup},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			start := h.now
			rec, err := h.engine.AppendStake(alice, amt(100), lockup)
			if err != nil {
				t.Fatalf("stake: %v", err)
			}
			h.fund(t, 1000)
			h.advance(31 * day)
			if _, err := h.engine.Distribute(operator, amt(100)); err != nil {
				t.Fatalf("distribute: %v", err)
			}
			h.now = start + int64(tc.elapsed)

			ctx := context.Background()
			var transfer *PendingTransfer
			if tc.unstake {
				transfer, err = h.engine.Unstake(ctx, alice, rec.ID)
			} else {
				transfer, err = h.engine.Claim(ctx, alice, rec.ID)
			}
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				if h.credited(t, alice) != 100 {
					t.Fatalf("rejected call must not touch credited rewards")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := uint64(100)
			if tc.unstake {
				want = 200
			}
			if transfer.Amount.Uint64() != want {
				t.Fatalf("expected transfer of %d, got %s", want, transfer.Amount.Dec())
			}
		})
	}
}

func TestOversizedLockupIsRejected(t *testing.T) {
	for _, maxLockup := range []uint64{DefaultMaxLockup, 0} {
		h := newHarness(t, func(p *Params) { p.MaxLockup = maxLockup })
		refund, err := h.engine.NotifyTransfer(ledgerAddr, alice, amt(500), "stake:18446744073709551615")
		if !errors.Is(err, ErrInvalidLockup) {
			t.Fatalf("max %d: expected invalid lockup, got %v", maxLockup, err)
		}
		if refund.Uint64() != 500 {
			t.Fatalf("max %d: expected full refund, got %s", maxLockup, refund.Dec())
		}
		if _, err := h.engine.AppendStake(alice, amt(1), math.MaxInt64); !errors.Is(err, ErrInvalidLockup) {
			t.Fatalf("max %d: expected unlock time overflow to be rejected, got %v", maxLockup, err)
		}
		if _, err := h.engine.Unstake(context.Background(), alice, 1); !errors.Is(err, ErrNoStake) {
			t.Fatalf("max %d: expected no stake to exist, got %v", maxLockup, err)
		}
		pool, err := h.engine.Pool()
		if err != nil {
			t.Fatalf("pool: %v", err)
		}
		if !pool.TotalStaked.IsZero() {
			t.Fatalf("max %d: expected nothing staked, got %s", maxLockup, pool.TotalStaked.Dec())
		}
	}
}

func TestUnlockTimeSaturates(t *testing.T) {
	rec := &StakeRecord{StartTime: 1_700_000_000, LockupDuration: math.MaxUint64}
	if rec.UnlockTime() != math.MaxInt64 {
		t.Fatalf("expected saturated unlock time, got %d", rec.UnlockTime())
	}
	if rec.Unlocked(1_700_000_000) {
		t.Fatalf("saturated lockup must stay locked")
	}
	rec.LockupDuration = math.MaxInt64
	if rec.UnlockTime() != math.MaxInt64 {
		t.Fatalf("expected saturated unlock time, got %d", rec.UnlockTime())
	}
	rec.LockupDuration = day
	if rec.UnlockTime() != 1_700_000_000+int64(day) {
		t.Fatalf("unexpected unlock time %d", rec.UnlockTime())
	}
}

func TestDependenciesSwapWhileServing(t *testing.T) {
	h := newHarness(t)
	const records = 32
	ids := make([]uint64, 0, records)
	for i := 0; i < records; i++ {
		ids = append(ids, h.stake(t, alice, 10).ID)
	}
	h.advance(h.engine.Params().DefaultLockup)

	spare := &recordingTransferer{}
	spareEmitter := &captureEmitter{}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			if i%2 == 0 {
				h.engine.SetTransferer(spare)
				h.engine.SetEmitter(spareEmitter)
			} else {
				h.engine.SetTransferer(h.transferer)
				h.engine.SetEmitter(h.emitter)
			}
		}
	}()
	for _, id := range ids {
		if _, err := h.engine.Unstake(context.Background(), alice, id); err != nil {
			close(done)
			wg.Wait()
			t.Fatalf("unstake %d: %v", id, err)
		}
	}
	close(done)
	wg.Wait()

	if sent := len(spare.sent) + len(h.transferer.sent); sent != records {
		t.Fatalf("expected %d dispatched transfers, got %d", records, sent)
	}
	unstaked := spareEmitter.count(EventTypeStakeUnstaked) + h.emitter.count(EventTypeStakeUnstaked)
	if unstaked != records {
		t.Fatalf("expected %d unstake events, got %d", records, unstaked)
	}
}

func TestClaimAndUnstakeValidateOwnership(t *testing.T) {
	h := newHarness(t)
	rec := h.stake(t, alice, 100)
	h.advance(31 * day)
	ctx := context.Background()
	if _, err := h.engine.Claim(ctx, bob, rec.ID); !errors.Is(err, ErrNoStake) {
		t.Fatalf("expected no stake for bob, got %v", err)
	}
	if _, err := h.engine.Unstake(ctx, alice, rec.ID+100); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected missing record, got %v", err)
	}
	if _, err := h.engine.Claim(ctx, alice, rec.ID); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected nothing to claim, got %v", err)
	}
}

func TestUnstakePaysOutstandingRewards(t *testing.T) {
	h := newHarness(t)
	rec := h.stake(t, alice, 400)
	h.fund(t, 1000)
	h.advance(31 * day)
	if _, err := h.engine.Distribute(operator, amt(250)); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	transfer, err := h.engine.Unstake(context.Background(), alice, rec.ID)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if transfer.Amount.Uint64() != 650 || transfer.Rewards.Uint64() != 250 || transfer.Principal.Uint64() != 400 {
		t.Fatalf("unexpected unstake transfer amount=%s", transfer.Amount.Dec())
	}
	if transfer.Record == nil || transfer.Record.ID != rec.ID {
		t.Fatalf("expected record snapshot on transfer")
	}
	h.assertStakeConserved(t)
}

func TestTotalStakedMatchesRecordsAcrossLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a1 := h.stake(t, alice, 10)
	h.stake(t, alice, 20)
	b1 := h.stake(t, bob, 30)
	h.stake(t, carol, 40)
	h.assertStakeConserved(t)
	h.advance(31 * day)
	if _, err := h.engine.Unstake(ctx, alice, a1.ID); err != nil {
		t.Fatalf("unstake alice: %v", err)
	}
	h.assertStakeConserved(t)
	if _, err := h.engine.Unstake(ctx, bob, b1.ID); err != nil {
		t.Fatalf("unstake bob: %v", err)
	}
	h.assertStakeConserved(t)
	if total := h.pool(t).TotalStaked.Uint64(); total != 60 {
		t.Fatalf("expected 60 staked, got %d", total)
	}
	if _, ok, _ := h.store.Account(bob); ok {
		t.Fatalf("expected empty account to be removed")
	}
}

func TestRemoveRecordSwapsLastIntoPlace(t *testing.T) {
	pool := newRewardPool()
	pool.TotalStaked = amt(6)
	acc := newStakerAccount(alice)
	for i := uint64(1); i <= 3; i++ {
		acc.Records = append(acc.Records, &StakeRecord{ID: i, Amount: amt(i), CreditedRewards: amt(0)})
	}
	removed, err := removeRecord(pool, acc, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.ID != 1 {
		t.Fatalf("removed wrong record %d", removed.ID)
	}
	if len(acc.Records) != 2 || acc.Records[0].ID != 3 || acc.Records[1].ID != 2 {
		t.Fatalf("unexpected order after swap-remove")
	}
	if pool.TotalStaked.Uint64() != 5 {
		t.Fatalf("expected 5 staked, got %s", pool.TotalStaked.Dec())
	}
	if _, err := removeRecord(pool, acc, 2); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected out of range error, got %v", err)
	}
}

func TestAppendStakeValidatesInput(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.MaxLockup = 365 * day })
	if _, err := h.engine.AppendStake(alice, amt(0), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := h.engine.AppendStake([20]byte{}, amt(1), 0); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if _, err := h.engine.AppendStake(alice, amt(1), 400*day); !errors.Is(err, ErrInvalidLockup) {
		t.Fatalf("expected invalid lockup, got %v", err)
	}
	over := new(uint256.Int).AddUint64(MaxAmount, 1)
	if _, err := h.engine.AppendStake(alice, over, 0); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	h.stake(t, alice, 1)
	if _, err := h.engine.AppendStake(bob, MaxAmount, 0); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected total staked overflow, got %v", err)
	}
	h.assertStakeConserved(t)
}

func TestRecordIDsAreStableAndNeverReused(t *testing.T) {
	h := newHarness(t)
	first := h.stake(t, alice, 1)
	second := h.stake(t, alice, 2)
	h.advance(31 * day)
	if _, err := h.engine.Unstake(context.Background(), alice, first.ID); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	third := h.stake(t, alice, 3)
	if third.ID <= second.ID || third.ID == first.ID {
		t.Fatalf("record id reused: %d", third.ID)
	}
	recs, _ := h.engine.Records(alice)
	if len(recs) != 2 || recs[0].ID != second.ID {
		t.Fatalf("unexpected records after swap-remove")
	}
}

func TestSettlementHistoryIsBounded(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.SettlementHistory = 2 })
	h.stake(t, alice, 10)
	h.fund(t, 100)
	h.advance(31 * day)
	for i := 0; i < 3; i++ {
		if _, err := h.engine.Distribute(operator, amt(10)); err != nil {
			t.Fatalf("distribute %d: %v", i, err)
		}
		h.advance(day)
	}
	list, err := h.engine.Settlements(0)
	if err != nil {
		t.Fatalf("settlements: %v", err)
	}
	if len(list) != 2 || list[0].Round != 3 || list[1].Round != 2 {
		t.Fatalf("unexpected settlement history %+v", list)
	}
	if h.credited(t, alice) != 30 {
		t.Fatalf("expected 30 credited")
	}
}

func TestPreviewReportsClaimability(t *testing.T) {
	h := newHarness(t)
	h.stake(t, alice, 100)
	h.fund(t, 100)
	h.advance(31 * day)
	if _, err := h.engine.Distribute(operator, amt(40)); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	view, err := h.engine.Preview(alice)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(view.Records) != 1 || !view.Records[0].Claimable || !view.Records[0].Eligible {
		t.Fatalf("unexpected preview %+v", view.Records)
	}
	if view.TotalCredited.Uint64() != 40 || view.TotalStaked.Uint64() != 100 || view.HasClaimed {
		t.Fatalf("unexpected totals")
	}
	apr, err := h.engine.EstimatedAPRBps()
	if err != nil {
		t.Fatalf("apr: %v", err)
	}
	if apr != 6000 {
		t.Fatalf("expected 6000 bps, got %d", apr)
	}
}
