package staking

import (
	"context"

	"github.com/holiman/uint256"
)

// Claim moves the record's credited rewards into a pending outbound transfer.
// The lockup must have elapsed.
func (e *Engine) Claim(ctx context.Context, caller [20]byte, recordID uint64) (*PendingTransfer, error) {
	var out *PendingTransfer
	err := e.execute(ctx, func(tx *txn) error {
		acc, err := tx.account(caller)
		if err != nil {
			return err
		}
		_, rec, err := locateRecord(acc, recordID)
		if err != nil {
			return err
		}
		now := e.now()
		if !rec.Unlocked(now) {
			return ErrLockupActive
		}
		if isZero(rec.CreditedRewards) {
			return ErrNothingToClaim
		}
		if rec.PendingTransfer != 0 {
			return ErrTransferPending
		}
		amount := copyAmount(rec.CreditedRewards)
		claimed, err := addAmount(acc.TotalRewardsClaimed, amount)
		if err != nil {
			return err
		}
		pool, err := tx.rewardPool()
		if err != nil {
			return err
		}
		transfer := newTransfer(pool, caller, TransferReward, rec.ID, zeroAmount(), amount, now)
		transfer.FirstClaim = !rec.Claimed

		rec.CreditedRewards = zeroAmount()
		rec.Claimed = true
		rec.PendingTransfer = transfer.ID
		acc.TotalRewardsClaimed = claimed

		tx.putTransfer(transfer)
		tx.dispatch = append(tx.dispatch, transfer)
		tx.emit(RewardsClaimedEvent(caller, rec.ID, amount, transfer.ID))
		out = transfer.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Unstake removes the record and pays its principal together with any
// outstanding credited rewards in one transfer.
func (e *Engine) Unstake(ctx context.Context, caller [20]byte, recordID uint64) (*PendingTransfer, error) {
	var out *PendingTransfer
	err := e.execute(ctx, func(tx *txn) error {
		acc, err := tx.account(caller)
		if err != nil {
			return err
		}
		idx, rec, err := locateRecord(acc, recordID)
		if err != nil {
			return err
		}
		now := e.now()
		if !rec.Unlocked(now) {
			return ErrLockupActive
		}
		if rec.PendingTransfer != 0 {
			return ErrTransferPending
		}
		pool, err := tx.rewardPool()
		if err != nil {
			return err
		}
		if pool.Round != nil {
			return ErrDistributionInProgress
		}
		rewards := copyAmount(rec.CreditedRewards)
		claimed, err := addAmount(acc.TotalRewardsClaimed, rewards)
		if err != nil {
			return err
		}
		removed, err := removeRecord(pool, acc, idx)
		if err != nil {
			return err
		}
		transfer := newTransfer(pool, caller, TransferUnstake, removed.ID, removed.Amount, rewards, now)
		if transfer.Amount == nil {
			return ErrArithmeticOverflow
		}
		transfer.Record = removed.Clone()
		acc.TotalRewardsClaimed = claimed

		tx.putTransfer(transfer)
		tx.dispatch = append(tx.dispatch, transfer)
		tx.emit(StakeUnstakedEvent(caller, removed.ID, removed.Amount, rewards, transfer.ID))
		out = transfer.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// newTransfer allocates the next transfer ID. Amount is left nil when
// principal plus rewards overflows.
func newTransfer(pool *RewardPool, account [20]byte, kind TransferKind, recordID uint64, principal, rewards *uint256.Int, now int64) *PendingTransfer {
	t := &PendingTransfer{
		ID:        pool.NextTransferID,
		Account:   account,
		Kind:      kind,
		RecordID:  recordID,
		Principal: copyAmount(principal),
		Rewards:   copyAmount(rewards),
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	pool.NextTransferID++
	if total, err := addAmount(principal, rewards); err == nil {
		t.Amount = total
	}
	return t
}

// RecordView is a read-only projection of a record at a point in time.
type RecordView struct {
	Record     *StakeRecord
	UnlockTime int64
	Unlocked   bool
	// Claimable is true when Claim would succeed now.
	Claimable bool
	Eligible  bool
	// CurrentWeightBps is the multiplier the record would receive if a
	// distribution ran now.
	CurrentWeightBps uint64
}

// AccountView summarises an account for display.
type AccountView struct {
	Address             [20]byte
	Tier                Tier
	TotalStaked         *uint256.Int
	TotalCredited       *uint256.Int
	TotalRewardsClaimed *uint256.Int
	HasClaimed          bool
	Records             []RecordView
}

// Preview projects the staker's account at the engine's current time.
func (e *Engine) Preview(staker [20]byte) (*AccountView, error) {
	acc, err := e.Account(staker)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	now := e.now()
	e.mu.Unlock()
	view := &AccountView{
		Address:             acc.Address,
		Tier:                acc.Tier,
		TotalStaked:         zeroAmount(),
		TotalCredited:       zeroAmount(),
		TotalRewardsClaimed: copyAmount(acc.TotalRewardsClaimed),
	}
	for _, rec := range acc.Records {
		if view.TotalStaked, err = addAmount(view.TotalStaked, rec.Amount); err != nil {
			return nil, err
		}
		if view.TotalCredited, err = addAmount(view.TotalCredited, rec.CreditedRewards); err != nil {
			return nil, err
		}
		if rec.Claimed {
			view.HasClaimed = true
		}
		unlocked := rec.Unlocked(now)
		elapsed := rec.Elapsed(now)
		view.Records = append(view.Records, RecordView{
			Record:           rec,
			UnlockTime:       rec.UnlockTime(),
			Unlocked:         unlocked,
			Claimable:        unlocked && !isZero(rec.CreditedRewards) && rec.PendingTransfer == 0,
			Eligible:         elapsed >= e.params.EligibilityFloor,
			CurrentWeightBps: e.params.Weights.WeightFor(elapsed),
		})
	}
	return view, nil
}
