package staking

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// AppendStake locks amount for staker in a new record. A zero lockup selects
// the configured default.
func (e *Engine) AppendStake(staker [20]byte, amount *uint256.Int, lockup uint64) (*StakeRecord, error) {
	var created *StakeRecord
	err := e.execute(context.Background(), func(tx *txn) error {
		rec, err := e.appendStake(tx, staker, amount, lockup)
		if err != nil {
			return err
		}
		created = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Engine) appendStake(tx *txn, staker [20]byte, amount *uint256.Int, lockup uint64) (*StakeRecord, error) {
	if isZeroAddress(staker) {
		return nil, ErrInvalidAddress
	}
	if isZero(amount) {
		return nil, ErrInvalidAmount
	}
	if amount.Gt(MaxAmount) {
		return nil, ErrArithmeticOverflow
	}
	start := e.now()
	duration, err := e.params.resolveLockup(lockup, start)
	if err != nil {
		return nil, err
	}
	pool, err := tx.rewardPool()
	if err != nil {
		return nil, err
	}
	acc, err := tx.account(staker)
	if err != nil {
		return nil, err
	}
	total, err := addAmount(pool.TotalStaked, amount)
	if err != nil {
		return nil, err
	}
	rec := &StakeRecord{
		ID:              pool.NextRecordID,
		Amount:          copyAmount(amount),
		StartTime:       start,
		LockupDuration:  duration,
		CreditedRewards: zeroAmount(),
	}
	pool.NextRecordID++
	pool.TotalStaked = total
	acc.Records = append(acc.Records, rec)
	tx.emit(StakeCreatedEvent(staker, rec))
	return rec.Clone(), nil
}

// removeRecord swaps the record at index with the last one and truncates. The
// record previously last now lives at index.
func removeRecord(pool *RewardPool, acc *StakerAccount, index int) (*StakeRecord, error) {
	if acc == nil || index < 0 || index >= len(acc.Records) {
		return nil, ErrRecordNotFound
	}
	rec := acc.Records[index]
	remaining, err := subAmount(pool.TotalStaked, rec.Amount)
	if err != nil {
		return nil, err
	}
	last := len(acc.Records) - 1
	acc.Records[index] = acc.Records[last]
	acc.Records[last] = nil
	acc.Records = acc.Records[:last]
	pool.TotalStaked = remaining
	return rec, nil
}

func locateRecord(acc *StakerAccount, id uint64) (int, *StakeRecord, error) {
	if acc == nil || len(acc.Records) == 0 {
		return -1, nil, ErrNoStake
	}
	idx := acc.IndexOf(id)
	if idx < 0 {
		return -1, nil, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	return idx, acc.Records[idx], nil
}

// Records returns a snapshot of the staker's records in ledger order.
func (e *Engine) Records(staker [20]byte) ([]*StakeRecord, error) {
	acc, err := e.Account(staker)
	if err != nil {
		return nil, err
	}
	return acc.Records, nil
}

// Account returns a snapshot of the staker's account. Unknown addresses yield
// an empty account.
func (e *Engine) Account(staker [20]byte) (*StakerAccount, error) {
	var out *StakerAccount
	err := e.view(func(store Store) error {
		acc, ok, err := store.Account(staker)
		if err != nil {
			return err
		}
		if !ok || acc == nil {
			acc = newStakerAccount(staker)
		}
		if acc.TotalRewardsClaimed == nil {
			acc.TotalRewardsClaimed = zeroAmount()
		}
		out = acc.Clone()
		return nil
	})
	return out, err
}

// Accounts pages through staker accounts in ascending address order.
func (e *Engine) Accounts(after [20]byte, limit int) ([]*StakerAccount, error) {
	var out []*StakerAccount
	err := e.view(func(store Store) error {
		page, err := store.Accounts(after, limit)
		out = page
		return err
	})
	return out, err
}
