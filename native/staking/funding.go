package staking

import (
	"context"
	"math"

	"github.com/holiman/uint256"
)

// Fund appends an operator contribution to the funding log and grows the pool.
func (e *Engine) Fund(caller [20]byte, amount *uint256.Int) (*FundingRecord, error) {
	if err := e.requireOperator(caller); err != nil {
		return nil, err
	}
	var entry *FundingRecord
	err := e.execute(context.Background(), func(tx *txn) error {
		rec, err := e.fund(tx, caller, amount)
		entry = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (e *Engine) fund(tx *txn, funder [20]byte, amount *uint256.Int) (*FundingRecord, error) {
	if isZero(amount) {
		return nil, ErrInvalidAmount
	}
	pool, err := tx.rewardPool()
	if err != nil {
		return nil, err
	}
	balance, err := addAmount(pool.Balance, amount)
	if err != nil {
		return nil, err
	}
	funded, err := addAmount(pool.TotalFunded, amount)
	if err != nil {
		return nil, err
	}
	entry := &FundingRecord{
		Sequence:  pool.NextFundingSeq,
		Funder:    funder,
		Amount:    copyAmount(amount),
		Timestamp: e.now(),
	}
	pool.NextFundingSeq++
	pool.Balance = balance
	pool.TotalFunded = funded
	tx.funding = append(tx.funding, entry)
	tx.emit(PoolFundedEvent(entry, balance))
	return entry.Clone(), nil
}

// FundingLog returns up to limit funding entries starting at sequence from.
func (e *Engine) FundingLog(from uint64, limit int) ([]*FundingRecord, error) {
	var out []*FundingRecord
	err := e.view(func(store Store) error {
		entries, err := store.FundingLog(from, limit)
		out = entries
		return err
	})
	return out, err
}

// Pool returns a snapshot of the reward pool singleton.
func (e *Engine) Pool() (*RewardPool, error) {
	var out *RewardPool
	err := e.view(func(store Store) error {
		pool, ok, err := store.Pool()
		if err != nil {
			return err
		}
		if !ok || pool == nil {
			pool = newRewardPool()
		}
		out = pool.Clone()
		return nil
	})
	return out, err
}

// PoolBalance returns the spendable reward balance.
func (e *Engine) PoolBalance() (*uint256.Int, error) {
	pool, err := e.Pool()
	if err != nil {
		return nil, err
	}
	return pool.Balance, nil
}

// TotalStaked returns the principal locked across every account.
func (e *Engine) TotalStaked() (*uint256.Int, error) {
	pool, err := e.Pool()
	if err != nil {
		return nil, err
	}
	return pool.TotalStaked, nil
}

// EstimatedAPRBps is the pool balance relative to total stake in basis points.
// It is informational only and never used for distribution.
func (e *Engine) EstimatedAPRBps() (uint64, error) {
	pool, err := e.Pool()
	if err != nil {
		return 0, err
	}
	if isZero(pool.TotalStaked) {
		return 0, nil
	}
	ratio, overflow := new(uint256.Int).MulDivOverflow(pool.Balance, bpsDenominator, pool.TotalStaked)
	if overflow || !ratio.IsUint64() {
		return math.MaxUint64, nil
	}
	return ratio.Uint64(), nil
}
