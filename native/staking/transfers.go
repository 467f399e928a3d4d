package staking

import (
	"context"
	"fmt"
	"strings"
)

// Transferer initiates outbound token transfers. Implementations must not wait
// for settlement; the token ledger reports the outcome through ConfirmTransfer
// or FailTransfer.
type Transferer interface {
	Transfer(ctx context.Context, transfer *PendingTransfer) error
}

// ConfirmTransfer marks a pending transfer as settled by the token ledger.
func (e *Engine) ConfirmTransfer(caller [20]byte, id uint64) (*PendingTransfer, error) {
	if err := e.requireLedger(caller); err != nil {
		return nil, err
	}
	var out *PendingTransfer
	err := e.execute(context.Background(), func(tx *txn) error {
		t, ok, err := tx.transfer(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", ErrTransferNotFound, id)
		}
		if t.Kind == TransferReward {
			acc, err := tx.account(t.Account)
			if err != nil {
				return err
			}
			if idx := acc.IndexOf(t.RecordID); idx >= 0 && acc.Records[idx].PendingTransfer == t.ID {
				acc.Records[idx].PendingTransfer = 0
			}
		}
		tx.deleteTransfer(t.ID)
		tx.emit(TransferConfirmedEvent(t))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FailTransfer rolls back the bookkeeping of a transfer the token ledger could
// not settle. Reward transfers are re-credited to their record; unstake
// transfers restore the removed record under its original ID.
func (e *Engine) FailTransfer(caller [20]byte, id uint64, reason string) (*PendingTransfer, error) {
	if err := e.requireLedger(caller); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	var out *PendingTransfer
	err := e.execute(context.Background(), func(tx *txn) error {
		t, ok, err := tx.transfer(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", ErrTransferNotFound, id)
		}
		acc, err := tx.account(t.Account)
		if err != nil {
			return err
		}
		switch t.Kind {
		case TransferReward:
			if err := rollbackClaim(acc, t); err != nil {
				return err
			}
		case TransferUnstake:
			pool, err := tx.rewardPool()
			if err != nil {
				return err
			}
			if pool.Round != nil {
				return ErrDistributionInProgress
			}
			if err := rollbackUnstake(pool, acc, t); err != nil {
				return err
			}
		default:
			return fmt.Errorf("staking engine: unknown transfer kind %d", t.Kind)
		}
		t.LastError = reason
		tx.deleteTransfer(t.ID)
		tx.emit(TransferFailedEvent(t, reason))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func rollbackClaim(acc *StakerAccount, t *PendingTransfer) error {
	idx := acc.IndexOf(t.RecordID)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, t.RecordID)
	}
	rec := acc.Records[idx]
	credited, err := addAmount(rec.CreditedRewards, t.Rewards)
	if err != nil {
		return err
	}
	claimed, err := subAmount(acc.TotalRewardsClaimed, t.Rewards)
	if err != nil {
		return err
	}
	rec.CreditedRewards = credited
	rec.PendingTransfer = 0
	if t.FirstClaim {
		rec.Claimed = false
	}
	acc.TotalRewardsClaimed = claimed
	return nil
}

func rollbackUnstake(pool *RewardPool, acc *StakerAccount, t *PendingTransfer) error {
	if t.Record == nil {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, t.RecordID)
	}
	if acc.IndexOf(t.Record.ID) >= 0 {
		return fmt.Errorf("staking engine: record %d already present", t.Record.ID)
	}
	staked, err := addAmount(pool.TotalStaked, t.Record.Amount)
	if err != nil {
		return err
	}
	claimed, err := subAmount(acc.TotalRewardsClaimed, t.Rewards)
	if err != nil {
		return err
	}
	rec := t.Record.Clone()
	rec.PendingTransfer = 0
	acc.Records = append(acc.Records, rec)
	acc.TotalRewardsClaimed = claimed
	pool.TotalStaked = staked
	return nil
}

// RetryTransfer re-initiates a pending transfer. The operator and the
// transfer's beneficiary may retry.
func (e *Engine) RetryTransfer(ctx context.Context, caller [20]byte, id uint64) (*PendingTransfer, error) {
	var out *PendingTransfer
	err := e.execute(ctx, func(tx *txn) error {
		t, ok, err := tx.transfer(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", ErrTransferNotFound, id)
		}
		if isZeroAddress(caller) || (caller != e.params.Operator && caller != t.Account) {
			return ErrUnauthorized
		}
		t.Attempts++
		t.UpdatedAt = e.now()
		t.LastError = ""
		tx.dispatch = append(tx.dispatch, t)
		tx.emit(TransferRetriedEvent(t))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PendingTransfers pages through outstanding transfers by ascending ID.
func (e *Engine) PendingTransfers(after uint64, limit int) ([]*PendingTransfer, error) {
	var out []*PendingTransfer
	err := e.view(func(store Store) error {
		list, err := store.Transfers(after, limit)
		out = list
		return err
	})
	return out, err
}

// StaleTransfers returns up to limit pending transfers last touched at or
// before cutoff.
func (e *Engine) StaleTransfers(cutoff int64, limit int) ([]*PendingTransfer, error) {
	var out []*PendingTransfer
	err := e.view(func(store Store) error {
		var after uint64
		for {
			page, err := store.Transfers(after, DefaultRoundBatch)
			if err != nil {
				return err
			}
			for _, t := range page {
				after = t.ID
				if t.UpdatedAt > cutoff {
					continue
				}
				out = append(out, t)
				if limit > 0 && len(out) == limit {
					return nil
				}
			}
			if len(page) < DefaultRoundBatch {
				return nil
			}
		}
	})
	return out, err
}
