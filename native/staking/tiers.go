package staking

import "context"

// AssignTier sets the boost class of account. Only the operator may change
// tiers, and never while a distribution round is open.
func (e *Engine) AssignTier(caller, account [20]byte, tier Tier) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if isZeroAddress(account) {
		return ErrInvalidAddress
	}
	if !tier.Valid() {
		return ErrInvalidTier
	}
	return e.execute(context.Background(), func(tx *txn) error {
		pool, err := tx.rewardPool()
		if err != nil {
			return err
		}
		if pool.Round != nil {
			return ErrDistributionInProgress
		}
		acc, err := tx.account(account)
		if err != nil {
			return err
		}
		previous := acc.Tier
		if previous == tier {
			return nil
		}
		acc.Tier = tier
		tx.emit(TierAssignedEvent(account, previous, tier))
		return nil
	})
}
