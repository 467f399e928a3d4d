package staking

import (
	"context"

	"github.com/holiman/uint256"
)

// DefaultRoundBatch is the number of accounts a single distribution pass
// visits when the caller does not choose.
const DefaultRoundBatch = 256

// RoundOutcome reports the progress made by StepDistribution.
type RoundOutcome struct {
	// Round is the open round after the step, nil once closed.
	Round *DistributionRound
	Done  bool
	// NoEligibleStake marks a round closed without touching the pool.
	NoEligibleStake bool
	Settlement      *Settlement
}

// Distribute apportions release across every eligible record in one atomic
// call. When no record is eligible the call fails with ErrNoEligibleStake and
// leaves state untouched.
func (e *Engine) Distribute(caller [20]byte, release *uint256.Int) (*Settlement, error) {
	if err := e.requireOperator(caller); err != nil {
		return nil, err
	}
	var settlement *Settlement
	err := e.execute(context.Background(), func(tx *txn) error {
		if _, err := e.openRound(tx, release); err != nil {
			return err
		}
		for {
			outcome, err := e.advanceRound(tx, DefaultRoundBatch)
			if err != nil {
				return err
			}
			if outcome.NoEligibleStake {
				return ErrNoEligibleStake
			}
			if outcome.Done {
				settlement = outcome.Settlement
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// BeginDistribution opens a paginated round. Records created after this call
// are excluded from the round.
func (e *Engine) BeginDistribution(caller [20]byte, release *uint256.Int) (*DistributionRound, error) {
	if err := e.requireOperator(caller); err != nil {
		return nil, err
	}
	var round *DistributionRound
	err := e.execute(context.Background(), func(tx *txn) error {
		opened, err := e.openRound(tx, release)
		round = opened
		return err
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// StepDistribution visits up to batch accounts of the open round. The first
// pass tallies weighted points; the second credits shares and settles.
func (e *Engine) StepDistribution(caller [20]byte, batch int) (RoundOutcome, error) {
	if err := e.requireOperator(caller); err != nil {
		return RoundOutcome{}, err
	}
	if batch <= 0 {
		batch = DefaultRoundBatch
	}
	var outcome RoundOutcome
	err := e.execute(context.Background(), func(tx *txn) error {
		out, err := e.advanceRound(tx, batch)
		outcome = out
		return err
	})
	if err != nil {
		return RoundOutcome{}, err
	}
	return outcome, nil
}

// AbortDistribution cancels an open round that has not started crediting.
func (e *Engine) AbortDistribution(caller [20]byte) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	return e.execute(context.Background(), func(tx *txn) error {
		pool, err := tx.rewardPool()
		if err != nil {
			return err
		}
		if pool.Round == nil {
			return ErrNoDistribution
		}
		if pool.Round.Phase != PhaseTally {
			return ErrRoundCrediting
		}
		tx.emit(DistributionAbortedEvent(pool.Round.ID, "aborted by operator"))
		pool.Round = nil
		return nil
	})
}

// CurrentRound returns the open round, if any.
func (e *Engine) CurrentRound() (*DistributionRound, bool, error) {
	pool, err := e.Pool()
	if err != nil {
		return nil, false, err
	}
	if pool.Round == nil {
		return nil, false, nil
	}
	return pool.Round, true, nil
}

// Settlements returns up to limit settlement summaries, newest first.
func (e *Engine) Settlements(limit int) ([]*Settlement, error) {
	var out []*Settlement
	err := e.view(func(store Store) error {
		list, err := store.Settlements(limit)
		out = list
		return err
	})
	return out, err
}

func (e *Engine) openRound(tx *txn, release *uint256.Int) (*DistributionRound, error) {
	if isZero(release) {
		return nil, ErrInvalidAmount
	}
	pool, err := tx.rewardPool()
	if err != nil {
		return nil, err
	}
	if pool.Round != nil {
		return nil, ErrDistributionInProgress
	}
	if release.Gt(pool.Balance) {
		return nil, ErrInsufficientPool
	}
	round := &DistributionRound{
		ID:          pool.NextRoundID,
		Release:     copyAmount(release),
		AsOf:        e.now(),
		Cutoff:      pool.NextRecordID,
		Phase:       PhaseTally,
		TotalPoints: zeroAmount(),
		Credited:    zeroAmount(),
	}
	pool.NextRoundID++
	pool.Round = round
	tx.emit(DistributionOpenedEvent(round))
	return round.Clone(), nil
}

func (e *Engine) eligible(rec *StakeRecord, round *DistributionRound) bool {
	if rec == nil || isZero(rec.Amount) || rec.ID >= round.Cutoff {
		return false
	}
	return rec.Elapsed(round.AsOf) >= e.params.EligibilityFloor
}

// recordPoints returns the weighted points of rec as of the round together
// with the multiplier used.
func (e *Engine) recordPoints(rec *StakeRecord, tier Tier, round *DistributionRound) (*uint256.Int, uint64, error) {
	weight := e.params.Weights.WeightFor(rec.Elapsed(round.AsOf))
	points, err := weightedPoints(rec.Amount, weight, e.params.BoostFor(tier))
	if err != nil {
		return nil, 0, err
	}
	return points, weight, nil
}

func (e *Engine) advanceRound(tx *txn, batch int) (RoundOutcome, error) {
	pool, err := tx.rewardPool()
	if err != nil {
		return RoundOutcome{}, err
	}
	round := pool.Round
	if round == nil {
		return RoundOutcome{}, ErrNoDistribution
	}
	page, err := tx.store.Accounts(round.Cursor, batch)
	if err != nil {
		return RoundOutcome{}, err
	}
	exhausted := len(page) < batch

	switch round.Phase {
	case PhaseTally:
		for _, acc := range page {
			for _, rec := range acc.Records {
				if !e.eligible(rec, round) {
					continue
				}
				points, _, err := e.recordPoints(rec, acc.Tier, round)
				if err != nil {
					return RoundOutcome{}, err
				}
				if round.TotalPoints, err = addPoints(round.TotalPoints, points); err != nil {
					return RoundOutcome{}, err
				}
				round.Eligible++
			}
			round.Cursor = acc.Address
		}
		if !exhausted {
			break
		}
		if isZero(round.TotalPoints) {
			tx.emit(DistributionAbortedEvent(round.ID, "no eligible stake"))
			pool.Round = nil
			return RoundOutcome{Done: true, NoEligibleStake: true}, nil
		}
		round.Phase = PhaseCredit
		round.Cursor = [20]byte{}
	case PhaseCredit:
		for _, stored := range page {
			if err := e.creditAccount(tx, round, stored.Address); err != nil {
				return RoundOutcome{}, err
			}
			round.Cursor = stored.Address
		}
		if exhausted {
			settlement, err := e.settle(tx, pool, round)
			if err != nil {
				return RoundOutcome{}, err
			}
			return RoundOutcome{Done: true, Settlement: settlement}, nil
		}
	}
	return RoundOutcome{Round: round.Clone()}, nil
}

func (e *Engine) creditAccount(tx *txn, round *DistributionRound, address [20]byte) error {
	acc, err := tx.account(address)
	if err != nil {
		return err
	}
	credited := zeroAmount()
	for _, rec := range acc.Records {
		if !e.eligible(rec, round) {
			continue
		}
		points, weight, err := e.recordPoints(rec, acc.Tier, round)
		if err != nil {
			return err
		}
		rec.WeightBps = weight
		if points.IsZero() {
			continue
		}
		share, err := proportionalShare(round.Release, points, round.TotalPoints)
		if err != nil {
			return err
		}
		if share.IsZero() {
			continue
		}
		if rec.CreditedRewards, err = addAmount(rec.CreditedRewards, share); err != nil {
			return err
		}
		if credited, err = addAmount(credited, share); err != nil {
			return err
		}
	}
	if credited.IsZero() {
		return nil
	}
	if round.Credited, err = addAmount(round.Credited, credited); err != nil {
		return err
	}
	if round.Credited.Gt(round.Release) {
		return ErrArithmeticOverflow
	}
	round.Payouts = append(round.Payouts, Payout{Account: address, Amount: copyAmount(credited)})
	tx.emit(RewardsCreditedEvent(round.ID, address, credited))
	return nil
}

func (e *Engine) settle(tx *txn, pool *RewardPool, round *DistributionRound) (*Settlement, error) {
	dust, err := subAmount(round.Release, round.Credited)
	if err != nil {
		return nil, err
	}
	balance, err := subAmount(pool.Balance, round.Credited)
	if err != nil {
		return nil, err
	}
	distributed, err := addAmount(pool.TotalDistributed, round.Credited)
	if err != nil {
		return nil, err
	}
	pool.Balance = balance
	pool.TotalDistributed = distributed
	pool.LastDistributionTime = round.AsOf
	pool.Round = nil

	settlement := &Settlement{
		Round:           round.ID,
		Release:         copyAmount(round.Release),
		Credited:        copyAmount(round.Credited),
		Dust:            dust,
		TotalPoints:     copyAmount(round.TotalPoints),
		EligibleRecords: round.Eligible,
		AsOf:            round.AsOf,
		ClosedAt:        e.now(),
		Payouts:         clonePayouts(round.Payouts),
	}
	tx.settlements = append(tx.settlements, settlement)
	if h := e.params.SettlementHistory; h > 0 && round.ID >= h {
		tx.prune = round.ID - h + 1
	}
	tx.emit(DistributionCompletedEvent(settlement))
	return settlement.Clone(), nil
}
