package staking

import (
	"fmt"
	"math"
	"sort"
)

const day uint64 = 24 * 60 * 60

const (
	// DefaultLockup matches the thirty day lockup applied when a stake names none.
	DefaultLockup = 30 * day
	// DefaultMaxLockup caps caller supplied lockups at four years.
	DefaultMaxLockup = 4 * 365 * day
	// DefaultEligibilityFloor is the minimum stake age for a distribution.
	DefaultEligibilityFloor = 30 * day
	// DefaultSettlementHistory bounds the retained settlement summaries.
	DefaultSettlementHistory = 64
)

// Params controls engine policy.
type Params struct {
	// Operator funds the pool, runs distributions and assigns tiers.
	Operator [20]byte
	// TokenLedger is the only caller allowed to deliver transfer notifications
	// and reconcile outbound transfers.
	TokenLedger [20]byte

	EligibilityFloor uint64
	DefaultLockup    uint64
	MinLockup        uint64
	// MaxLockup of zero only bounds the lockup by the representable unlock time.
	MaxLockup uint64

	Weights *WeightTable
	// TierBoosts maps tiers onto basis-point boosts applied to weighted points.
	// Tiers without an entry use 1.0x.
	TierBoosts map[Tier]uint64

	// SettlementHistory bounds retained settlements; zero keeps them all.
	SettlementHistory uint64
}

// DefaultParams returns a configuration with the default weight table and tier
// boosts. Operator and TokenLedger must still be set.
func DefaultParams() Params {
	return Params{
		EligibilityFloor: DefaultEligibilityFloor,
		DefaultLockup:    DefaultLockup,
		MinLockup:        day,
		MaxLockup:        DefaultMaxLockup,
		Weights:          DefaultWeightTable(),
		TierBoosts: map[Tier]uint64{
			TierNone:   10_000,
			TierDrone:  10_500,
			TierWorker: 11_000,
			TierQueen:  12_500,
		},
		SettlementHistory: DefaultSettlementHistory,
	}
}

// Validate ensures the parameters are internally consistent.
func (p Params) Validate() error {
	if isZeroAddress(p.Operator) {
		return fmt.Errorf("operator address required")
	}
	if isZeroAddress(p.TokenLedger) {
		return fmt.Errorf("token ledger address required")
	}
	if p.Weights == nil {
		return fmt.Errorf("weight table required")
	}
	if p.MaxLockup != 0 && p.MaxLockup < p.MinLockup {
		return fmt.Errorf("max lockup %d below min lockup %d", p.MaxLockup, p.MinLockup)
	}
	if p.DefaultLockup < p.MinLockup || (p.MaxLockup != 0 && p.DefaultLockup > p.MaxLockup) {
		return fmt.Errorf("default lockup %d outside [%d, %d]", p.DefaultLockup, p.MinLockup, p.MaxLockup)
	}
	tiers := make([]Tier, 0, len(p.TierBoosts))
	for tier := range p.TierBoosts {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
	for _, tier := range tiers {
		if !tier.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
		}
		if p.TierBoosts[tier] == 0 {
			return fmt.Errorf("tier %s: boost must be positive", tier)
		}
	}
	return nil
}

// BoostFor returns the boost applied to the tier's weighted points.
func (p Params) BoostFor(tier Tier) uint64 {
	if boost, ok := p.TierBoosts[tier]; ok && boost > 0 {
		return boost
	}
	return BasisPoints
}

// resolveLockup applies the default and bounds. The unlock time start+lockup
// must fit in an int64.
func (p Params) resolveLockup(requested uint64, start int64) (uint64, error) {
	lockup := requested
	if lockup == 0 {
		lockup = p.DefaultLockup
	}
	if lockup < p.MinLockup || (p.MaxLockup != 0 && lockup > p.MaxLockup) {
		return 0, fmt.Errorf("%w: %ds", ErrInvalidLockup, lockup)
	}
	if lockup > math.MaxInt64 || (start > 0 && lockup > uint64(math.MaxInt64-start)) {
		return 0, fmt.Errorf("%w: %ds overflows unlock time", ErrInvalidLockup, lockup)
	}
	return lockup, nil
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
