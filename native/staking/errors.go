package staking

import "errors"

// Validation failures.
var (
	ErrInvalidAmount  = errors.New("staking engine: amount must be positive")
	ErrRecordNotFound = errors.New("staking engine: stake record not found")
	ErrUnauthorized   = errors.New("staking engine: caller not authorised")
	ErrInvalidLockup  = errors.New("staking engine: lockup duration out of range")
	ErrUnknownIntent  = errors.New("staking engine: unrecognised transfer intent")
	ErrInvalidTier    = errors.New("staking engine: unknown tier")
	ErrInvalidAddress = errors.New("staking engine: address must not be zero")
)

// State failures.
var (
	ErrNoStake                = errors.New("staking engine: account has no stake")
	ErrLockupActive           = errors.New("staking engine: lockup period has not elapsed")
	ErrNothingToClaim         = errors.New("staking engine: nothing to claim")
	ErrInsufficientPool       = errors.New("staking engine: release exceeds pool balance")
	ErrNoEligibleStake        = errors.New("staking engine: no eligible stake")
	ErrDistributionInProgress = errors.New("staking engine: distribution round in progress")
	ErrNoDistribution         = errors.New("staking engine: no distribution round open")
	ErrRoundCrediting         = errors.New("staking engine: distribution round already crediting")
	ErrTransferPending        = errors.New("staking engine: transfer already pending for record")
	ErrTransferNotFound       = errors.New("staking engine: pending transfer not found")
)

// Arithmetic failures.
var (
	ErrArithmeticOverflow = errors.New("staking engine: arithmetic overflow")
	ErrDivisionByZero     = errors.New("staking engine: division by zero")
)

var errNilStore = errors.New("staking engine: store not configured")

// IsValidation reports whether err stems from invalid caller input.
func IsValidation(err error) bool {
	return matchAny(err, ErrInvalidAmount, ErrRecordNotFound, ErrInvalidLockup, ErrUnknownIntent, ErrInvalidTier, ErrInvalidAddress)
}

// IsState reports whether err stems from the current ledger state rejecting the request.
func IsState(err error) bool {
	return matchAny(err, ErrNoStake, ErrLockupActive, ErrNothingToClaim, ErrInsufficientPool, ErrNoEligibleStake,
		ErrDistributionInProgress, ErrNoDistribution, ErrRoundCrediting, ErrTransferPending, ErrTransferNotFound)
}

// IsArithmetic reports whether err is an overflow or division failure.
func IsArithmetic(err error) bool {
	return matchAny(err, ErrArithmeticOverflow, ErrDivisionByZero)
}

func matchAny(err error, targets ...error) bool {
	if err == nil {
		return false
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
