package staking

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

const (
	// BasisPoints is the denominator for every multiplier and boost.
	BasisPoints uint64 = 10_000
)

// MaxAmount is the largest token quantity the ledger accepts (2^128 - 1).
var MaxAmount = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

var bpsDenominator = uint256.NewInt(BasisPoints)

func zeroAmount() *uint256.Int { return new(uint256.Int) }

func copyAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func isZero(v *uint256.Int) bool { return v == nil || v.IsZero() }

// addAmount returns a+b, failing when the sum leaves the 128-bit range.
func addAmount(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(copyAmount(a), copyAmount(b))
	if overflow || sum.Gt(MaxAmount) {
		return nil, ErrArithmeticOverflow
	}
	return sum, nil
}

// subAmount returns a-b, failing on underflow.
func subAmount(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(copyAmount(a), copyAmount(b))
	if underflow {
		return nil, ErrArithmeticOverflow
	}
	return diff, nil
}

// addPoints sums weighted points, which are allowed the full 256-bit range.
func addPoints(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(copyAmount(a), copyAmount(b))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return sum, nil
}

// weightedPoints computes amount * weightBps * boostBps / 10_000.
func weightedPoints(amount *uint256.Int, weightBps, boostBps uint64) (*uint256.Int, error) {
	if isZero(amount) || weightBps == 0 || boostBps == 0 {
		return new(uint256.Int), nil
	}
	scaled, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(weightBps))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	points, overflow := new(uint256.Int).MulDivOverflow(scaled, uint256.NewInt(boostBps), bpsDenominator)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return points, nil
}

// proportionalShare returns floor(release * points / total).
func proportionalShare(release, points, total *uint256.Int) (*uint256.Int, error) {
	if isZero(total) {
		return nil, ErrDivisionByZero
	}
	share, overflow := new(uint256.Int).MulDivOverflow(release, points, total)
	if overflow || share.Gt(MaxAmount) {
		return nil, ErrArithmeticOverflow
	}
	return share, nil
}

// ParseAmount decodes a base-10 token quantity.
func ParseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if value.Gt(MaxAmount) {
		return nil, ErrArithmeticOverflow
	}
	return value, nil
}

// FormatAmount renders an amount in base 10, treating nil as zero.
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// AmountFromBig converts a big integer, rejecting negatives and values above MaxAmount.
func AmountFromBig(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow || out.Gt(MaxAmount) {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}
