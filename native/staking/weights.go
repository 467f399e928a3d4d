package staking

import (
	"fmt"
	"sort"
)

// WeightStep maps every elapsed duration up to Threshold (inclusive, seconds)
// onto MultiplierBps.
type WeightStep struct {
	Threshold     uint64
	MultiplierBps uint64
}

// WeightTable is a monotone step function from elapsed stake duration to a
// basis-point multiplier.
type WeightTable struct {
	steps      []WeightStep
	defaultBps uint64
}

// NewWeightTable validates the steps and returns an immutable table. Steps may
// be supplied in any order; thresholds must be distinct.
func NewWeightTable(steps []WeightStep, defaultBps uint64) (*WeightTable, error) {
	sorted := make([]WeightStep, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold < sorted[j].Threshold })
	for i := range sorted {
		if sorted[i].MultiplierBps == 0 {
			return nil, fmt.Errorf("weight step %d: multiplier must be positive", i)
		}
		if i == 0 {
			continue
		}
		if sorted[i].Threshold == sorted[i-1].Threshold {
			return nil, fmt.Errorf("weight step %d: duplicate threshold %d", i, sorted[i].Threshold)
		}
		if sorted[i].MultiplierBps < sorted[i-1].MultiplierBps {
			return nil, fmt.Errorf("weight step %d: multiplier %d below preceding %d", i, sorted[i].MultiplierBps, sorted[i-1].MultiplierBps)
		}
	}
	if defaultBps == 0 {
		return nil, fmt.Errorf("default multiplier must be positive")
	}
	if n := len(sorted); n > 0 && defaultBps < sorted[n-1].MultiplierBps {
		return nil, fmt.Errorf("default multiplier %d below last step %d", defaultBps, sorted[n-1].MultiplierBps)
	}
	return &WeightTable{steps: sorted, defaultBps: defaultBps}, nil
}

// DefaultWeightTable rewards longer commitments: 1.0x up to 30 days, then
// 1.25x, 1.5x and 2x for 90 days, 180 days and beyond.
func DefaultWeightTable() *WeightTable {
	table, err := NewWeightTable([]WeightStep{
		{Threshold: 30 * day, MultiplierBps: 10_000},
		{Threshold: 90 * day, MultiplierBps: 12_500},
		{Threshold: 180 * day, MultiplierBps: 15_000},
	}, 20_000)
	if err != nil {
		panic(err)
	}
	return table
}

// WeightFor returns the multiplier of the smallest threshold >= elapsed, or the
// default multiplier when elapsed exceeds every threshold.
func (t *WeightTable) WeightFor(elapsed uint64) uint64 {
	if t == nil {
		return BasisPoints
	}
	idx := sort.Search(len(t.steps), func(i int) bool { return t.steps[i].Threshold >= elapsed })
	if idx == len(t.steps) {
		return t.defaultBps
	}
	return t.steps[idx].MultiplierBps
}

// Steps returns a copy of the ascending steps.
func (t *WeightTable) Steps() []WeightStep {
	if t == nil {
		return nil
	}
	out := make([]WeightStep, len(t.steps))
	copy(out, t.steps)
	return out
}

// DefaultBps returns the multiplier applied beyond the last threshold.
func (t *WeightTable) DefaultBps() uint64 {
	if t == nil {
		return BasisPoints
	}
	return t.defaultBps
}
