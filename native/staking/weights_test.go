package staking

import "testing"

func TestWeightForSelectsSmallestThresholdAtOrAboveElapsed(t *testing.T) {
	table, err := NewWeightTable([]WeightStep{
		{Threshold: 90, MultiplierBps: 12_000},
		{Threshold: 30, MultiplierBps: 10_000},
		{Threshold: 180, MultiplierBps: 15_000},
	}, 20_000)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	cases := []struct {
		elapsed uint64
		want    uint64
	}{
		{0, 10_000},
		{30, 10_000},
		{31, 12_000},
		{90, 12_000},
		{91, 15_000},
		{180, 15_000},
		{181, 20_000},
		{1 << 40, 20_000},
	}
	for _, tc := range cases {
		if got := table.WeightFor(tc.elapsed); got != tc.want {
			t.Fatalf("WeightFor(%d) = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestWeightTableRejectsInvalidSteps(t *testing.T) {
	cases := map[string]struct {
		steps []WeightStep
		def   uint64
	}{
		"decreasing multiplier": {
			steps: []WeightStep{{Threshold: 10, MultiplierBps: 12_000}, {Threshold: 20, MultiplierBps: 11_000}},
			def:   13_000,
		},
		"duplicate threshold": {
			steps: []WeightStep{{Threshold: 10, MultiplierBps: 10_000}, {Threshold: 10, MultiplierBps: 11_000}},
			def:   13_000,
		},
		"default below last": {
			steps: []WeightStep{{Threshold: 10, MultiplierBps: 15_000}},
			def:   12_000,
		},
		"zero multiplier": {
			steps: []WeightStep{{Threshold: 10, MultiplierBps: 0}},
			def:   12_000,
		},
		"zero default": {
			def: 0,
		},
	}
	for name, tc := range cases {
		if _, err := NewWeightTable(tc.steps, tc.def); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDefaultWeightTableIsMonotone(t *testing.T) {
	table := DefaultWeightTable()
	prev := uint64(0)
	for elapsed := uint64(0); elapsed <= 400*day; elapsed += day {
		got := table.WeightFor(elapsed)
		if got < prev {
			t.Fatalf("weight decreased at %d: %d < %d", elapsed, got, prev)
		}
		prev = got
	}
	if table.DefaultBps() != 20_000 {
		t.Fatalf("unexpected default %d", table.DefaultBps())
	}
}
