package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type StakingMetrics struct {
	stakes          prometheus.Counter
	unstakes        prometheus.Counter
	claims          prometheus.Counter
	fundings        prometheus.Counter
	distributions   *prometheus.CounterVec
	transferOutcome *prometheus.CounterVec
	poolBalance     prometheus.Gauge
	totalStaked     prometheus.Gauge
	pendingTransfer prometheus.Gauge
	roundingDust    prometheus.Counter
	reconRuns       *prometheus.CounterVec
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			stakes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_stakes_total",
				Help: "Count of stake records created.",
			}),
			unstakes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_unstakes_total",
				Help: "Count of stake records withdrawn.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_claims_total",
				Help: "Count of reward claims accepted.",
			}),
			fundings: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_fundings_total",
				Help: "Count of funding log entries.",
			}),
			distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_distributions_total",
				Help: "Distribution rounds closed, by outcome.",
			}, []string{"outcome"}),
			transferOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_transfers_total",
				Help: "Outbound transfer lifecycle transitions by kind and outcome.",
			}, []string{"kind", "outcome"}),
			poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_pool_balance",
				Help: "Spendable reward pool balance.",
			}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_total_staked",
				Help: "Principal locked across every account.",
			}),
			pendingTransfer: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_pending_transfers",
				Help: "Outbound transfers awaiting confirmation.",
			}),
			roundingDust: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_rounding_dust_total",
				Help: "Cumulative rounding remainder retained in the pool.",
			}),
			reconRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_reconcile_runs_total",
				Help: "Reconciler passes by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			stakingRegistry.stakes,
			stakingRegistry.unstakes,
			stakingRegistry.claims,
			stakingRegistry.fundings,
			stakingRegistry.distributions,
			stakingRegistry.transferOutcome,
			stakingRegistry.poolBalance,
			stakingRegistry.totalStaked,
			stakingRegistry.pendingTransfer,
			stakingRegistry.roundingDust,
			stakingRegistry.reconRuns,
		)
	})
	return stakingRegistry
}

func (m *StakingMetrics) ObserveStake() {
	if m == nil {
		return
	}
	m.stakes.Inc()
}

func (m *StakingMetrics) ObserveUnstake() {
	if m == nil {
		return
	}
	m.unstakes.Inc()
}

func (m *StakingMetrics) ObserveClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

func (m *StakingMetrics) ObserveFunding() {
	if m == nil {
		return
	}
	m.fundings.Inc()
}

// ObserveDistribution records a closed round. Outcome is "settled" or "aborted".
func (m *StakingMetrics) ObserveDistribution(outcome string, dust *uint256.Int) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.distributions.WithLabelValues(outcome).Inc()
	if dust != nil && !dust.IsZero() {
		m.roundingDust.Add(amountToFloat(dust))
	}
}

func (m *StakingMetrics) ObserveTransfer(kind, outcome string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.transferOutcome.WithLabelValues(kind, outcome).Inc()
}

// SetLedger publishes the pool gauges.
func (m *StakingMetrics) SetLedger(balance, staked *uint256.Int, pending int) {
	if m == nil {
		return
	}
	m.poolBalance.Set(amountToFloat(balance))
	m.totalStaked.Set(amountToFloat(staked))
	m.pendingTransfer.Set(float64(pending))
}

func (m *StakingMetrics) ObserveReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconRuns.WithLabelValues(outcome).Inc()
}

func amountToFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value.ToBig()).Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
