// Package telemetry translates committed engine events into Prometheus
// counters and trace spans.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stakeledger/core/events"
	"stakeledger/native/staking"
	"stakeledger/observability"
	"stakeledger/observability/metrics"
	telemetry "stakeledger/observability/otel"
)

// Emitter implements events.Emitter on top of the metric registries.
type Emitter struct {
	metrics *metrics.StakingMetrics
	tracer  trace.Tracer
}

// NewEmitter returns an emitter bound to the process-wide registries.
func NewEmitter() *Emitter {
	return &Emitter{metrics: metrics.Staking(), tracer: telemetry.Tracer("stakingd/engine")}
}

var _ events.Emitter = (*Emitter)(nil)

// Emit records the event. It never blocks on I/O.
func (e *Emitter) Emit(evt events.Event) {
	raw, ok := events.Unwrap(evt)
	if !ok {
		return
	}
	observability.Events().RecordEmitted(raw.Type)
	attrs := raw.Attributes
	switch raw.Type {
	case staking.EventTypeStakeCreated:
		e.metrics.ObserveStake()
	case staking.EventTypeStakeUnstaked:
		e.metrics.ObserveUnstake()
	case staking.EventTypePoolFunded:
		e.metrics.ObserveFunding()
	case staking.EventTypeRewardsClaimed:
		e.metrics.ObserveClaim()
	case staking.EventTypeDistributionCompleted:
		dust, err := staking.ParseAmount(attrs["dust"])
		if err != nil {
			dust = nil
		}
		e.metrics.ObserveDistribution("completed", dust)
		e.span("distribution.completed", attrs)
	case staking.EventTypeDistributionAborted:
		e.metrics.ObserveDistribution("aborted", nil)
		e.span("distribution.aborted", attrs)
	case staking.EventTypeTransferConfirmed:
		e.metrics.ObserveTransfer(attrs["kind"], "confirmed")
	case staking.EventTypeTransferFailed:
		e.metrics.ObserveTransfer(attrs["kind"], "failed")
		e.span("transfer.failed", attrs)
	case staking.EventTypeTransferRetried:
		e.metrics.ObserveTransfer(attrs["kind"], "retried")
	case staking.EventTypeTransferDispatchError:
		e.metrics.ObserveTransfer(attrs["kind"], "dispatch_error")
		e.span("transfer.dispatch_error", attrs)
	}
}

// span records rare lifecycle events as zero-length spans so they show up
// alongside request traces.
func (e *Emitter) span(name string, attrs map[string]string) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	_, span := e.tracer.Start(context.Background(), name, trace.WithAttributes(kv...))
	span.End()
}
