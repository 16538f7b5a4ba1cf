package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope used for every FlowGuard instrument.
const MeterName = "flowguard.supervisor"

// Instruments holds the counters and histograms recorded on the decision path.
// All methods are safe on a nil receiver so callers can skip metrics entirely.
type Instruments struct {
	evaluations    metric.Int64Counter
	violations     metric.Int64Counter
	latency        metric.Float64Histogram
	reportFailures metric.Int64Counter
	reportsDropped metric.Int64Counter
}

// NewInstruments creates the supervisor instruments on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	var (
		i   Instruments
		err error
	)

	i.evaluations, err = meter.Int64Counter("flowguard.evaluations",
		metric.WithDescription("Safety evaluations by decision"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create evaluations counter: %w", err)
	}

	i.violations, err = meter.Int64Counter("flowguard.violations",
		metric.WithDescription("Violations raised by rule id"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create violations counter: %w", err)
	}

	i.latency, err = meter.Float64Histogram("flowguard.evaluation.duration",
		metric.WithDescription("Wall-clock time spent deciding on one action"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}

	i.reportFailures, err = meter.Int64Counter("flowguard.telemetry.failures",
		metric.WithDescription("Telemetry reports that failed to deliver"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create telemetry failure counter: %w", err)
	}

	i.reportsDropped, err = meter.Int64Counter("flowguard.telemetry.dropped",
		metric.WithDescription("Telemetry reports dropped because the queue was full"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create telemetry drop counter: %w", err)
	}

	return &i, nil
}

// Noop returns instruments backed by the no-op meter.
func Noop() *Instruments {
	i, _ := NewInstruments(noop.NewMeterProvider().Meter(MeterName))
	return i
}

// RecordEvaluation counts one evaluation, its latency, and each violated rule.
func (i *Instruments) RecordEvaluation(ctx context.Context, decision string, elapsed time.Duration, ruleIDs []string) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("decision", decision))
	i.evaluations.Add(ctx, 1, attrs)
	i.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	for _, id := range ruleIDs {
		i.violations.Add(ctx, 1, metric.WithAttributes(attribute.String("rule_id", id)))
	}
}

// RecordReportFailure counts a telemetry delivery failure for sink.
func (i *Instruments) RecordReportFailure(ctx context.Context, sink string) {
	if i == nil {
		return
	}
	i.reportFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// RecordDrop counts a telemetry report discarded before delivery.
func (i *Instruments) RecordDrop(ctx context.Context, sink string) {
	if i == nil {
		return
	}
	i.reportsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
