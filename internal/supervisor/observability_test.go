package supervisor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/observability"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

func TestEvaluate_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inst, err := observability.NewInstruments(mp.Meter(observability.MeterName))
	require.NoError(t, err)

	s := newSupervisor(t, supervisor.WithInstruments(inst))
	s.Evaluate(context.Background(), origin(), velocityCmd(1.0, 0.1))
	s.Evaluate(context.Background(), origin(), velocityCmd(5.0, 0.1))
	s.Evaluate(context.Background(), origin(), velocityCmd(9.0, 0.1))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	evals := counterByAttr(t, rm, "flowguard.evaluations", "decision")
	assert.Equal(t, int64(1), evals["approved"])
	assert.Equal(t, int64(2), evals["modified"])

	violations := counterByAttr(t, rm, "flowguard.violations", "rule_id")
	assert.Equal(t, int64(2), violations[supervisor.RuleLinearVelocity])

	assert.True(t, hasMetric(rm, "flowguard.evaluation.duration"))
}

func TestEvaluate_EmitsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	s := newSupervisor(t, supervisor.WithTracer(tp.Tracer("test")))

	s.Evaluate(context.Background(), origin(), velocityCmd(5.0, 0.1))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "supervisor.Evaluate", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "cmd-1", attrs["action.id"])
	assert.Equal(t, "modified", attrs["decision"])
	assert.Equal(t, "1", attrs["violations"])
}

func counterByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(key))
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}
