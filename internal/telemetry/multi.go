package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region naming
// Named is implemented by reporters that can identify their sink.
type Named interface {
	Name() string
}

// SinkName returns r's name, or "reporter" when it has none.
func SinkName(r supervisor.Reporter) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return "reporter"
}

// #endregion naming

// #region multi
// MultiReporter fans each report out to every sink in order.
type MultiReporter struct {
	sinks []supervisor.Reporter
}

// NewMultiReporter skips nil sinks.
func NewMultiReporter(sinks ...supervisor.Reporter) *MultiReporter {
	m := &MultiReporter{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name identifies the sink in diagnostics.
func (m *MultiReporter) Name() string { return "multi" }

// Len returns the number of sinks.
func (m *MultiReporter) Len() int { return len(m.sinks) }

// Report delivers to every sink even when earlier ones fail.
func (m *MultiReporter) Report(ctx context.Context, r supervisor.Report) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Report(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", SinkName(s), err))
		}
	}
	return errors.Join(errs...)
}

// #endregion multi
