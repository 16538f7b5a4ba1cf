package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region helpers
func sampleReport(decision supervisor.Decision) supervisor.Report {
	st := state.New(
		map[string]float64{"x": 1, "y": 2},
		map[string]float64{"vx": 0.5},
		map[string]bool{"lidar": true, "imu": true},
	)
	act := action.New("act-1", action.VelocityCmd, map[string]any{"v": 5.0, "w": 0.1}, "planner")

	out := supervisor.Outcome{Decision: decision, ProcessingTime: 1234 * time.Microsecond}
	switch decision {
	case supervisor.Approved:
		out.Reason = "Safe"
	case supervisor.Modified:
		corrected := act.WithPayload(map[string]any{"v": 2.0, "w": 0.1})
		out.CorrectedAction = &corrected
		out.Reason = "Action Clamped to Limits"
		out.Violations = []supervisor.Violation{{
			RuleID:      supervisor.RuleLinearVelocity,
			Description: "Linear velocity 5.00 exceeds 2.00",
			Severity:    supervisor.SeverityCritical,
			Context:     map[string]any{"current_v": 5.0, "max_v": 2.0},
		}}
	default:
		out.Reason = "Blocked by 1 checks"
		out.Violations = []supervisor.Violation{{
			RuleID:      supervisor.RuleGeofence,
			Description: "Robot outside geofence",
			Severity:    supervisor.SeverityCritical,
		}}
	}
	return supervisor.Report{State: st, Action: act, Outcome: out}
}

// recordingReporter stores every report it receives.
type recordingReporter struct {
	mu      sync.Mutex
	name    string
	err     error
	delay   time.Duration
	calls   atomic.Int32
	reports []supervisor.Report
}

func (r *recordingReporter) Name() string { return r.name }

func (r *recordingReporter) Report(ctx context.Context, rep supervisor.Report) error {
	r.calls.Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
	return r.err
}

func (r *recordingReporter) received() []supervisor.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]supervisor.Report, len(r.reports))
	copy(out, r.reports)
	return out
}

var errSink = errors.New("sink unavailable")

// #endregion helpers
