package supervisor_test

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

func properties(t *testing.T) *gopter.Properties {
	t.Helper()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return gopter.NewProperties(parameters)
}

func stateAt(x, y float64, lidar bool) state.SystemState {
	return state.New(
		map[string]float64{"x": x, "y": y},
		nil,
		map[string]bool{"lidar": lidar, "imu": true},
	)
}

// TestProperty_WithinLimitsApproved: inside every limit means approved with no violations.
func TestProperty_WithinLimitsApproved(t *testing.T) {
	s := newSupervisor(t)
	props := properties(t)

	props.Property("in-bounds commands are approved", prop.ForAll(
		func(v, w, x, y float64) bool {
			out := s.Evaluate(context.Background(), stateAt(x, y, true), velocityCmd(v, w))
			return out.Decision == supervisor.Approved && len(out.Violations) == 0 && out.CorrectedAction == nil
		},
		gen.Float64Range(-2, 2),
		gen.Float64Range(-1, 1),
		gen.Float64Range(-10, 10),
		gen.Float64Range(-10, 10),
	))

	props.TestingRun(t)
}

// TestProperty_ClampToLimit: a purely physical breach is corrected onto the limit.
// The limit bounds |v|: a reverse command clamps to -max_v and keeps its direction.
func TestProperty_ClampToLimit(t *testing.T) {
	s := newSupervisor(t)
	props := properties(t)

	props.Property("over-limit linear speed clamps to max_v", prop.ForAll(
		func(v, w float64, reverse bool) bool {
			if reverse {
				v = -v
			}
			out := s.Evaluate(context.Background(), stateAt(0, 0, true), velocityCmd(v, w))
			if out.Decision != supervisor.Modified || out.CorrectedAction == nil {
				return false
			}
			got, _, err := out.CorrectedAction.Float(action.LinearVelocity)
			return err == nil && math.Abs(got) == 2.0 && math.Signbit(got) == math.Signbit(v) &&
				out.CorrectedAction.Payload["w"] == w
		},
		gen.Float64Range(2.0001, 1000),
		gen.Float64Range(-1, 1),
		gen.Bool(),
	))

	props.TestingRun(t)
}

// TestProperty_NonPhysicalRejects: any geofence or sensor violation forces rejection.
func TestProperty_NonPhysicalRejects(t *testing.T) {
	s := newSupervisor(t)
	props := properties(t)

	props.Property("mixed or non-physical violations reject", prop.ForAll(
		func(v, x float64, lidar bool) bool {
			out := s.Evaluate(context.Background(), stateAt(x, 0, lidar), velocityCmd(v, 0.0))
			return out.Decision == supervisor.Rejected &&
				out.CorrectedAction == nil &&
				slices.Contains(out.RuleIDs(), supervisor.RuleGeofence)
		},
		gen.Float64Range(-10, 10),
		gen.Float64Range(10.0001, 500),
		gen.Bool(),
	))

	props.TestingRun(t)
}

// TestProperty_CorrectionIdempotent: re-evaluating a corrected action approves it,
// including reverse commands clamped to -max_v, since limits bound |v| and |w|.
func TestProperty_CorrectionIdempotent(t *testing.T) {
	s := newSupervisor(t)
	props := properties(t)

	props.Property("corrected action is approved", prop.ForAll(
		func(v, w float64) bool {
			st := stateAt(0, 0, true)
			out := s.Evaluate(context.Background(), st, velocityCmd(v, w))
			if out.Decision == supervisor.Approved {
				return true
			}
			if out.Decision != supervisor.Modified {
				return false
			}
			again := s.Evaluate(context.Background(), st, *out.CorrectedAction)
			return again.Decision == supervisor.Approved
		},
		gen.Float64Range(-50, 50),
		gen.Float64Range(-50, 50),
	))

	props.TestingRun(t)
}

// TestProperty_OrderIndependentDetection: every registration order finds the same rule set.
func TestProperty_OrderIndependentDetection(t *testing.T) {
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	sups := make([]*supervisor.Supervisor, len(orders))
	for i, order := range orders {
		vs := builtins(t)
		s := supervisor.New()
		for _, j := range order {
			mustRegister(t, s, vs[j])
		}
		sups[i] = s
	}
	props := properties(t)

	props.Property("first-pass rule set does not depend on order", prop.ForAll(
		func(v, x float64, lidar bool) bool {
			st := stateAt(x, 0, lidar)
			act := velocityCmd(v, 0.0)

			var want []string
			for i, s := range sups {
				ids := s.Evaluate(context.Background(), st, act).RuleIDs()
				slices.Sort(ids)
				if i == 0 {
					want = ids
					continue
				}
				if !slices.Equal(ids, want) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(-5, 5),
		gen.Float64Range(-20, 20),
		gen.Bool(),
	))

	props.TestingRun(t)
}
