package validators

import (
	"fmt"
	"maps"
	"math"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region geofence
const (
	DefaultGeofenceX = 10.0
	DefaultGeofenceY = 10.0
)

// Geofence keeps the robot inside a rectangular envelope centred on the origin.
// It looks only at the current pose, never at where the action would move the
// robot, so any action is blocked while the robot is outside the envelope.
type Geofence struct {
	xLimit float64
	yLimit float64
}

// NewGeofence creates the check. Limits must be finite and non-negative.
func NewGeofence(xLimit, yLimit float64) (*Geofence, error) {
	if err := checkLimit("x_limit", xLimit); err != nil {
		return nil, err
	}
	if err := checkLimit("y_limit", yLimit); err != nil {
		return nil, err
	}
	return &Geofence{xLimit: xLimit, yLimit: yLimit}, nil
}

// Name identifies the check in diagnostics.
func (g *Geofence) Name() string { return "GeofencePolicy" }

// Check raises GEO_001 when |x| or |y| of the pose exceeds its limit.
func (g *Geofence) Check(st state.SystemState, _ action.ProposedAction) (*supervisor.Violation, error) {
	x := st.PoseValue("x")
	y := st.PoseValue("y")

	if math.Abs(x) <= g.xLimit && math.Abs(y) <= g.yLimit {
		return nil, nil
	}

	return &supervisor.Violation{
		RuleID:      supervisor.RuleGeofence,
		Description: fmt.Sprintf("System outside operational area (%g, %g)", x, y),
		Severity:    supervisor.SeverityCritical,
		Context: map[string]any{
			"pose":   maps.Clone(st.Pose),
			"limits": [2]float64{g.xLimit, g.yLimit},
		},
	}, nil
}

// #endregion geofence
