package validators

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region uncertainty

// DefaultRequiredSensors is used when no sensors are configured.
var DefaultRequiredSensors = []string{"lidar", "imu"}

// ErrEmptySensorName is returned when a required sensor name is blank.
var ErrEmptySensorName = errors.New("empty sensor name")

// Uncertainty gates actions on the health of required sensors.
//
// A state that reports no sensor health at all is treated as healthy. A sensor
// absent from a non-empty report is also treated as healthy; only an explicit
// false blocks.
type Uncertainty struct {
	required []string
}

// NewUncertainty creates the check. With no sensors it falls back to DefaultRequiredSensors.
func NewUncertainty(sensors ...string) (*Uncertainty, error) {
	if len(sensors) == 0 {
		sensors = DefaultRequiredSensors
	}
	for i, s := range sensors {
		if s == "" {
			return nil, fmt.Errorf("required sensor %d: %w", i, ErrEmptySensorName)
		}
	}
	return &Uncertainty{required: slices.Clone(sensors)}, nil
}

// Name identifies the check in diagnostics.
func (u *Uncertainty) Name() string { return "UncertaintyCheck" }

// RequiredSensors returns the configured sensors in check order.
func (u *Uncertainty) RequiredSensors() []string { return slices.Clone(u.required) }

// Check raises UNCERT_001 for the first required sensor explicitly reported unhealthy.
func (u *Uncertainty) Check(st state.SystemState, _ action.ProposedAction) (*supervisor.Violation, error) {
	if !st.SensorReported() {
		return nil, nil
	}

	for _, sensor := range u.required {
		healthy, reported := st.SensorHealth[sensor]
		if !reported || healthy {
			continue
		}
		return &supervisor.Violation{
			RuleID:      supervisor.RuleSensorHealth,
			Description: fmt.Sprintf("Critical sensor '%s' reported unhealthy", sensor),
			Severity:    supervisor.SeverityCritical,
			Context: map[string]any{
				"sensor":        sensor,
				"sensor_health": maps.Clone(st.SensorHealth),
			},
		}, nil
	}
	return nil, nil
}

// #endregion uncertainty
