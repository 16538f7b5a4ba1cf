package state

import (
	"maps"
	"time"
)

// #region system-state
// SystemState is a timestamped snapshot of the robot produced once per control cycle.
// Treat it as read-only once built; the supervisor never retains it past one evaluation.
type SystemState struct {
	Timestamp    time.Time          `json:"timestamp"`
	Pose         map[string]float64 `json:"pose,omitempty"`          // x, y, z, roll, pitch, yaw
	Velocity     map[string]float64 `json:"velocity,omitempty"`      // vx, vy, vz, angular_v...
	SensorHealth map[string]bool    `json:"sensor_health,omitempty"` // sensor name -> healthy
	Environment  map[string]any     `json:"environment_context,omitempty"`
}

// #endregion system-state

// #region constructor
// New builds a SystemState stamped with the current UTC time.
func New(pose, velocity map[string]float64, health map[string]bool) SystemState {
	return SystemState{
		Timestamp:    time.Now().UTC(),
		Pose:         pose,
		Velocity:     velocity,
		SensorHealth: health,
	}
}

// #endregion constructor

// #region accessors
// PoseValue returns the named pose component, or 0 when absent.
func (s SystemState) PoseValue(key string) float64 {
	return s.Pose[key]
}

// VelocityValue returns the named velocity component, or 0 when absent.
func (s SystemState) VelocityValue(key string) float64 {
	return s.Velocity[key]
}

// SensorReported reports whether the state carries any sensor health at all.
func (s SystemState) SensorReported() bool {
	return len(s.SensorHealth) > 0
}

// Clone returns a copy whose maps can be modified without touching s.
// Environment values are copied shallowly.
func (s SystemState) Clone() SystemState {
	return SystemState{
		Timestamp:    s.Timestamp,
		Pose:         maps.Clone(s.Pose),
		Velocity:     maps.Clone(s.Velocity),
		SensorHealth: maps.Clone(s.SensorHealth),
		Environment:  maps.Clone(s.Environment),
	}
}

// #endregion accessors
