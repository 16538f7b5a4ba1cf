package action

import (
	"maps"
	"time"
)

// #region action-type
// ActionType tags the kind of command carried in a ProposedAction payload.
type ActionType string

const (
	VelocityCmd ActionType = "velocity_cmd"
	Trajectory  ActionType = "trajectory"
	TaskCommand ActionType = "task_command"
)

// Valid reports whether t is one of the known action kinds.
func (t ActionType) Valid() bool {
	switch t {
	case VelocityCmd, Trajectory, TaskCommand:
		return true
	}
	return false
}

// #endregion action-type

// #region sources
const (
	// SourceUnknown is used when the planner did not label the action.
	SourceUnknown = "unknown"
	// SourceSupervisor marks an action rewritten by the safety supervisor.
	SourceSupervisor = "FlowGuardModifier"
)

// #endregion sources

// #region proposed-action
// ProposedAction is a command an upstream planner wants sent to the actuators.
// The supervisor never mutates a caller's action; corrections are new values.
type ProposedAction struct {
	ID        string         `json:"action_id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      ActionType     `json:"type"`
	Payload   map[string]any `json:"payload"`
	Source    string         `json:"source"`
}

// New builds an action stamped with the current UTC time.
// An empty source is recorded as SourceUnknown.
func New(id string, typ ActionType, payload map[string]any, source string) ProposedAction {
	if source == "" {
		source = SourceUnknown
	}
	return ProposedAction{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Payload:   payload,
		Source:    source,
	}
}

// WithPayload returns a copy of a carrying payload and marked as supervisor-generated.
func (a ProposedAction) WithPayload(payload map[string]any) ProposedAction {
	return ProposedAction{
		ID:        a.ID,
		Timestamp: time.Now().UTC(),
		Type:      a.Type,
		Payload:   payload,
		Source:    SourceSupervisor,
	}
}

// ClonePayload returns a shallow copy of the payload map, never nil.
func (a ProposedAction) ClonePayload() map[string]any {
	if a.Payload == nil {
		return map[string]any{}
	}
	return maps.Clone(a.Payload)
}

// #endregion proposed-action
