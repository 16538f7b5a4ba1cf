package supervisor

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
)

// #region severity
// Severity grades a single violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// #endregion severity

// #region rule-ids
// Rule identifiers are namespaced by validator family; the prefix decides
// whether a violation is eligible for automatic correction.
const (
	RuleLinearVelocity  = "PHYS_001"   // context: current_v, max_v
	RuleAngularVelocity = "PHYS_002"   // context: current_w, max_w
	RuleGeofence        = "GEO_001"    // context: pose, limits
	RuleSensorHealth    = "UNCERT_001" // context: sensor_health, sensor
	RuleMalformedInput  = "INPUT_001"  // context: field, value
	RuleValidatorFault  = "SUP_001"    // context: validator, error

	PhysicalFamily = "PHYS"
)

// Context keys carrying clamp limits for the physical family.
const (
	CtxCurrentV = "current_v"
	CtxMaxV     = "max_v"
	CtxCurrentW = "current_w"
	CtxMaxW     = "max_w"
)

// #endregion rule-ids

// #region violation
// Violation is evidence from one validator that an action is unsafe given a state.
// Context is filled at construction and carries the values the clamping step needs.
type Violation struct {
	RuleID      string         `json:"rule_id"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	Context     map[string]any `json:"context,omitempty"`
}

// #endregion violation

// #region decision
// Decision is the supervisor's verdict. The declaration order is the severity order.
type Decision string

const (
	Approved      Decision = "approved"
	Modified      Decision = "modified"
	Rejected      Decision = "rejected"
	EmergencyStop Decision = "emergency_stop" // reserved; no built-in check produces it
)

// Severity ranks the decision: approved < modified < rejected < emergency_stop.
// Unknown values rank as emergency_stop so they are never treated as permissive.
func (d Decision) Severity() int {
	switch d {
	case Approved:
		return 0
	case Modified:
		return 1
	case Rejected:
		return 2
	default:
		return 3
	}
}

// MostSevere returns whichever of a and b is more restrictive.
func MostSevere(a, b Decision) Decision {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// #endregion decision

// #region outcome
// Outcome is the result of one evaluation.
// CorrectedAction is set if and only if Decision is Modified.
type Outcome struct {
	Decision        Decision
	CorrectedAction *action.ProposedAction
	Violations      []Violation
	Reason          string
	ProcessingTime  time.Duration
}

// IsSafe reports whether the action was approved unchanged.
func (o Outcome) IsSafe() bool {
	return o.Decision == Approved
}

// ProcessingTimeMS returns the processing time in fractional milliseconds.
func (o Outcome) ProcessingTimeMS() float64 {
	return float64(o.ProcessingTime) / float64(time.Millisecond)
}

// RuleIDs lists the rule identifiers of every violation, in order.
func (o Outcome) RuleIDs() []string {
	ids := make([]string, len(o.Violations))
	for i, v := range o.Violations {
		ids[i] = v.RuleID
	}
	return ids
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s (%d violations, %.3fms)", o.Decision, o.Reason, len(o.Violations), o.ProcessingTimeMS())
}

// #endregion outcome

// #region mode
// Mode summarises the supervisor's recent verdicts for operators.
// It is informational and never feeds back into decisions.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeDegraded  Mode = "degraded"
	ModeEmergency Mode = "emergency"
)

func modeFor(d Decision) Mode {
	switch d {
	case Rejected:
		return ModeDegraded
	case EmergencyStop:
		return ModeEmergency
	default:
		return ModeNormal
	}
}

// #endregion mode
