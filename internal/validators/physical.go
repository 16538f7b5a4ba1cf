package validators

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region physical-config
const (
	DefaultMaxLinearVelocity  = 2.0
	DefaultMaxAngularVelocity = 1.0
)

// #endregion physical-config

// #region physical
// PhysicalConstraint bounds the linear and angular speed of velocity commands.
type PhysicalConstraint struct {
	maxV float64
	maxW float64
}

// NewPhysicalConstraint creates the check. Limits must be finite and non-negative.
func NewPhysicalConstraint(maxLinear, maxAngular float64) (*PhysicalConstraint, error) {
	if err := checkLimit("max_linear_velocity", maxLinear); err != nil {
		return nil, err
	}
	if err := checkLimit("max_angular_velocity", maxAngular); err != nil {
		return nil, err
	}
	return &PhysicalConstraint{maxV: maxLinear, maxW: maxAngular}, nil
}

// Name identifies the check in diagnostics.
func (p *PhysicalConstraint) Name() string { return "PhysicalConstraints" }

// Limits returns the configured linear and angular limits.
func (p *PhysicalConstraint) Limits() (maxLinear, maxAngular float64) { return p.maxV, p.maxW }

// Check ignores every action kind except velocity commands. Linear speed is
// checked first; when it is violated angular speed is not examined this call.
func (p *PhysicalConstraint) Check(_ state.SystemState, act action.ProposedAction) (*supervisor.Violation, error) {
	if act.Type != action.VelocityCmd {
		return nil, nil
	}

	v, _, err := act.Float(action.LinearVelocity)
	if err != nil {
		return malformed(err), nil
	}
	w, _, err := act.Float(action.AngularVelocity)
	if err != nil {
		return malformed(err), nil
	}
	v, w = math.Abs(v), math.Abs(w)

	if v > p.maxV {
		return &supervisor.Violation{
			RuleID:      supervisor.RuleLinearVelocity,
			Description: fmt.Sprintf("Linear velocity %.2f exceeds limit %g", v, p.maxV),
			Severity:    supervisor.SeverityCritical,
			Context: map[string]any{
				supervisor.CtxCurrentV: v,
				supervisor.CtxMaxV:     p.maxV,
			},
		}, nil
	}

	if w > p.maxW {
		return &supervisor.Violation{
			RuleID:      supervisor.RuleAngularVelocity,
			Description: fmt.Sprintf("Angular velocity %.2f exceeds limit %g", w, p.maxW),
			Severity:    supervisor.SeverityCritical,
			Context: map[string]any{
				supervisor.CtxCurrentW: w,
				supervisor.CtxMaxW:     p.maxW,
			},
		}, nil
	}

	return nil, nil
}

// #endregion physical

// #region malformed
func malformed(err error) *supervisor.Violation {
	var fe *action.FieldError
	ctx := map[string]any{"error": err.Error()}
	if errors.As(err, &fe) {
		ctx["field"] = fe.Field
		ctx["value"] = fmt.Sprintf("%v", fe.Value)
	}
	return &supervisor.Violation{
		RuleID:      supervisor.RuleMalformedInput,
		Description: fmt.Sprintf("Malformed command: %v", err),
		Severity:    supervisor.SeverityCritical,
		Context:     ctx,
	}
}

// #endregion malformed
