package supervisor

import (
	"math"
	"strings"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
)

// #region intervene

// intervene tries to repair act by clamping each violated field to the limit
// carried in its violation context. The corrected action is re-checked against
// the whole chain; a limit hidden by a validator's first-match rule surfaces on
// the next pass and is clamped in turn. It gives up when a pass finds anything
// that cannot be clamped or the pass budget runs out.
//
// all is every violation found, first pass included, in discovery order.
func (s *Supervisor) intervene(st state.SystemState, act action.ProposedAction, violations []Violation) (corrected *action.ProposedAction, all []Violation, ok bool) {
	all = violations
	current := act
	pending := violations

	for pass := 0; pass < s.maxCorrectionPasses; pass++ {
		if !clampable(current, pending) {
			return nil, all, false
		}

		payload := current.ClonePayload()
		applyClamps(payload, current, pending)
		current = current.WithPayload(payload)

		pending = s.runValidators(st, current)
		if len(pending) == 0 {
			return &current, all, true
		}
		all = append(all, pending...)
	}
	return nil, all, false
}

// #endregion

// #region eligibility

// clampable holds only for velocity commands whose violations all belong to the
// physical family and each carry a clamp limit. Geofence, sensor health, input
// and fault violations have no single-action fix, so any of them forces rejection.
func clampable(act action.ProposedAction, violations []Violation) bool {
	if act.Type != action.VelocityCmd || len(violations) == 0 {
		return false
	}
	for _, v := range violations {
		if !strings.HasPrefix(v.RuleID, PhysicalFamily) {
			return false
		}
		if _, ok := contextFloat(v.Context, CtxMaxV); ok {
			continue
		}
		if _, ok := contextFloat(v.Context, CtxMaxW); ok {
			continue
		}
		return false
	}
	return true
}

// #endregion

// #region clamp

// applyClamps overwrites each violated payload field with its limit, keeping the
// sign of the commanded value so a reverse command stays a reverse command.
func applyClamps(payload map[string]any, original action.ProposedAction, violations []Violation) {
	for _, v := range violations {
		// Limits bound the magnitude: v=-5 with max_v=2 becomes -2, not +2.
		if limit, ok := contextFloat(v.Context, CtxMaxV); ok {
			payload[action.LinearVelocity] = signedLimit(original, action.LinearVelocity, limit)
		}
		if limit, ok := contextFloat(v.Context, CtxMaxW); ok {
			payload[action.AngularVelocity] = signedLimit(original, action.AngularVelocity, limit)
		}
	}
}

func signedLimit(act action.ProposedAction, field string, limit float64) float64 {
	commanded, _, err := act.Float(field)
	if err == nil && commanded < 0 {
		return -limit
	}
	return limit
}

func contextFloat(ctx map[string]any, key string) (float64, bool) {
	switch n := ctx[key].(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// #endregion
