package supervisor

import (
	"context"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
)

// #region validator
// Validator is one independent safety check.
//
// Check returns nil, nil when the action is safe. It must not mutate st or act,
// must depend only on its inputs and its construction-time configuration, and
// returns at most one violation per call. A non-nil error (or a panic) is a
// fault in the check itself; the supervisor treats it as a critical violation.
type Validator interface {
	Name() string
	Check(st state.SystemState, act action.ProposedAction) (*Violation, error)
}

// #endregion validator

// #region reporter
// Report is what the supervisor hands to telemetry after each evaluation.
type Report struct {
	State   state.SystemState
	Action  action.ProposedAction
	Outcome Outcome
}

// Reporter delivers a decision record to an observability collaborator.
// Implementations honour ctx and return their delivery error; the supervisor
// only logs and counts that error.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, r Report) error

// Report calls f(ctx, r).
func (f ReporterFunc) Report(ctx context.Context, r Report) error {
	return f(ctx, r)
}

// #endregion reporter
