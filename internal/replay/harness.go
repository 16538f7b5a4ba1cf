package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/logging"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region types
// Evaluator is the part of the supervisor a replay needs.
type Evaluator interface {
	Evaluate(ctx context.Context, st state.SystemState, act action.ProposedAction) supervisor.Outcome
}

// Result captures the outcome of replaying one scenario.
type Result struct {
	Name     string
	ActionID string
	Outcome  supervisor.Outcome
	Expected supervisor.Decision // empty when the scenario carried no expectation
	Match    bool
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total      int
	ByDecision map[supervisor.Decision]int
	Checked    int
	Mismatches int
}

// OK reports whether every checked scenario matched.
func (s Summary) OK() bool {
	return s.Mismatches == 0
}

// #endregion types

// #region replay
// Replay evaluates each scenario in order and compares the verdict to the
// expected decision and, when given, the expected rule ids.
func Replay(ctx context.Context, ev Evaluator, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		out := ev.Evaluate(ctx, sc.State, sc.Action)
		results = append(results, Result{
			Name:     sc.Name,
			ActionID: sc.Action.ID,
			Outcome:  out,
			Expected: sc.Expected,
			Match:    matches(sc, out),
		})
	}
	return results
}

func matches(sc Scenario, out supervisor.Outcome) bool {
	if sc.Expected != "" && sc.Expected != out.Decision {
		return false
	}
	if len(sc.ExpectedRules) > 0 && !slices.Equal(sc.ExpectedRules, out.RuleIDs()) {
		return false
	}
	return true
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:      len(results),
		ByDecision: make(map[supervisor.Decision]int),
	}
	for _, r := range results {
		s.ByDecision[r.Outcome.Decision]++
		if r.Expected != "" {
			s.Checked++
		}
		if !r.Match {
			s.Mismatches++
		}
	}
	return s
}

// #endregion replay

// #region decision-log
// FromDecisionLog rebuilds scenarios from decision log rows, expecting each row's
// recorded decision. Rows must carry state and action snapshots.
func FromDecisionLog(rows []logging.DecisionEntry) ([]Scenario, error) {
	scenarios := make([]Scenario, 0, len(rows))
	for _, row := range rows {
		if row.StateJSON == "" || row.ActionJSON == "" {
			return nil, fmt.Errorf("record %s: missing state or action snapshot", row.RecordID)
		}
		var sc Scenario
		if err := json.Unmarshal([]byte(row.StateJSON), &sc.State); err != nil {
			return nil, fmt.Errorf("record %s: decode state: %w", row.RecordID, err)
		}
		if err := json.Unmarshal([]byte(row.ActionJSON), &sc.Action); err != nil {
			return nil, fmt.Errorf("record %s: decode action: %w", row.RecordID, err)
		}
		sc.Name = row.RecordID
		sc.Expected = supervisor.Decision(row.Decision)
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// #endregion decision-log
