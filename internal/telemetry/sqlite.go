package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/logging"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region sqlite
// SQLiteReporter appends every decision to a local decision log, with state and
// action snapshots so the decision can be replayed.
type SQLiteReporter struct {
	log *logging.DecisionLog
}

// NewSQLiteReporter writes to an open decision log. The caller owns the log.
func NewSQLiteReporter(l *logging.DecisionLog) *SQLiteReporter {
	return &SQLiteReporter{log: l}
}

// Name identifies the sink in diagnostics.
func (s *SQLiteReporter) Name() string { return "sqlite" }

// Report appends one row.
func (s *SQLiteReporter) Report(ctx context.Context, r supervisor.Report) error {
	entry, err := EntryFromReport(r)
	if err != nil {
		return err
	}
	return s.log.Append(ctx, entry)
}

// EntryFromReport converts a report into a decision log row.
func EntryFromReport(r supervisor.Report) (logging.DecisionEntry, error) {
	entry := logging.DecisionEntry{
		RecordID:         uuid.New().String(),
		ActionID:         r.Action.ID,
		ActionType:       string(r.Action.Type),
		Source:           r.Action.Source,
		Decision:         string(r.Outcome.Decision),
		Reason:           r.Outcome.Reason,
		RuleIDs:          r.Outcome.RuleIDs(),
		ProcessingTimeMS: r.Outcome.ProcessingTimeMS(),
	}

	var err error
	if entry.StateJSON, err = snapshot(r.State); err != nil {
		return entry, fmt.Errorf("snapshot state: %w", err)
	}
	if entry.ActionJSON, err = snapshot(r.Action); err != nil {
		return entry, fmt.Errorf("snapshot action: %w", err)
	}
	if len(r.Outcome.Violations) > 0 {
		if entry.ViolationsJSON, err = snapshot(r.Outcome.Violations); err != nil {
			return entry, fmt.Errorf("snapshot violations: %w", err)
		}
	}
	if r.Outcome.CorrectedAction != nil {
		if entry.CorrectedJSON, err = snapshot(r.Outcome.CorrectedAction); err != nil {
			return entry, fmt.Errorf("snapshot corrected action: %w", err)
		}
	}
	return entry, nil
}

func snapshot(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// #endregion sqlite
