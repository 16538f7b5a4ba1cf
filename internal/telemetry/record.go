// Package telemetry implements supervisor.Reporter for the sinks FlowGuard can
// publish decision records to, plus the queueing and circuit-breaking wrappers
// that keep a slow or unreachable sink off the decision path.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region record
// ViolationRecord is the wire form of one violation.
type ViolationRecord struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// DecisionRecord is the wire shape published by every remote sink.
// The first five fields are the reference telemetry contract; the rest are additive.
type DecisionRecord struct {
	Decision         string            `json:"decision"`
	Reason           string            `json:"reason"`
	Violations       []ViolationRecord `json:"violations"`
	OriginalActionID string            `json:"original_action_id"`
	ProcessingTimeMS float64           `json:"processing_time_ms"`

	RecordID         string         `json:"record_id"`
	ActionType       string         `json:"action_type"`
	Source           string         `json:"source"`
	CorrectedPayload map[string]any `json:"corrected_payload,omitempty"`
	ReportedAt       time.Time      `json:"reported_at"`
}

// NewRecord flattens a supervisor report into a DecisionRecord with a fresh record id.
func NewRecord(r supervisor.Report) DecisionRecord {
	violations := make([]ViolationRecord, len(r.Outcome.Violations))
	for i, v := range r.Outcome.Violations {
		violations[i] = ViolationRecord{
			RuleID:      v.RuleID,
			Description: v.Description,
			Severity:    string(v.Severity),
		}
	}

	rec := DecisionRecord{
		Decision:         string(r.Outcome.Decision),
		Reason:           r.Outcome.Reason,
		Violations:       violations,
		OriginalActionID: r.Action.ID,
		ProcessingTimeMS: r.Outcome.ProcessingTimeMS(),
		RecordID:         uuid.New().String(),
		ActionType:       string(r.Action.Type),
		Source:           r.Action.Source,
		ReportedAt:       time.Now().UTC(),
	}
	if r.Outcome.CorrectedAction != nil {
		rec.CorrectedPayload = r.Outcome.CorrectedAction.Payload
	}
	return rec
}

// Marshal encodes the record as JSON.
func (d DecisionRecord) Marshal() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal decision record: %w", err)
	}
	return b, nil
}

// #endregion record
