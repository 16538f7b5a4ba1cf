package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
// The *JSON fields hold snapshots so a decision can be replayed later.
type DecisionEntry struct {
	RecordID         string
	ActionID         string
	ActionType       string
	Source           string
	Decision         string // "approved" | "modified" | "rejected" | "emergency_stop"
	Reason           string
	RuleIDs          []string
	ViolationsJSON   string
	StateJSON        string
	ActionJSON       string
	CorrectedJSON    string
	ProcessingTimeMS float64
	CreatedAt        time.Time
}

// #endregion decision-entry
