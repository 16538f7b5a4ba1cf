package logging

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id          TEXT NOT NULL UNIQUE,
	action_id          TEXT NOT NULL,
	action_type        TEXT NOT NULL,
	source             TEXT,
	decision           TEXT NOT NULL,
	reason             TEXT,
	rule_ids           TEXT,
	violations_json    TEXT,
	state_json         TEXT,
	action_json        TEXT,
	corrected_json     TEXT,
	processing_time_ms REAL NOT NULL,
	created_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_log_decision
ON decision_log(decision, created_at);
`

const selectColumns = `record_id, action_id, action_type, source, decision, reason, rule_ids,
	violations_json, state_json, action_json, corrected_json, processing_time_ms, created_at`

// #endregion schema

// #region store-struct
// DecisionLog persists supervisor decisions in SQLite.
type DecisionLog struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// Open opens (or creates) a SQLite database at dbPath and runs migrations.
func Open(dbPath string) (*DecisionLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=100"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	l, err := NewDecisionLog(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// NewDecisionLog migrates the decision_log table on an existing connection.
func NewDecisionLog(db *sql.DB) (*DecisionLog, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DecisionLog{db: db}, nil
}

// Close closes the underlying database connection.
func (l *DecisionLog) Close() error {
	return l.db.Close()
}

// DB returns the underlying *sql.DB.
func (l *DecisionLog) DB() *sql.DB {
	return l.db
}

// #endregion constructor

// #region append
// Append writes one decision row.
func (l *DecisionLog) Append(ctx context.Context, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO decision_log (record_id, action_id, action_type, source, decision, reason, rule_ids,
			violations_json, state_json, action_json, corrected_json, processing_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RecordID,
		entry.ActionID,
		entry.ActionType,
		nullIfEmpty(entry.Source),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(strings.Join(entry.RuleIDs, ",")),
		nullIfEmpty(entry.ViolationsJSON),
		nullIfEmpty(entry.StateJSON),
		nullIfEmpty(entry.ActionJSON),
		nullIfEmpty(entry.CorrectedJSON),
		entry.ProcessingTimeMS,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// #endregion append

// #region queries
// Recent returns the newest decisions first.
func (l *DecisionLog) Recent(ctx context.Context, limit int) ([]DecisionEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	return scanEntries(rows)
}

// ByDecision returns the newest decisions with the given verdict first.
func (l *DecisionLog) ByDecision(ctx context.Context, decision string, limit int) ([]DecisionEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM decision_log WHERE decision = ? ORDER BY id DESC LIMIT ?`,
		decision, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("decisions by verdict: %w", err)
	}
	return scanEntries(rows)
}

// Chronological returns every decision oldest first, for replay.
func (l *DecisionLog) Chronological(ctx context.Context) ([]DecisionEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM decision_log ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("chronological decisions: %w", err)
	}
	return scanEntries(rows)
}

// Count returns the number of rows per decision.
func (l *DecisionLog) Count(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT decision, COUNT(*) FROM decision_log GROUP BY decision`)
	if err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var decision string
		var n int
		if err := rows.Scan(&decision, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[decision] = n
	}
	return counts, rows.Err()
}

// #endregion queries

// #region helpers
func scanEntries(rows *sql.Rows) ([]DecisionEntry, error) {
	defer rows.Close()

	var entries []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var source, reason, ruleIDs, violations, stateJSON, actionJSON, corrected sql.NullString
		var createdStr string

		if err := rows.Scan(&e.RecordID, &e.ActionID, &e.ActionType, &source, &e.Decision, &reason, &ruleIDs,
			&violations, &stateJSON, &actionJSON, &corrected, &e.ProcessingTimeMS, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Source = source.String
		e.Reason = reason.String
		if ruleIDs.Valid && ruleIDs.String != "" {
			e.RuleIDs = strings.Split(ruleIDs.String, ",")
		}
		e.ViolationsJSON = violations.String
		e.StateJSON = stateJSON.String
		e.ActionJSON = actionJSON.String
		e.CorrectedJSON = corrected.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
