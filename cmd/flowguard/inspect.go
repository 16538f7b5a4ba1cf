package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/logging"
)

// #region inspect-cmd

func newInspectCmd(_ *app) *cobra.Command {
	var (
		dbPath   string
		last     int
		decision string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List recent rows from a decision log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			dlog, err := logging.Open(dbPath)
			if err != nil {
				return err
			}
			defer dlog.Close()

			var rows []logging.DecisionEntry
			if decision != "" {
				rows, err = dlog.ByDecision(cmd.Context(), decision, last)
			} else {
				rows, err = dlog.Recent(cmd.Context(), last)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, toInspectRows(rows))
			}
			counts, err := dlog.Count(cmd.Context())
			if err != nil {
				return err
			}
			printInspectTable(out, rows, counts)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to a decision log database")
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent rows")
	cmd.Flags().StringVar(&decision, "decision", "", "only rows with this decision")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

type inspectRow struct {
	RecordID         string   `json:"record_id"`
	ActionID         string   `json:"action_id"`
	ActionType       string   `json:"action_type"`
	Decision         string   `json:"decision"`
	Reason           string   `json:"reason"`
	RuleIDs          []string `json:"rule_ids"`
	ProcessingTimeMS float64  `json:"processing_time_ms"`
	CreatedAt        string   `json:"created_at"`
}

func toInspectRows(entries []logging.DecisionEntry) []inspectRow {
	rows := make([]inspectRow, len(entries))
	for i, e := range entries {
		rows[i] = inspectRow{
			RecordID:         e.RecordID,
			ActionID:         e.ActionID,
			ActionType:       e.ActionType,
			Decision:         e.Decision,
			Reason:           e.Reason,
			RuleIDs:          e.RuleIDs,
			ProcessingTimeMS: e.ProcessingTimeMS,
			CreatedAt:        e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if rows[i].RuleIDs == nil {
			rows[i].RuleIDs = []string{}
		}
	}
	return rows
}

func printInspectTable(w io.Writer, rows []logging.DecisionEntry, counts map[string]int) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no decisions found")
		return
	}
	fmt.Fprintf(w, "%-10s  %-12s  %-10s  %8s  %-22s  %s\n", "Record", "Action", "Decision", "ms", "Rules", "Time")
	fmt.Fprintf(w, "%-10s+-%-12s+-%-10s+-%8s+-%-22s+-%s\n",
		"----------", "------------", "----------", "--------", "----------------------", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s  %-12s  %-10s  %8.3f  %-22s  %s\n",
			shortID(r.RecordID), truncate(r.ActionID, 12), r.Decision, r.ProcessingTimeMS,
			truncate(strings.Join(r.RuleIDs, ","), 22), r.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}

	fmt.Fprintf(w, "\nTotals: approved=%d modified=%d rejected=%d emergency_stop=%d\n",
		counts["approved"], counts["modified"], counts["rejected"], counts["emergency_stop"])
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion inspect-cmd
