package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/logging"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/replay"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// errMismatch makes the command exit non-zero when a verdict diverged.
var errMismatch = errors.New("replay mismatch")

// #region replay-cmd

func newReplayCmd(a *app) *cobra.Command {
	var fixturePath, dbPath string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run scenarios and compare against expected or recorded decisions",
		Long: `replay evaluates every scenario from a fixture (--fixture) or every row of a
decision log (--db) and compares each verdict with the expected one.
The exit code is 1 if any verdict differs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (fixturePath == "") == (dbPath == "") {
				return errors.New("exactly one of --fixture or --db is required")
			}

			var (
				scenarios []replay.Scenario
				sup       *supervisor.Supervisor
				err       error
			)
			if fixturePath != "" {
				scenarios, sup, err = a.fixtureScenarios(fixturePath)
			} else {
				scenarios, sup, err = a.logScenarios(cmd, dbPath)
			}
			if err != nil {
				return err
			}

			results := replay.Replay(cmd.Context(), sup, scenarios)
			return printReplay(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to fixture JSON")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to a decision log database")
	return cmd
}

// fixtureScenarios replays with the fixture's own limits and no telemetry.
func (a *app) fixtureScenarios(path string) ([]replay.Scenario, *supervisor.Supervisor, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return nil, nil, err
	}
	sup, err := f.NewSupervisor(supervisor.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	return f.Scenarios, sup, nil
}

// logScenarios replays recorded rows against the configured limits.
func (a *app) logScenarios(cmd *cobra.Command, path string) ([]replay.Scenario, *supervisor.Supervisor, error) {
	dlog, err := logging.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer dlog.Close()

	rows, err := dlog.Chronological(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("read decision log: %w", err)
	}
	scenarios, err := replay.FromDecisionLog(rows)
	if err != nil {
		return nil, nil, err
	}
	sup, err := a.cfg.NewSupervisor(supervisor.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	return scenarios, sup, nil
}

func printReplay(w io.Writer, results []replay.Result) error {
	fmt.Fprintf(w, "%-28s  %-10s  %-10s  %-5s  %s\n", "Scenario", "Expected", "Actual", "Match", "Rules")
	fmt.Fprintf(w, "%-28s+-%-10s+-%-10s+-%-5s+-%s\n",
		"----------------------------", "----------", "----------", "-----", "----------")
	for _, r := range results {
		expected := string(r.Expected)
		if expected == "" {
			expected = "-"
		}
		match := "ok"
		if !r.Match {
			match = "FAIL"
		}
		fmt.Fprintf(w, "%-28s  %-10s  %-10s  %-5s  %v\n",
			truncate(r.Name, 28), expected, r.Outcome.Decision, match, r.Outcome.RuleIDs())
	}

	s := replay.Summarize(results)
	fmt.Fprintf(w, "\n%d scenarios: %d approved, %d modified, %d rejected, %d mismatches\n",
		s.Total,
		s.ByDecision[supervisor.Approved],
		s.ByDecision[supervisor.Modified],
		s.ByDecision[supervisor.Rejected],
		s.Mismatches,
	)
	if !s.OK() {
		return fmt.Errorf("%d of %d scenarios: %w", s.Mismatches, s.Checked, errMismatch)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion replay-cmd
