package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/replay"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region demo

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the reference scenarios through a supervisor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			sup, shutdown, err := a.newSupervisor(cmd.Context(), out)
			if err != nil {
				return err
			}
			defer shutdown()

			fmt.Fprintln(out, "Starting FlowGuard demo loop...")
			for _, r := range replay.Replay(cmd.Context(), sup, demoScenarios()) {
				printDemoResult(out, r)
			}
			return nil
		},
	}
}

func demoScenarios() []replay.Scenario {
	healthy := map[string]bool{"lidar": true, "imu": true}
	return []replay.Scenario{
		{
			Name:   "Normal Operation",
			State:  state.New(map[string]float64{"x": 0, "y": 0}, map[string]float64{"vx": 0.5}, healthy),
			Action: action.New("1", action.VelocityCmd, map[string]any{"v": 1.5, "w": 0.1}, "demo"),
		},
		{
			Name:   "Overspeed Violation",
			State:  state.New(map[string]float64{"x": 5, "y": 5}, map[string]float64{"vx": 1.0}, healthy),
			Action: action.New("2", action.VelocityCmd, map[string]any{"v": 5.0, "w": 0.1}, "demo"),
		},
		{
			Name:   "Geofence Breach",
			State:  state.New(map[string]float64{"x": 12, "y": 0}, nil, healthy),
			Action: action.New("3", action.VelocityCmd, map[string]any{"v": 0.5, "w": 0.0}, "demo"),
		},
		{
			Name:   "Sensor Failure",
			State:  state.New(map[string]float64{"x": 0, "y": 0}, nil, map[string]bool{"lidar": false, "imu": true}),
			Action: action.New("4", action.TaskCommand, map[string]any{"task": "dock"}, "demo"),
		},
	}
}

func printDemoResult(w io.Writer, r replay.Result) {
	out := r.Outcome
	fmt.Fprintf(w, "\n--- Scenario: %s ---\n", r.Name)
	fmt.Fprintf(w, "Decision: %s %s\n", demoStatus(out.Decision), string(out.Decision))
	fmt.Fprintf(w, "Reason: %s\n", out.Reason)
	if out.CorrectedAction != nil {
		fmt.Fprintf(w, "  -> Modified: %v\n", out.CorrectedAction.Payload)
	}
	for _, v := range out.Violations {
		fmt.Fprintf(w, "  - Violation: %s [%s]\n", v.Description, v.RuleID)
	}
}

func demoStatus(d supervisor.Decision) string {
	switch d {
	case supervisor.Approved:
		return "[SAFE]"
	case supervisor.Modified:
		return "[MODIFIED]"
	default:
		return "[BLOCKED]"
	}
}

// #endregion demo
