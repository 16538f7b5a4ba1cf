package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/config"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/observability"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

const version = "0.1.0"

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region root

// app carries the state shared by every subcommand.
type app struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "flowguard",
		Short: "FlowGuard safety supervisor for robot actuator commands",
		Long: `flowguard runs proposed actuator commands through the FlowGuard safety
supervisor and reports approve / modify / reject verdicts.

Commands:
  demo     Run the reference scenarios and print each decision
  replay   Re-run a fixture or a recorded decision log and compare verdicts
  inspect  List rows from a decision log`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (default: built-in defaults)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	root.AddCommand(newDemoCmd(a), newReplayCmd(a), newInspectCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// #endregion root

// #region wiring

// newSupervisor wires observability and the configured telemetry pipeline into
// a supervisor. The returned shutdown drains telemetry and flushes exporters.
func (a *app) newSupervisor(ctx context.Context, out io.Writer, opts ...supervisor.Option) (*supervisor.Supervisor, func(), error) {
	provider, err := observability.Setup(ctx, a.cfg.Observability.ProviderConfig(version))
	if err != nil {
		return nil, nil, fmt.Errorf("setup observability: %w", err)
	}

	instruments, err := observability.NewInstruments(provider.Meter())
	if err != nil {
		provider.Shutdown(ctx)
		return nil, nil, err
	}

	pipeline, err := a.cfg.Telemetry.BuildPipeline(ctx, config.Deps{
		Out:         out,
		Logger:      a.logger,
		Instruments: instruments,
	})
	if err != nil {
		provider.Shutdown(ctx)
		return nil, nil, fmt.Errorf("build telemetry: %w", err)
	}

	base := []supervisor.Option{
		supervisor.WithLogger(a.logger),
		supervisor.WithInstruments(instruments),
		supervisor.WithTracer(provider.Tracer()),
	}
	if pipeline.Reporter != nil {
		base = append(base, supervisor.WithReporter(pipeline.Reporter))
	}

	sup, err := a.cfg.NewSupervisor(append(base, opts...)...)
	if err != nil {
		pipeline.Close(ctx)
		provider.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := errors.Join(pipeline.Close(sctx), provider.Shutdown(sctx)); err != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}
	return sup, shutdown, nil
}

// #endregion wiring
