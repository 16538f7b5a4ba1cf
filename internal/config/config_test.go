package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/telemetry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// #region load-tests
func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2.0, cfg.Limits.MaxLinearVelocity)
	assert.Equal(t, 1.0, cfg.Limits.MaxAngularVelocity)
	assert.Equal(t, []string{"lidar", "imu"}, cfg.Limits.RequiredSensors)
	assert.Equal(t, SinkConsole, cfg.Telemetry.Sink)
	assert.Equal(t, 50*time.Millisecond, cfg.Supervisor.ReportTimeout)
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Limits, cfg.Limits)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
limits:
  max_linear_velocity: 1.5
  required_sensors: [lidar, gps]
supervisor:
  report_timeout: 80ms
telemetry:
  sink: multi
  sinks: [console, sqlite]
  async: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1.5, cfg.Limits.MaxLinearVelocity)
	assert.Equal(t, 1.0, cfg.Limits.MaxAngularVelocity)
	assert.Equal(t, []string{"lidar", "gps"}, cfg.Limits.RequiredSensors)
	assert.Equal(t, 80*time.Millisecond, cfg.Supervisor.ReportTimeout)
	assert.Equal(t, []string{SinkConsole, SinkSQLite}, cfg.Telemetry.Sinks)
	assert.True(t, cfg.Telemetry.Async)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "telemetry:\n  sink: http\n")
	t.Setenv("FLOWGUARD_TELEMETRY_SINK", "kafka")
	t.Setenv("FLOWGUARD_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FLOWGUARD_MAX_LINEAR_VELOCITY", "0.75")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SinkKafka, cfg.Telemetry.Sink)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Telemetry.Kafka.Brokers)
	assert.Equal(t, 0.75, cfg.Limits.MaxLinearVelocity)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "limits: [not, a, map]"))
	assert.Error(t, err)

	t.Setenv("FLOWGUARD_GEOFENCE_X", "wide")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// #endregion load-tests

// #region validate-tests
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"negative limit", func(c *Config) { c.Limits.MaxAngularVelocity = -1 }},
		{"blank sensor", func(c *Config) { c.Limits.RequiredSensors = []string{""} }},
		{"negative timeout", func(c *Config) { c.Supervisor.ReportTimeout = -time.Second }},
		{"negative passes", func(c *Config) { c.Supervisor.MaxCorrectionPasses = -1 }},
		{"negative in-flight reports", func(c *Config) { c.Supervisor.MaxInFlightReports = -1 }},
		{"unknown sink", func(c *Config) { c.Telemetry.Sink = "carrier-pigeon" }},
		{"empty multi", func(c *Config) { c.Telemetry.Sink = SinkMulti }},
		{"nested multi", func(c *Config) {
			c.Telemetry.Sink = SinkMulti
			c.Telemetry.Sinks = []string{SinkMulti}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
}

// #endregion validate-tests

// #region builder-tests
func TestNewSupervisor_ReferenceOrder(t *testing.T) {
	s, err := Default().NewSupervisor()
	require.NoError(t, err)
	assert.Equal(t, []string{"PhysicalConstraints", "GeofencePolicy", "UncertaintyCheck"}, s.Validators())

	st := state.New(map[string]float64{"x": 0, "y": 0}, nil, nil)
	out := s.Evaluate(context.Background(), st, action.New("a", action.VelocityCmd, map[string]any{"v": 5.0, "w": 0.1}, ""))
	assert.Equal(t, supervisor.Modified, out.Decision)
}

func TestNewSupervisor_CustomLimits(t *testing.T) {
	cfg := Default()
	cfg.Limits.MaxLinearVelocity = 10
	s, err := cfg.NewSupervisor()
	require.NoError(t, err)

	out := s.Evaluate(context.Background(), state.SystemState{}, action.New("a", action.VelocityCmd, map[string]any{"v": 5.0}, ""))
	assert.Equal(t, supervisor.Approved, out.Decision)
}

func TestProviderConfig(t *testing.T) {
	cfg := Default()
	cfg.Observability.Enabled = true
	pc := cfg.Observability.ProviderConfig("1.2.3")
	assert.True(t, pc.Enabled)
	assert.Equal(t, "1.2.3", pc.ServiceVersion)
	assert.Equal(t, cfg.Observability.OTLPEndpoint, pc.OTLPEndpoint)
}

// #endregion builder-tests

// #region pipeline-tests
func TestBuildPipeline_Console(t *testing.T) {
	var out bytes.Buffer
	p, err := Default().Telemetry.BuildPipeline(context.Background(), Deps{Out: &out})
	require.NoError(t, err)
	defer p.Close(context.Background())

	require.IsType(t, &telemetry.ConsoleReporter{}, p.Reporter)
	s, err := Default().NewSupervisor(supervisor.WithReporter(p.Reporter))
	require.NoError(t, err)
	s.Evaluate(context.Background(), state.SystemState{}, action.New("a", action.VelocityCmd, map[string]any{"v": 1.0}, ""))
	assert.Contains(t, out.String(), "[TELEM] [SAFE] APPROVED | Safe")
}

func TestBuildPipeline_None(t *testing.T) {
	cfg := Default().Telemetry
	cfg.Sink = SinkNone
	p, err := cfg.BuildPipeline(context.Background(), Deps{})
	require.NoError(t, err)
	assert.Nil(t, p.Reporter)
	assert.NoError(t, p.Close(context.Background()))
}

func TestBuildPipeline_AsyncMultiWithSQLite(t *testing.T) {
	var out bytes.Buffer
	cfg := Default().Telemetry
	cfg.Sink = SinkMulti
	cfg.Sinks = []string{SinkConsole, SinkSQLite}
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "decisions.db")
	cfg.Async = true

	p, err := cfg.BuildPipeline(context.Background(), Deps{Out: &out})
	require.NoError(t, err)
	require.IsType(t, &telemetry.Dispatcher{}, p.Reporter)

	s, err := Default().NewSupervisor(supervisor.WithReporter(p.Reporter))
	require.NoError(t, err)
	s.Evaluate(context.Background(), state.SystemState{}, action.New("a", action.VelocityCmd, map[string]any{"v": 9.0}, ""))
	require.NoError(t, p.Close(context.Background()))

	assert.Contains(t, out.String(), "MODIFIED")
	assert.FileExists(t, cfg.SQLite.Path)
}

func TestBuildPipeline_HTTPWithBreaker(t *testing.T) {
	cfg := Default().Telemetry
	cfg.Sink = SinkHTTP
	cfg.Breaker.Enabled = true

	p, err := cfg.BuildPipeline(context.Background(), Deps{})
	require.NoError(t, err)
	defer p.Close(context.Background())
	require.IsType(t, &telemetry.GuardedReporter{}, p.Reporter)
	assert.Equal(t, "http", telemetry.SinkName(p.Reporter))
}

func TestBuildPipeline_LazyRemoteSinks(t *testing.T) {
	// these clients connect lazily, so building them needs no server
	for _, sink := range []string{SinkGRPC, SinkKafka, SinkRedis} {
		t.Run(sink, func(t *testing.T) {
			cfg := Default().Telemetry
			cfg.Sink = sink
			p, err := cfg.BuildPipeline(context.Background(), Deps{})
			require.NoError(t, err)
			assert.Equal(t, sink, telemetry.SinkName(p.Reporter))
			assert.NoError(t, p.Close(context.Background()))
		})
	}
}

func TestBuildPipeline_SQLiteOpenFailure(t *testing.T) {
	cfg := Default().Telemetry
	cfg.Sink = SinkSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "missing", "dir", "decisions.db")
	_, err := cfg.BuildPipeline(context.Background(), Deps{})
	assert.Error(t, err)
}

// #endregion pipeline-tests
