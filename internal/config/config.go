// Package config loads FlowGuard settings. Values are resolved from, highest
// priority first:
//  1. Environment variables (FLOWGUARD_*)
//  2. The YAML file passed with --config
//  3. Defaults
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/observability"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/telemetry"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/validators"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// #region types
// Config holds all FlowGuard configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Limits        Limits              `yaml:"limits" json:"limits"`
	Supervisor    SupervisorConfig    `yaml:"supervisor" json:"supervisor"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" json:"telemetry"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// Limits parameterises the built-in validators.
type Limits struct {
	MaxLinearVelocity  float64  `yaml:"max_linear_velocity" json:"max_linear_velocity"`
	MaxAngularVelocity float64  `yaml:"max_angular_velocity" json:"max_angular_velocity"`
	GeofenceX          float64  `yaml:"geofence_x" json:"geofence_x"`
	GeofenceY          float64  `yaml:"geofence_y" json:"geofence_y"`
	RequiredSensors    []string `yaml:"required_sensors" json:"required_sensors"`
}

// SupervisorConfig tunes the decision path.
type SupervisorConfig struct {
	// ReportTimeout bounds how long Evaluate waits on telemetry.
	ReportTimeout time.Duration `yaml:"report_timeout" json:"report_timeout"`
	// MaxCorrectionPasses bounds clamp-then-recheck rounds.
	MaxCorrectionPasses int `yaml:"max_correction_passes" json:"max_correction_passes"`
	// MaxInFlightReports bounds reporter calls still running; extra reports are dropped.
	MaxInFlightReports int `yaml:"max_in_flight_reports" json:"max_in_flight_reports"`
}

// TelemetryConfig selects and configures the telemetry sink.
type TelemetryConfig struct {
	// Sink is one of none, console, http, grpc, kafka, mqtt, redis, sqlite, multi.
	Sink string `yaml:"sink" json:"sink"`
	// Sinks lists the members when Sink is multi.
	Sinks []string `yaml:"sinks" json:"sinks"`

	// Async moves delivery onto a bounded queue drained by background workers.
	Async     bool `yaml:"async" json:"async"`
	QueueSize int  `yaml:"queue_size" json:"queue_size"`
	Workers   int  `yaml:"workers" json:"workers"`

	Breaker BreakerConfig `yaml:"breaker" json:"breaker"`

	HTTP   HTTPSink   `yaml:"http" json:"http"`
	GRPC   GRPCSink   `yaml:"grpc" json:"grpc"`
	Kafka  KafkaSink  `yaml:"kafka" json:"kafka"`
	MQTT   MQTTSink   `yaml:"mqtt" json:"mqtt"`
	Redis  RedisSink  `yaml:"redis" json:"redis"`
	SQLite SQLiteSink `yaml:"sqlite" json:"sqlite"`
}

// BreakerConfig guards remote sinks.
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

type HTTPSink struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

type GRPCSink struct {
	Addr string `yaml:"addr" json:"addr"`
}

type KafkaSink struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
}

type MQTTSink struct {
	Broker   string `yaml:"broker" json:"broker"`
	ClientID string `yaml:"client_id" json:"client_id"`
	Topic    string `yaml:"topic" json:"topic"`
	QoS      byte   `yaml:"qos" json:"qos"`
}

type RedisSink struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	Stream   string `yaml:"stream" json:"stream"`
	MaxLen   int64  `yaml:"max_len" json:"max_len"`
}

type SQLiteSink struct {
	Path string `yaml:"path" json:"path"`
}

// ObservabilityConfig controls OTLP export of traces and metrics.
type ObservabilityConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	ServiceName    string        `yaml:"service_name" json:"service_name"`
	Environment    string        `yaml:"environment" json:"environment"`
	OTLPEndpoint   string        `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	Insecure       bool          `yaml:"insecure" json:"insecure"`
	SampleRate     float64       `yaml:"sample_rate" json:"sample_rate"`
	ExportInterval time.Duration `yaml:"export_interval" json:"export_interval"`
}

// #endregion types

// #region sinks
// Sink names accepted in TelemetryConfig.
const (
	SinkNone    = "none"
	SinkConsole = "console"
	SinkHTTP    = "http"
	SinkGRPC    = "grpc"
	SinkKafka   = "kafka"
	SinkMQTT    = "mqtt"
	SinkRedis   = "redis"
	SinkSQLite  = "sqlite"
	SinkMulti   = "multi"
)

var knownSinks = []string{SinkNone, SinkConsole, SinkHTTP, SinkGRPC, SinkKafka, SinkMQTT, SinkRedis, SinkSQLite, SinkMulti}

// #endregion sinks

// #region defaults
// Default returns the reference configuration: 2.0 m/s, 1.0 rad/s, a 10x10
// geofence, lidar and imu required, console telemetry.
func Default() *Config {
	obs := observability.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Limits: Limits{
			MaxLinearVelocity:  validators.DefaultMaxLinearVelocity,
			MaxAngularVelocity: validators.DefaultMaxAngularVelocity,
			GeofenceX:          validators.DefaultGeofenceX,
			GeofenceY:          validators.DefaultGeofenceY,
			RequiredSensors:    slices.Clone(validators.DefaultRequiredSensors),
		},
		Supervisor: SupervisorConfig{
			ReportTimeout:       supervisor.DefaultReportTimeout,
			MaxCorrectionPasses: supervisor.DefaultMaxCorrectionPasses,
			MaxInFlightReports:  supervisor.DefaultMaxInFlightReports,
		},
		Telemetry: TelemetryConfig{
			Sink:      SinkConsole,
			QueueSize: telemetry.DefaultDispatcherConfig().QueueSize,
			Workers:   telemetry.DefaultDispatcherConfig().Workers,
			Breaker: BreakerConfig{
				MaxFailures:  telemetry.DefaultBreakerConfig().MaxFailures,
				ResetTimeout: telemetry.DefaultBreakerConfig().ResetTimeout,
			},
			HTTP:   HTTPSink{Endpoint: "http://localhost:8000", Timeout: telemetry.DefaultHTTPTimeout},
			GRPC:   GRPCSink{Addr: "localhost:50051"},
			Kafka:  KafkaSink{Brokers: []string{"localhost:9092"}, Topic: "flowguard.decisions"},
			MQTT:   MQTTSink{Broker: "tcp://localhost:1883", ClientID: "flowguard-supervisor", Topic: telemetry.DefaultMQTTTopic},
			Redis:  RedisSink{Addr: "localhost:6379", Stream: telemetry.DefaultRedisStream, MaxLen: telemetry.DefaultRedisMaxLen},
			SQLite: SQLiteSink{Path: "flowguard.db"},
		},
		Observability: ObservabilityConfig{
			Enabled:        obs.Enabled,
			ServiceName:    obs.ServiceName,
			Environment:    obs.Environment,
			OTLPEndpoint:   obs.OTLPEndpoint,
			Insecure:       obs.Insecure,
			SampleRate:     obs.SampleRate,
			ExportInterval: obs.ExportInterval,
		},
	}
}

// #endregion defaults

// #region load
// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.LogLevel = envOr("FLOWGUARD_LOG_LEVEL", cfg.LogLevel)

	t := &cfg.Telemetry
	t.Sink = envOr("FLOWGUARD_TELEMETRY_SINK", t.Sink)
	t.HTTP.Endpoint = envOr("FLOWGUARD_HTTP_ENDPOINT", t.HTTP.Endpoint)
	t.GRPC.Addr = envOr("FLOWGUARD_GRPC_ADDR", t.GRPC.Addr)
	t.Kafka.Topic = envOr("FLOWGUARD_KAFKA_TOPIC", t.Kafka.Topic)
	if brokers := os.Getenv("FLOWGUARD_KAFKA_BROKERS"); brokers != "" {
		t.Kafka.Brokers = strings.Split(brokers, ",")
	}
	t.MQTT.Broker = envOr("FLOWGUARD_MQTT_BROKER", t.MQTT.Broker)
	t.Redis.Addr = envOr("FLOWGUARD_REDIS_ADDR", t.Redis.Addr)
	t.Redis.Password = envOr("FLOWGUARD_REDIS_PASSWORD", t.Redis.Password)
	t.SQLite.Path = envOr("FLOWGUARD_SQLITE_PATH", t.SQLite.Path)

	cfg.Observability.OTLPEndpoint = envOr("FLOWGUARD_OTLP_ENDPOINT", cfg.Observability.OTLPEndpoint)

	for key, dst := range map[string]*float64{
		"FLOWGUARD_MAX_LINEAR_VELOCITY":  &cfg.Limits.MaxLinearVelocity,
		"FLOWGUARD_MAX_ANGULAR_VELOCITY": &cfg.Limits.MaxAngularVelocity,
		"FLOWGUARD_GEOFENCE_X":           &cfg.Limits.GeofenceX,
		"FLOWGUARD_GEOFENCE_Y":           &cfg.Limits.GeofenceY,
	} {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", key, raw, ErrInvalidConfig)
		}
		*dst = v
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate
// Validate checks ranges and sink names.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.Limits.BuildValidators(); err != nil {
		return fmt.Errorf("limits: %w: %w", ErrInvalidConfig, err)
	}
	if c.Supervisor.ReportTimeout < 0 {
		return fmt.Errorf("supervisor.report_timeout must not be negative: %w", ErrInvalidConfig)
	}
	if c.Supervisor.MaxCorrectionPasses < 0 {
		return fmt.Errorf("supervisor.max_correction_passes must not be negative: %w", ErrInvalidConfig)
	}
	if c.Supervisor.MaxInFlightReports < 0 {
		return fmt.Errorf("supervisor.max_in_flight_reports must not be negative: %w", ErrInvalidConfig)
	}
	return c.Telemetry.validate()
}

func (t TelemetryConfig) validate() error {
	if !slices.Contains(knownSinks, t.Sink) {
		return fmt.Errorf("telemetry.sink %q: %w", t.Sink, ErrInvalidConfig)
	}
	if t.Sink != SinkMulti {
		return nil
	}
	if len(t.Sinks) == 0 {
		return fmt.Errorf("telemetry.sinks is empty for multi sink: %w", ErrInvalidConfig)
	}
	for _, s := range t.Sinks {
		if s == SinkMulti || s == SinkNone || !slices.Contains(knownSinks, s) {
			return fmt.Errorf("telemetry.sinks member %q: %w", s, ErrInvalidConfig)
		}
	}
	return nil
}

// ParseLevel maps a log level name to slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return l, fmt.Errorf("log_level %q: %w", name, ErrInvalidConfig)
	}
	return l, nil
}

// #endregion validate

// #region builders
// BuildValidators creates the built-in checks in their reference order:
// physical constraints, geofence, sensor health.
func (l Limits) BuildValidators() ([]supervisor.Validator, error) {
	phys, err := validators.NewPhysicalConstraint(l.MaxLinearVelocity, l.MaxAngularVelocity)
	if err != nil {
		return nil, err
	}
	geo, err := validators.NewGeofence(l.GeofenceX, l.GeofenceY)
	if err != nil {
		return nil, err
	}
	unc, err := validators.NewUncertainty(l.RequiredSensors...)
	if err != nil {
		return nil, err
	}
	return []supervisor.Validator{phys, geo, unc}, nil
}

// NewSupervisor builds a supervisor with the configured limits registered.
// opts are applied after the configured timeouts.
func (c *Config) NewSupervisor(opts ...supervisor.Option) (*supervisor.Supervisor, error) {
	vs, err := c.Limits.BuildValidators()
	if err != nil {
		return nil, err
	}
	all := append([]supervisor.Option{
		supervisor.WithReportTimeout(c.Supervisor.ReportTimeout),
		supervisor.WithMaxCorrectionPasses(c.Supervisor.MaxCorrectionPasses),
		supervisor.WithMaxInFlightReports(c.Supervisor.MaxInFlightReports),
	}, opts...)

	s := supervisor.New(all...)
	for _, v := range vs {
		if err := s.RegisterValidator(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ProviderConfig converts the section for observability.Setup.
func (o ObservabilityConfig) ProviderConfig(version string) observability.Config {
	return observability.Config{
		ServiceName:    o.ServiceName,
		ServiceVersion: version,
		Environment:    o.Environment,
		OTLPEndpoint:   o.OTLPEndpoint,
		SampleRate:     o.SampleRate,
		ExportInterval: o.ExportInterval,
		Enabled:        o.Enabled,
		Insecure:       o.Insecure,
	}
}

// #endregion builders
