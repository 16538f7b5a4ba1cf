package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/logging"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/observability"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/telemetry"
)

// #region pipeline
// Pipeline is a built telemetry reporter and the resources it owns.
type Pipeline struct {
	// Reporter is nil when the sink is "none".
	Reporter supervisor.Reporter
	closers  []func(context.Context) error
}

// Close drains the queue (if any) and then closes the sinks.
func (p *Pipeline) Close(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func (p *Pipeline) onClose(fn func() error) {
	p.closers = append(p.closers, func(context.Context) error { return fn() })
}

// Deps are the collaborators the pipeline shares with the rest of the process.
type Deps struct {
	Out         io.Writer
	Logger      *slog.Logger
	Instruments *observability.Instruments
}

// BuildPipeline connects the configured sink. Remote sinks are wrapped in a
// circuit breaker when enabled, and the whole pipeline is moved behind a
// dispatcher when Async is set. On error nothing is left open.
func (t TelemetryConfig) BuildPipeline(ctx context.Context, deps Deps) (*Pipeline, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	p := &Pipeline{}

	var (
		rep supervisor.Reporter
		err error
	)
	if t.Sink == SinkMulti {
		members := make([]supervisor.Reporter, 0, len(t.Sinks))
		for _, name := range t.Sinks {
			var m supervisor.Reporter
			if m, err = t.buildSink(ctx, name, deps, p); err != nil {
				break
			}
			members = append(members, m)
		}
		rep = telemetry.NewMultiReporter(members...)
	} else {
		rep, err = t.buildSink(ctx, t.Sink, deps, p)
	}
	if err != nil {
		p.Close(ctx)
		return nil, err
	}
	if rep == nil {
		return p, nil
	}

	if t.Async {
		d := telemetry.NewDispatcher(rep, telemetry.DispatcherConfig{
			QueueSize: t.QueueSize,
			Workers:   t.Workers,
		}, deps.Logger, deps.Instruments)
		p.closers = append(p.closers, d.Close)
		rep = d
	}
	p.Reporter = rep
	return p, nil
}

func (t TelemetryConfig) buildSink(ctx context.Context, name string, deps Deps, p *Pipeline) (supervisor.Reporter, error) {
	switch name {
	case SinkNone:
		return nil, nil
	case SinkConsole:
		return telemetry.NewConsoleReporter(deps.Out), nil
	case SinkSQLite:
		l, err := logging.Open(t.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open decision log: %w", err)
		}
		p.onClose(l.Close)
		return telemetry.NewSQLiteReporter(l), nil
	}

	var rep supervisor.Reporter
	switch name {
	case SinkHTTP:
		var client *http.Client
		if t.HTTP.Timeout > 0 {
			client = &http.Client{Timeout: t.HTTP.Timeout}
		}
		rep = telemetry.NewHTTPReporter(t.HTTP.Endpoint, client)
	case SinkGRPC:
		g, err := telemetry.NewGRPCReporter(t.GRPC.Addr)
		if err != nil {
			return nil, err
		}
		p.onClose(g.Close)
		rep = g
	case SinkKafka:
		k, err := telemetry.NewKafkaReporter(telemetry.KafkaConfig{Brokers: t.Kafka.Brokers, Topic: t.Kafka.Topic})
		if err != nil {
			return nil, err
		}
		p.onClose(k.Close)
		rep = k
	case SinkMQTT:
		m, err := telemetry.NewMQTTReporter(ctx, telemetry.MQTTConfig{
			Broker:   t.MQTT.Broker,
			ClientID: t.MQTT.ClientID,
			Topic:    t.MQTT.Topic,
			QoS:      t.MQTT.QoS,
		})
		if err != nil {
			return nil, err
		}
		p.onClose(m.Close)
		rep = m
	case SinkRedis:
		r := telemetry.NewRedisReporter(telemetry.RedisConfig{
			Addr:     t.Redis.Addr,
			Password: t.Redis.Password,
			DB:       t.Redis.DB,
			Stream:   t.Redis.Stream,
			MaxLen:   t.Redis.MaxLen,
		})
		p.onClose(r.Close)
		rep = r
	default:
		return nil, fmt.Errorf("telemetry sink %q: %w", name, ErrInvalidConfig)
	}

	if t.Breaker.Enabled {
		b := telemetry.NewBreaker(name, telemetry.BreakerConfig{
			MaxFailures:  t.Breaker.MaxFailures,
			ResetTimeout: t.Breaker.ResetTimeout,
		}, deps.Logger)
		rep = telemetry.Guard(rep, b)
	}
	return rep, nil
}

// #endregion pipeline
