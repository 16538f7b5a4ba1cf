package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/observability"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region dispatcher-config
var (
	// ErrQueueFull is returned when a report is dropped because the queue is full.
	ErrQueueFull = errors.New("telemetry queue full")
	// ErrDispatcherClosed is returned for reports submitted after Close.
	ErrDispatcherClosed = errors.New("telemetry dispatcher closed")
)

// DispatcherConfig sizes the queue and the worker pool.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// DefaultDispatcherConfig returns a 256-deep queue drained by a single worker,
// which keeps delivery in evaluation order.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{QueueSize: 256, Workers: 1, SendTimeout: time.Second}
}

// #endregion dispatcher-config

// #region dispatcher
// Dispatcher decouples the decision path from a sink. Report only enqueues;
// workers deliver in the background. When the queue is full the report is
// dropped and counted.
type Dispatcher struct {
	sink        supervisor.Reporter
	name        string
	cfg         DispatcherConfig
	logger      *slog.Logger
	instruments *observability.Instruments
	dropLog     *rate.Limiter

	mu     sync.RWMutex
	closed bool
	queue  chan supervisor.Report
	wg     sync.WaitGroup
}

// NewDispatcher starts cfg.Workers goroutines delivering to sink.
func NewDispatcher(sink supervisor.Reporter, cfg DispatcherConfig, logger *slog.Logger, instruments *observability.Instruments) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sink:        sink,
		name:        SinkName(sink),
		cfg:         cfg,
		logger:      logger.With("component", "telemetry", "sink", SinkName(sink)),
		instruments: instruments,
		dropLog:     rate.NewLimiter(rate.Every(time.Second), 1),
		queue:       make(chan supervisor.Report, cfg.QueueSize),
	}
	for range cfg.Workers {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Name reports the wrapped sink's name.
func (d *Dispatcher) Name() string { return d.name }

// Pending returns the number of queued reports.
func (d *Dispatcher) Pending() int { return len(d.queue) }

// Report enqueues a copy of r without blocking.
func (d *Dispatcher) Report(ctx context.Context, r supervisor.Report) error {
	r.State = r.State.Clone()
	r.Action.Payload = r.Action.ClonePayload()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- r:
		return nil
	default:
		d.instruments.RecordDrop(ctx, d.name)
		if d.dropLog.Allow() {
			d.logger.Warn("telemetry report dropped", "action_id", r.Action.ID, "queue_size", d.cfg.QueueSize)
		}
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for r := range d.queue {
		d.deliver(r)
	}
}

func (d *Dispatcher) deliver(r supervisor.Report) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("telemetry sink panicked", "action_id", r.Action.ID, "panic", rec)
			d.instruments.RecordReportFailure(ctx, d.name)
		}
	}()

	if err := d.sink.Report(ctx, r); err != nil {
		d.instruments.RecordReportFailure(ctx, d.name)
		if !errors.Is(err, ErrBreakerOpen) {
			d.logger.Warn("telemetry delivery failed", "action_id", r.Action.ID, "error", err)
		}
	}
}

// Close stops accepting reports and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain telemetry queue: %w", ctx.Err())
	}
}

// #endregion dispatcher
