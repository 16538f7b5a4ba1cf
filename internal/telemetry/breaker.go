package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region breaker-state
// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned without calling the sink while the breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// #endregion breaker-state

// #region breaker
// BreakerConfig tunes when a breaker opens and how long it stays open.
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// DefaultBreakerConfig opens after 5 consecutive failures for 10 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, ResetTimeout: 10 * time.Second}
}

// Breaker fast-fails calls to a sink after consecutive failures. After
// ResetTimeout one trial call is let through; its result closes or re-opens
// the breaker.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreaker creates a closed breaker. Zero config fields take the defaults.
func NewBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With("component", "breaker", "name", name),
		now:    time.Now,
	}
}

// State returns the current state. An open breaker whose timeout elapsed
// reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Execute runs op unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrBreakerOpen
	}
	err := op(ctx)
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.trial = true
		b.logger.Info("breaker_half_open")
		return true
	default:
		// one trial at a time
		if b.trial {
			return false
		}
		b.trial = true
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != BreakerClosed {
			b.logger.Info("breaker_closed", "from", b.state.String())
		}
		b.state = BreakerClosed
		b.failures = 0
		b.trial = false
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.MaxFailures {
		if b.state != BreakerOpen {
			b.logger.Warn("breaker_opened", "failures", b.failures, "error", err.Error())
		}
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.trial = false
	}
}

// #endregion breaker

// #region guarded-reporter
// GuardedReporter routes reports to a sink through a breaker.
type GuardedReporter struct {
	sink    supervisor.Reporter
	breaker *Breaker
}

// Guard wraps sink with breaker.
func Guard(sink supervisor.Reporter, breaker *Breaker) *GuardedReporter {
	return &GuardedReporter{sink: sink, breaker: breaker}
}

// Name reports the wrapped sink's name.
func (g *GuardedReporter) Name() string { return SinkName(g.sink) }

// Report delivers r unless the breaker is open.
func (g *GuardedReporter) Report(ctx context.Context, r supervisor.Report) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.sink.Report(ctx, r)
	})
}

// #endregion guarded-reporter
