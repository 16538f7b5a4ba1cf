package supervisor

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/observability"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
)

// #endregion

// #region errors

var (
	// ErrRegistrationClosed is returned when a validator is registered after evaluation began.
	ErrRegistrationClosed = errors.New("validator registration closed: supervisor already evaluating")
	// ErrNilValidator is returned when registering a nil validator.
	ErrNilValidator = errors.New("nil validator")
)

// #endregion

// #region defaults

const (
	// DefaultReportTimeout bounds how long Evaluate waits on the telemetry reporter.
	DefaultReportTimeout = 50 * time.Millisecond
	// DefaultMaxCorrectionPasses bounds clamp-then-recheck rounds for one action.
	DefaultMaxCorrectionPasses = 3
	// DefaultMaxInFlightReports bounds reporter calls that have not yet returned.
	DefaultMaxInFlightReports = 4

	reasonSafe    = "Safe"
	reasonClamped = "Action Clamped to Limits"
)

// #endregion

// #region supervisor-struct

type registered struct {
	validator Validator
	name      string
}

// Supervisor runs an ordered chain of validators over each proposed action and
// renders a single verdict.
//
// Register every validator before the first call to Evaluate. After that the
// validator list is read-only and Evaluate is safe for concurrent use.
type Supervisor struct {
	validators []registered
	sealed     atomic.Bool
	mode       atomic.Value // Mode

	reporter            Reporter
	logger              *slog.Logger
	instruments         *observability.Instruments
	tracer              trace.Tracer
	reportTimeout       time.Duration
	maxCorrectionPasses int
	inFlight            chan struct{}
	maxInFlight         int
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithReporter sets the telemetry reporter called once per evaluation.
func WithReporter(r Reporter) Option {
	return func(s *Supervisor) { s.reporter = r }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l.With("component", "supervisor")
		}
	}
}

// WithInstruments sets the metric instruments recorded per evaluation.
func WithInstruments(i *observability.Instruments) Option {
	return func(s *Supervisor) { s.instruments = i }
}

// WithTracer sets the tracer used for the per-evaluation span.
func WithTracer(t trace.Tracer) Option {
	return func(s *Supervisor) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithReportTimeout bounds the time spent handing a report to telemetry.
func WithReportTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.reportTimeout = d
		}
	}
}

// WithMaxInFlightReports bounds how many reporter calls may be outstanding.
// Reports beyond the bound are dropped and counted.
func WithMaxInFlightReports(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

// WithMaxCorrectionPasses bounds how many clamp-then-recheck rounds are tried.
func WithMaxCorrectionPasses(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxCorrectionPasses = n
		}
	}
}

// New creates a supervisor with no validators.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:              slog.Default().With("component", "supervisor"),
		tracer:              tracenoop.NewTracerProvider().Tracer(observability.MeterName),
		reportTimeout:       DefaultReportTimeout,
		maxCorrectionPasses: DefaultMaxCorrectionPasses,
		maxInFlight:         DefaultMaxInFlightReports,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.inFlight = make(chan struct{}, s.maxInFlight)
	s.mode.Store(ModeNormal)
	return s
}

// #endregion

// #region registration

// RegisterValidator appends v to the chain. Registration order is evaluation order.
// It must not be called concurrently with Evaluate.
func (s *Supervisor) RegisterValidator(v Validator) error {
	if v == nil {
		return ErrNilValidator
	}
	if s.sealed.Load() {
		return fmt.Errorf("register %s: %w", v.Name(), ErrRegistrationClosed)
	}
	s.validators = append(s.validators, registered{validator: v, name: v.Name()})
	return nil
}

// Validators returns the registered validator names in evaluation order.
func (s *Supervisor) Validators() []string {
	names := make([]string, len(s.validators))
	for i, r := range s.validators {
		names[i] = r.name
	}
	return names
}

// Mode reports the operating mode implied by the most recent decision.
func (s *Supervisor) Mode() Mode {
	m, _ := s.mode.Load().(Mode)
	return m
}

// #endregion

// #region evaluate

// Evaluate runs every validator against (st, act) and returns the verdict.
// It never fails: validator faults become critical violations and telemetry
// failures are logged and dropped.
func (s *Supervisor) Evaluate(ctx context.Context, st state.SystemState, act action.ProposedAction) Outcome {
	start := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.sealed.Load() {
		s.sealed.Store(true)
	}

	ctx, span := s.tracer.Start(ctx, "supervisor.Evaluate", trace.WithAttributes(
		attribute.String("action.id", act.ID),
		attribute.String("action.type", string(act.Type)),
	))
	defer span.End()

	violations := s.runValidators(st, act)
	outcome := s.decide(st, act, violations)
	outcome.ProcessingTime = time.Since(start)

	span.SetAttributes(
		attribute.String("decision", string(outcome.Decision)),
		attribute.Int("violations", len(outcome.Violations)),
	)
	s.instruments.RecordEvaluation(ctx, string(outcome.Decision), outcome.ProcessingTime, outcome.RuleIDs())
	s.mode.Store(modeFor(outcome.Decision))
	s.logDecision(ctx, act, outcome)

	s.report(ctx, st, act, outcome)
	return outcome
}

// decide applies the decision algorithm to the violations of the first pass.
func (s *Supervisor) decide(st state.SystemState, act action.ProposedAction, violations []Violation) Outcome {
	if len(violations) == 0 {
		return Outcome{Decision: Approved, Reason: reasonSafe}
	}

	corrected, all, ok := s.intervene(st, act, violations)
	if ok {
		return Outcome{
			Decision:        Modified,
			CorrectedAction: corrected,
			Violations:      all,
			Reason:          reasonClamped,
		}
	}

	return Outcome{
		Decision:   Rejected,
		Violations: all,
		Reason:     fmt.Sprintf("Blocked by %d checks", len(all)),
	}
}

// runValidators consults every validator in order without short-circuiting.
func (s *Supervisor) runValidators(st state.SystemState, act action.ProposedAction) []Violation {
	var violations []Violation
	for _, r := range s.validators {
		if v := s.check(r, st, act); v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}

// check runs one validator, converting errors and panics into a fail-closed violation.
func (s *Supervisor) check(r registered, st state.SystemState, act action.ProposedAction) (found *Violation) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("validator panicked", "validator", r.name, "action_id", act.ID, "panic", rec)
			found = faultViolation(r.name, fmt.Errorf("panic: %v", rec))
		}
	}()

	v, err := r.validator.Check(st, act)
	if err != nil {
		s.logger.Error("validator failed", "validator", r.name, "action_id", act.ID, "error", err)
		return faultViolation(r.name, err)
	}
	return v
}

func faultViolation(name string, err error) *Violation {
	return &Violation{
		RuleID:      RuleValidatorFault,
		Description: fmt.Sprintf("Validator %s faulted: %v", name, err),
		Severity:    SeverityCritical,
		Context: map[string]any{
			"validator": name,
			"error":     err.Error(),
		},
	}
}

// #endregion

// #region report

// report hands the outcome to telemetry, waiting at most reportTimeout.
// A reporter that ignores its context is abandoned rather than waited on, but
// holds its in-flight slot until it returns; with every slot taken the report
// is dropped.
func (s *Supervisor) report(ctx context.Context, st state.SystemState, act action.ProposedAction, out Outcome) {
	if s.reporter == nil {
		return
	}

	select {
	case s.inFlight <- struct{}{}:
	default:
		s.logger.Debug("telemetry report dropped: reporter busy", "action_id", act.ID, "in_flight", s.maxInFlight)
		s.instruments.RecordDrop(ctx, "supervisor")
		return
	}

	out.Violations = slices.Clone(out.Violations)
	rctx, cancel := context.WithTimeout(ctx, s.reportTimeout)
	done := make(chan error, 1)

	go func() {
		defer func() { <-s.inFlight }()
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("reporter panic: %v", rec)
			}
		}()
		done <- s.reporter.Report(rctx, Report{State: st, Action: act, Outcome: out})
	}()

	var err error
	select {
	case err = <-done:
	case <-rctx.Done():
		err = fmt.Errorf("telemetry report: %w", rctx.Err())
	}
	cancel()

	if err != nil {
		s.logger.Debug("telemetry report failed", "action_id", act.ID, "error", err)
		s.instruments.RecordReportFailure(ctx, "supervisor")
	}
}

func (s *Supervisor) logDecision(ctx context.Context, act action.ProposedAction, out Outcome) {
	level := slog.LevelDebug
	switch out.Decision {
	case Modified:
		level = slog.LevelInfo
	case Rejected, EmergencyStop:
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "decision",
		"action_id", act.ID,
		"decision", string(out.Decision),
		"reason", out.Reason,
		"rules", out.RuleIDs(),
		"elapsed_ms", out.ProcessingTimeMS(),
	)
}

// #endregion
