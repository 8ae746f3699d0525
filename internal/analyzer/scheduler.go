package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/metrics"
)

// OutcomeKind classifies how a unit finished.
type OutcomeKind int

const (
	// OutcomeSuccess means the unit produced a result.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeTimeout means the unit exceeded its time budget.
	OutcomeTimeout

	// OutcomeError means the unit returned an error or panicked.
	OutcomeError
)

// Outcome is the final state of one unit.
type Outcome struct {
	Name     string
	Kind     OutcomeKind
	Result   audit.Result
	Err      error
	Duration time.Duration
}

// Handle tracks one launched unit.
type Handle struct {
	name    string
	done    chan struct{}
	outcome Outcome
}

// Outcome blocks until the unit finishes and returns its outcome.
func (h *Handle) Outcome() Outcome {
	<-h.done
	return h.outcome
}

// Hooks observe unit lifecycle. Either field may be nil.
type Hooks struct {
	// OnStart fires when a unit begins running, after it has a
	// concurrency slot.
	OnStart func(name string)

	// OnDone fires after each unit is joined, with the completed and
	// total counts.
	OnDone func(name string, completed, total int)
}

// Config tunes the Scheduler.
type Config struct {
	// MaxConcurrent caps units running at once.
	MaxConcurrent int

	// UnitTimeout bounds each unit's run.
	UnitTimeout time.Duration
}

// Scheduler runs analyzer units concurrently with a shared concurrency
// cap and a per-unit timeout. One slow, failing, or panicking unit
// never takes down the others.
type Scheduler struct {
	cfg     Config
	sem     *semaphore.Weighted
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewScheduler creates a Scheduler. metrics may be nil.
func NewScheduler(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:  logger.Named("analyzer"),
		metrics: m,
	}
}

// Launch starts one unit in the background and returns a handle to
// join it with later.
func (s *Scheduler) Launch(ctx context.Context, unit Analyzer, in Input, onStart func(name string)) *Handle {
	h := &Handle{name: unit.Name(), done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.outcome = s.run(ctx, unit, in, onStart)
	}()
	return h
}

// RunAll launches units, joins them as they finish, then joins the
// pre-launched early handles last.
func (s *Scheduler) RunAll(ctx context.Context, units []Analyzer, early []*Handle, in Input, hooks Hooks) []Outcome {
	total := len(units) + len(early)
	outcomes := make([]Outcome, 0, total)

	results := make(chan Outcome, len(units))
	for _, unit := range units {
		go func() {
			results <- s.run(ctx, unit, in, hooks.OnStart)
		}()
	}
	for range units {
		out := <-results
		outcomes = append(outcomes, out)
		if hooks.OnDone != nil {
			hooks.OnDone(out.Name, len(outcomes), total)
		}
	}
	for _, h := range early {
		out := h.Outcome()
		outcomes = append(outcomes, out)
		if hooks.OnDone != nil {
			hooks.OnDone(out.Name, len(outcomes), total)
		}
	}
	return outcomes
}

// run executes one unit under the semaphore and timeout, converting
// panics and deadline hits into outcomes.
func (s *Scheduler) run(ctx context.Context, unit Analyzer, in Input, onStart func(string)) (out Outcome) {
	out = Outcome{Name: unit.Name()}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		out.Kind = OutcomeError
		out.Err = err
		return out
	}
	defer s.sem.Release(1)

	if onStart != nil {
		onStart(out.Name)
	}

	unitCtx, cancel := context.WithTimeout(ctx, s.cfg.UnitTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		if r := recover(); r != nil {
			out.Kind = OutcomeError
			out.Err = fmt.Errorf("analyzer panic: %v", r)
			s.logger.Error("analyzer unit panicked",
				zap.String("unit", out.Name),
				zap.Any("panic", r))
		}
		s.observe(out)
	}()

	result, err := unit.Analyze(unitCtx, in)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && unitCtx.Err() != nil {
			out.Kind = OutcomeTimeout
			out.Err = err
			s.logger.Warn("analyzer unit timed out",
				zap.String("unit", out.Name),
				zap.Duration("budget", s.cfg.UnitTimeout))
			return out
		}
		out.Kind = OutcomeError
		out.Err = err
		s.logger.Warn("analyzer unit failed",
			zap.String("unit", out.Name),
			zap.Error(err))
		return out
	}
	out.Kind = OutcomeSuccess
	out.Result = result
	return out
}

func (s *Scheduler) observe(out Outcome) {
	if s.metrics == nil {
		return
	}
	s.metrics.AnalyzerDuration.WithLabelValues(out.Name).Observe(out.Duration.Seconds())
	label := "success"
	switch out.Kind {
	case OutcomeTimeout:
		label = "timeout"
	case OutcomeError:
		label = "error"
	}
	s.metrics.AnalyzerOutcomes.WithLabelValues(out.Name, label).Inc()
}
