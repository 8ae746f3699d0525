// Package runner drives one audit end to end: crawl, analysis,
// report, with progress published at every step.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/analyzer"
	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/crawl"
	"github.com/seolens/siteaudit/internal/metrics"
	"github.com/seolens/siteaudit/internal/progress"
	"github.com/seolens/siteaudit/internal/store"
)

// failureMessage is what clients see when a run dies unexpectedly.
// Internal details stay in the logs.
const failureMessage = "The audit could not be completed due to an internal error"

// Progress percent bands: the crawl owns 0-40, analysis 40-80, report
// assembly lands at 85 before the terminal 100.
const (
	crawlBand    = 40.0
	analysisBand = 40.0
	reportMark   = 85.0
)

// Config tunes the runner.
type Config struct {
	Crawl    crawl.Config
	Progress progress.Config
}

// Runner starts and supervises audit runs.
type Runner struct {
	cfg      Config
	renderer audit.Renderer
	store    *store.Memory
	registry *analyzer.Registry
	sched    *analyzer.Scheduler
	clock    audit.Clock
	ids      audit.IDGenerator
	logger   *zap.Logger
	metrics  *metrics.Metrics
	sinks    []progress.Sink
}

// New creates a Runner. metrics may be nil.
func New(
	cfg Config,
	renderer audit.Renderer,
	st *store.Memory,
	registry *analyzer.Registry,
	sched *analyzer.Scheduler,
	clock audit.Clock,
	ids audit.IDGenerator,
	logger *zap.Logger,
	m *metrics.Metrics,
	sinks ...progress.Sink,
) *Runner {
	if cfg.Crawl.MaxPages <= 0 {
		cfg.Crawl.MaxPages = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		renderer: renderer,
		store:    st,
		registry: registry,
		sched:    sched,
		clock:    clock,
		ids:      ids,
		logger:   logger.Named("runner"),
		metrics:  m,
		sinks:    sinks,
	}
}

// Start validates the request, registers a pending audit, and launches
// the run in the background. ctx bounds the whole run, not just this
// call.
func (r *Runner) Start(ctx context.Context, siteURL string, unitNames []string) (string, error) {
	units, err := r.registry.Select(unitNames)
	if err != nil {
		return "", err
	}
	if _, err := crawl.NewValidator(siteURL); err != nil {
		return "", fmt.Errorf("seed url: %w", err)
	}
	seed, err := crawl.Normalize(siteURL)
	if err != nil {
		return "", fmt.Errorf("seed url: %w", err)
	}

	id, err := r.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("allocate audit id: %w", err)
	}

	a := &audit.Audit{
		ID:        id,
		URL:       seed,
		Status:    audit.StatusPending,
		StartedAt: r.clock.Now(),
	}
	b := progress.NewBroadcaster(r.cfg.Progress, r.logger, r.sinks...)
	r.store.Put(a, b)

	if r.metrics != nil {
		r.metrics.AuditsStarted.Inc()
	}
	r.logger.Info("audit started",
		zap.String("audit_id", id),
		zap.String("url", seed))

	go r.run(ctx, id, seed, units, b)
	return id, nil
}

// run executes the audit. Any panic fails the audit with a generic
// message instead of crashing the process.
func (r *Runner) run(ctx context.Context, id, seed string, units []analyzer.Analyzer, b *progress.Broadcaster) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("audit run panicked",
				zap.String("audit_id", id),
				zap.Any("panic", rec))
			r.fail(id, b)
		}
	}()

	early, normal := analyzer.Split(units)
	pub := r.monotonicPublisher(b)

	pub(progress.Event{
		AuditID: id,
		Status:  audit.StatusPending,
		Stage:   "queued",
		Message: "Audit queued",
	})

	total := len(units)
	onStart := func(name string) {
		pub(progress.Event{
			AuditID:    id,
			Status:     audit.StatusAnalyzing,
			Stage:      "analyzing",
			Message:    fmt.Sprintf("Running %s", name),
			TotalUnits: total,
		})
	}

	// Crawl-independent units start now so their latency overlaps the
	// crawl. They are joined after the crawl-dependent units.
	in := analyzer.Input{AuditID: id, SiteURL: seed}
	handles := make([]*analyzer.Handle, 0, len(early))
	for _, unit := range early {
		handles = append(handles, r.sched.Launch(ctx, unit, in, onStart))
	}

	var pages map[string]*audit.PageRecord
	if len(normal) > 0 {
		pages = r.crawlPhase(ctx, id, seed, pub)
	} else {
		r.logger.Info("skipping crawl, no crawl-dependent units selected",
			zap.String("audit_id", id))
	}

	r.setStatus(id, audit.StatusAnalyzing)
	pub(progress.Event{
		AuditID:      id,
		Status:       audit.StatusAnalyzing,
		Stage:        "analyzing",
		Percent:      crawlBand,
		Message:      "Running analyzers",
		PagesCrawled: len(pages),
		TotalUnits:   total,
	})

	in.Pages = pages
	outcomes := r.sched.RunAll(ctx, normal, handles, in, analyzer.Hooks{
		OnStart: onStart,
		OnDone: func(name string, completed, total int) {
			pub(progress.Event{
				AuditID:        id,
				Status:         audit.StatusAnalyzing,
				Stage:          "analyzing",
				Percent:        crawlBand + float64(completed)/float64(total)*analysisBand,
				Message:        fmt.Sprintf("Finished %s", name),
				CompletedUnits: completed,
				TotalUnits:     total,
			})
		},
	})

	r.setStatus(id, audit.StatusGeneratingReport)
	pub(progress.Event{
		AuditID: id,
		Status:  audit.StatusGeneratingReport,
		Stage:   "report",
		Percent: reportMark,
		Message: "Assembling report",
	})

	results := make(map[string]audit.Result, len(outcomes))
	var failed []string
	for _, out := range outcomes {
		switch out.Kind {
		case analyzer.OutcomeSuccess:
			results[out.Name] = out.Result
		case analyzer.OutcomeTimeout:
			failed = append(failed, out.Name)
		case analyzer.OutcomeError:
			failed = append(failed, out.Name)
		}
	}

	now := r.clock.Now()
	err := r.store.Update(id, func(a *audit.Audit) {
		a.Status = audit.StatusCompleted
		a.CompletedAt = &now
		a.PagesCrawled = len(pages)
		a.Results = results
		a.FailedUnits = failed
		a.Tally()
	})
	if err != nil {
		r.logger.Warn("audit evicted mid-run", zap.String("audit_id", id))
		return
	}

	// Raw HTML and DOMs are only needed during analysis.
	for _, rec := range pages {
		rec.ReleaseContent()
	}

	pub(progress.Event{
		AuditID: id,
		Status:  audit.StatusCompleted,
		Stage:   "done",
		Percent: 100,
		Message: "Audit complete",
	})
	r.logger.Info("audit complete",
		zap.String("audit_id", id),
		zap.Int("pages", len(pages)),
		zap.Int("units", len(units)),
		zap.Int("failed_units", len(failed)),
		zap.Duration("took", now.Sub(startedAt(r.store, id))))
}

// crawlPhase runs the crawl and reports its progress within the crawl
// band.
func (r *Runner) crawlPhase(ctx context.Context, id, seed string, pub func(progress.Event)) map[string]*audit.PageRecord {
	r.setStatus(id, audit.StatusCrawling)

	cfg := r.cfg.Crawl
	cfg.OnPage = func(url string, crawled int) {
		if r.metrics != nil {
			r.metrics.PagesCrawled.Inc()
		}
		pub(progress.Event{
			AuditID:      id,
			Status:       audit.StatusCrawling,
			Stage:        "crawling",
			Percent:      float64(crawled) / float64(r.cfg.Crawl.MaxPages) * crawlBand,
			Message:      fmt.Sprintf("Crawled %s", url),
			CurrentURL:   url,
			PagesCrawled: crawled,
		})
	}

	crawler := crawl.New(r.renderer, cfg, r.logger)
	pages, err := crawler.Crawl(ctx, seed)
	if err != nil {
		// Seed validation already passed in Start, so this is an
		// internal failure. The audit proceeds with whatever crawled.
		r.logger.Error("crawl failed",
			zap.String("audit_id", id),
			zap.Error(err))
	}
	_ = r.store.Update(id, func(a *audit.Audit) {
		a.PagesCrawled = len(pages)
		a.Pages = pages
	})
	return pages
}

func (r *Runner) setStatus(id string, status audit.Status) {
	_ = r.store.Update(id, func(a *audit.Audit) {
		a.Status = status
	})
}

// fail moves the audit to failed with a message that leaks nothing.
// Whatever the crawl accumulated is released, not kept until eviction.
func (r *Runner) fail(id string, b *progress.Broadcaster) {
	now := r.clock.Now()
	_ = r.store.Update(id, func(a *audit.Audit) {
		a.Status = audit.StatusFailed
		a.CompletedAt = &now
		a.ErrorText = failureMessage
		for _, rec := range a.Pages {
			rec.ReleaseContent()
		}
		a.Pages = nil
	})
	r.publish(b, progress.Event{
		AuditID: id,
		Status:  audit.StatusFailed,
		Stage:   "failed",
		Message: failureMessage,
	})
}

func (r *Runner) publish(b *progress.Broadcaster, ev progress.Event) {
	ev.Timestamp = r.clock.Now()
	b.Publish(ev)
}

// monotonicPublisher wraps publish so concurrent unit-start events can
// never make the reported percentage move backwards.
func (r *Runner) monotonicPublisher(b *progress.Broadcaster) func(progress.Event) {
	var mu sync.Mutex
	last := 0.0
	return func(ev progress.Event) {
		// Held across Publish so clamped events cannot be reordered.
		mu.Lock()
		defer mu.Unlock()
		if ev.Percent < last {
			ev.Percent = last
		} else {
			last = ev.Percent
		}
		r.publish(b, ev)
	}
}

func startedAt(s *store.Memory, id string) time.Time {
	snap, err := s.Snapshot(id)
	if err != nil {
		return time.Time{}
	}
	return snap.StartedAt
}
