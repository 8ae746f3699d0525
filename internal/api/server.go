package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/analyzer"
	"github.com/seolens/siteaudit/internal/metrics"
	"github.com/seolens/siteaudit/internal/runner"
	"github.com/seolens/siteaudit/internal/store"
)

// Config tunes the HTTP server.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	// APIKey, when set, is required in the X-API-Key header on /api
	// routes.
	APIKey string

	// SSEKeepalive is how long the event stream stays silent before a
	// comment ping is sent.
	SSEKeepalive time.Duration

	// SSEMaxDuration hard-caps one streaming connection.
	SSEMaxDuration time.Duration
}

// Server is the HTTP front end of the audit engine.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	store    *store.Memory
	runner   *runner.Runner
	registry *analyzer.Registry
	metrics  *metrics.Metrics

	http *http.Server
}

// New creates a Server. metrics may be nil.
func New(cfg Config, logger *zap.Logger, st *store.Memory, run *runner.Runner, registry *analyzer.Registry, m *metrics.Metrics) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.SSEKeepalive <= 0 {
		cfg.SSEKeepalive = time.Minute
	}
	if cfg.SSEMaxDuration <= 0 {
		cfg.SSEMaxDuration = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("api"),
		store:    st,
		runner:   run,
		registry: registry,
		metrics:  m,
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router assembles the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics(s.metrics))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apiKeyAuth(s.cfg.APIKey))
		r.Route("/audits", func(r chi.Router) {
			// The SSE route manages its own lifetime and cannot sit
			// behind the request timeout.
			r.Get("/{id}/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(s.cfg.RequestTimeout))
				r.Post("/", s.handleCreate)
				r.Get("/{id}", s.handleStatus)
				r.Get("/{id}/results", s.handleResults)
			})
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
			r.Get("/analyzers", s.handleAnalyzers)
		})
	})
	return r
}

// Start serves until ctx ends, then drains connections within the
// shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}
