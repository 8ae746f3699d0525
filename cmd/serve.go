package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/analyzer"
	"github.com/seolens/siteaudit/internal/api"
	"github.com/seolens/siteaudit/internal/clock/system"
	"github.com/seolens/siteaudit/internal/crawl"
	"github.com/seolens/siteaudit/internal/id/uuid"
	"github.com/seolens/siteaudit/internal/metrics"
	"github.com/seolens/siteaudit/internal/progress"
	"github.com/seolens/siteaudit/internal/progress/sinks"
	"github.com/seolens/siteaudit/internal/render"
	"github.com/seolens/siteaudit/internal/runner"
	"github.com/seolens/siteaudit/internal/similarity"
	"github.com/seolens/siteaudit/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the audit HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	renderer, err := render.New(render.Config{
		UserAgent:      cfg.Crawler.UserAgent,
		ViewportWidth:  cfg.Crawler.ViewportWidth,
		ViewportHeight: cfg.Crawler.ViewportHeight,
		PageTimeout:    cfg.Crawler.PageTimeout,
		MaxTabs:        cfg.Crawler.ParallelRequests,
		DomainQPS:      cfg.Crawler.DomainQPS,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := renderer.Close(closeCtx); err != nil {
			logger.Warn("renderer close failed", zap.Error(err))
		}
	}()

	clock := system.New()
	st := store.NewMemory(store.Config{
		TTL:           cfg.Store.TTL,
		SweepInterval: cfg.Store.SweepInterval,
	}, clock, logger)
	st.StartSweeper(ctx)

	registry := analyzer.NewRegistry(analyzer.RegistryConfig{
		Meta: analyzer.MetaConfig{
			TitleMinLength: cfg.Analyzer.TitleMinLength,
			TitleMaxLength: cfg.Analyzer.TitleMaxLength,
			DescMinLength:  cfg.Analyzer.DescMinLength,
			DescMaxLength:  cfg.Analyzer.DescMaxLength,
		},
		Content: analyzer.ContentConfig{MinWords: cfg.Analyzer.MinContentWords},
		Similarity: similarity.Config{
			MinWords:           cfg.Similarity.MinWords,
			ShingleSize:        cfg.Similarity.ShingleSize,
			NumHashes:          cfg.Similarity.NumHashes,
			CandidateThreshold: cfg.Similarity.CandidateThreshold,
			NearThreshold:      cfg.Similarity.NearThreshold,
			MinLengthRatio:     cfg.Similarity.MinLengthRatio,
		},
		PageSpeed: analyzer.PageSpeedConfig{
			APIKey:  cfg.Analyzer.PageSpeedAPIKey,
			Timeout: cfg.Analyzer.PageSpeedTimeout,
		},
	}, logger)

	sched := analyzer.NewScheduler(analyzer.Config{
		MaxConcurrent: cfg.Analyzer.MaxConcurrent,
		UnitTimeout:   cfg.Analyzer.UnitTimeout,
	}, logger, m)

	run := runner.New(
		runner.Config{
			Crawl: crawl.Config{
				MaxPages:         cfg.Crawler.MaxPages,
				ParallelRequests: cfg.Crawler.ParallelRequests,
				Deadline:         cfg.Crawler.CrawlDeadline,
			},
			Progress: progress.Config{
				HistorySize: cfg.Progress.HistorySize,
				MailboxSize: cfg.Progress.MailboxSize,
			},
		},
		renderer, st, registry, sched,
		clock, uuid.New(), logger, m,
		sinks.NewLogSink(logger),
		sinks.NewPrometheusSink(m),
	)

	srv := api.New(api.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RequestTimeout:  cfg.Server.RequestTimeout,
		APIKey:          cfg.Auth.APIKey,
		SSEKeepalive:    cfg.Progress.SSEKeepalive,
		SSEMaxDuration:  cfg.Progress.SSEMaxDuration,
	}, logger, st, run, registry, m)

	return srv.Start(ctx)
}
