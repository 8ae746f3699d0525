package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seolens/siteaudit/internal/analyzer"
	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/clock/system"
	"github.com/seolens/siteaudit/internal/crawl"
	"github.com/seolens/siteaudit/internal/id/uuid"
	"github.com/seolens/siteaudit/internal/progress"
	"github.com/seolens/siteaudit/internal/render"
	"github.com/seolens/siteaudit/internal/runner"
	"github.com/seolens/siteaudit/internal/similarity"
	"github.com/seolens/siteaudit/internal/store"
)

var (
	auditAnalyzers []string
	auditMaxPages  int
	auditJSON      bool
)

var auditCmd = &cobra.Command{
	Use:   "audit <url>",
	Short: "Audit one site and print the report",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringSliceVar(&auditAnalyzers, "analyzers", nil, "analyzers to run (default: all)")
	auditCmd.Flags().IntVar(&auditMaxPages, "max-pages", 0, "override the crawl page cap")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if auditMaxPages > 0 {
		cfg.Crawler.MaxPages = auditMaxPages
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	defer renderer.Close(cmd.Context()) //nolint:errcheck

	clock := system.New()
	st := store.NewMemory(store.Config{}, clock, logger)
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
	}, logger, nil)

	run := runner.New(
		runner.Config{
			Crawl: crawl.Config{
				MaxPages:         cfg.Crawler.MaxPages,
				ParallelRequests: cfg.Crawler.ParallelRequests,
				Deadline:         cfg.Crawler.CrawlDeadline,
			},
		},
		renderer, st, registry, sched,
		clock, uuid.New(), logger, nil,
	)

	id, err := run.Start(ctx, args[0], auditAnalyzers)
	if err != nil {
		return err
	}

	b, err := st.Broadcaster(id)
	if err != nil {
		return err
	}
	history, sub := b.Subscribe()
	for _, ev := range history {
		printProgress(ev)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-sub.Events():
			if !open {
				return printReport(st, id)
			}
			printProgress(ev)
			if ev.Terminal() {
				return printReport(st, id)
			}
		}
	}
}

func printProgress(ev progress.Event) {
	if ev.Message == "" {
		return
	}
	fmt.Fprintf(os.Stderr, "[%5.1f%%] %s\n", ev.Percent, ev.Message)
}

func printReport(st *store.Memory, id string) error {
	snap, err := st.Snapshot(id)
	if err != nil {
		return err
	}
	if snap.Status == audit.StatusFailed {
		return fmt.Errorf("%s", snap.ErrorText)
	}

	if auditJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	var took time.Duration
	if snap.CompletedAt != nil {
		took = snap.CompletedAt.Sub(snap.StartedAt)
	}
	fmt.Printf("Audit of %s\n", snap.URL)
	fmt.Printf("  pages crawled:   %d\n", snap.PagesCrawled)
	fmt.Printf("  total issues:    %d\n", snap.TotalIssues)
	fmt.Printf("  critical issues: %d\n", snap.CriticalIssues)
	fmt.Printf("  warnings:        %d\n", snap.Warnings)
	fmt.Printf("  passed checks:   %d\n", snap.PassedChecks)
	fmt.Printf("  duration:        %s\n", took.Round(time.Millisecond))
	if len(snap.FailedUnits) > 0 {
		fmt.Printf("  failed units:    %v\n", snap.FailedUnits)
	}
	fmt.Println()

	for _, name := range sortedResultNames(snap) {
		res := snap.Results[name]
		fmt.Printf("%s [%s] %s\n", name, res.Severity, res.Summary)
		for _, issue := range res.Issues {
			fmt.Printf("  - (%s) %s", issue.Severity, issue.Message)
			if issue.Count > 0 {
				fmt.Printf(" (%d affected)", issue.Count)
			}
			fmt.Println()
		}
	}
	return nil
}

func sortedResultNames(snap audit.Audit) []string {
	names := make([]string, 0, len(snap.Results))
	for name := range snap.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
