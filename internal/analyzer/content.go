package analyzer

import (
	"context"

	"github.com/seolens/siteaudit/internal/audit"
)

// ContentConfig bounds the content unit.
type ContentConfig struct {
	// MinWords is the floor below which a page counts as thin.
	MinWords int
}

// Content checks for thin pages and accidental noindex directives.
type Content struct {
	cfg ContentConfig
}

// NewContent creates the content unit.
func NewContent(cfg ContentConfig) *Content {
	if cfg.MinWords <= 0 {
		cfg.MinWords = 300
	}
	return &Content{cfg: cfg}
}

func (c *Content) Name() string { return "content" }

func (c *Content) Analyze(_ context.Context, in Input) (audit.Result, error) {
	var (
		thin       []string
		noindexed  []string
		totalWords int
	)

	checked := okPages(in.Pages)
	for _, url := range checked {
		rec := in.Pages[url]
		totalWords += rec.WordCount
		if rec.WordCount < c.cfg.MinWords {
			thin = append(thin, url)
		}
		if rec.Noindex {
			noindexed = append(noindexed, url)
		}
	}

	var issues []audit.Issue
	if len(thin) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "content",
			Severity:       audit.SeverityWarning,
			Message:        "Thin content pages",
			Details:        "Pages with too little text rarely rank for anything",
			AffectedURLs:   thin,
			Count:          len(thin),
			Recommendation: "Expand, merge, or noindex pages that carry little content.",
		})
	}
	if len(noindexed) > 0 {
		issues = append(issues, audit.Issue{
			Category:     "content",
			Severity:     audit.SeverityInfo,
			Message:      "Pages excluded from indexing via robots meta",
			Details:      "Verify these exclusions are intentional",
			AffectedURLs: noindexed,
			Count:        len(noindexed),
		})
	}

	avg := 0
	if len(checked) > 0 {
		avg = totalWords / len(checked)
	}

	return audit.Result{
		Name:     c.Name(),
		Severity: audit.OverallSeverity(issues),
		Summary:  summarize("content", issues),
		Issues:   issues,
		Data: map[string]any{
			"pages_checked":  len(checked),
			"average_words":  avg,
			"thin_pages":     len(thin),
			"noindexed":      len(noindexed),
			"min_word_floor": c.cfg.MinWords,
		},
	}, nil
}
