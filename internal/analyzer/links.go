package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/seolens/siteaudit/internal/audit"
)

// Links checks internal link health across the crawl: unreachable
// targets, client and server errors, and pages nothing links to.
type Links struct{}

// NewLinks creates the link unit.
func NewLinks() *Links { return &Links{} }

func (l *Links) Name() string { return "links" }

func (l *Links) Analyze(_ context.Context, in Input) (audit.Result, error) {
	linkedFrom := make(map[string][]string)
	externalTotal := 0

	for url, rec := range in.Pages {
		if rec.StatusCode != 200 {
			continue
		}
		externalTotal += len(rec.ExternalLinks)
		for _, target := range rec.InternalLinks {
			linkedFrom[target] = append(linkedFrom[target], url)
		}
	}

	var (
		unreachable []string
		errorPages  []string
		orphans     []string
	)
	for url, rec := range in.Pages {
		sources := linkedFrom[url]
		switch {
		case rec.StatusCode == 0 && len(sources) > 0:
			unreachable = append(unreachable, url)
		case rec.StatusCode >= 400 && len(sources) > 0:
			errorPages = append(errorPages, url)
		}
		if rec.StatusCode == 200 && rec.Depth > 0 && len(sources) == 0 {
			orphans = append(orphans, url)
		}
	}
	sort.Strings(unreachable)
	sort.Strings(errorPages)
	sort.Strings(orphans)

	var issues []audit.Issue
	if len(unreachable) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "links",
			Severity:       audit.SeverityError,
			Message:        "Internal links to unreachable pages",
			Details:        "These targets did not respond at all",
			AffectedURLs:   unreachable,
			Count:          len(unreachable),
			Recommendation: "Fix or remove links to pages that no longer resolve.",
		})
	}
	if len(errorPages) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "links",
			Severity:       audit.SeverityError,
			Message:        "Internal links to error pages",
			AffectedURLs:   errorPages,
			Count:          len(errorPages),
			Recommendation: "Update links pointing at 4xx and 5xx responses.",
		})
	}
	if len(orphans) > 0 {
		issues = append(issues, audit.Issue{
			Category:     "links",
			Severity:     audit.SeverityInfo,
			Message:      "Pages reached only through redirects or the seed",
			Details:      "No crawled page links to these URLs directly",
			AffectedURLs: orphans,
			Count:        len(orphans),
		})
	}

	return audit.Result{
		Name:     l.Name(),
		Severity: audit.OverallSeverity(issues),
		Summary:  fmt.Sprintf("%d internal targets checked, %s", len(linkedFrom), summarize("link", issues)),
		Issues:   issues,
		Data: map[string]any{
			"internal_targets": len(linkedFrom),
			"external_links":   externalTotal,
		},
	}, nil
}
