package analyzer

import (
	"context"
	"sort"

	"github.com/seolens/siteaudit/internal/audit"
)

// Headings checks the heading structure of every page.
type Headings struct{}

// NewHeadings creates the heading structure unit.
func NewHeadings() *Headings { return &Headings{} }

func (h *Headings) Name() string { return "headings" }

func (h *Headings) Analyze(_ context.Context, in Input) (audit.Result, error) {
	var (
		missingH1  []string
		multipleH1 []string
		skipped    []string
		empty      []string
	)
	byH1 := make(map[string][]string)

	for _, url := range okPages(in.Pages) {
		rec := in.Pages[url]
		switch len(rec.Headings[0]) {
		case 0:
			missingH1 = append(missingH1, url)
		case 1:
		default:
			multipleH1 = append(multipleH1, url)
		}
		if h1 := rec.H1(); h1 != "" {
			byH1[h1] = append(byH1[h1], url)
		}

		if skipsLevel(rec.Headings) {
			skipped = append(skipped, url)
		}
		if hasEmptyHeading(rec.Headings) {
			empty = append(empty, url)
		}
	}

	var duplicateH1 []string
	for _, urls := range byH1 {
		if len(urls) > 1 {
			duplicateH1 = append(duplicateH1, urls...)
		}
	}
	sort.Strings(duplicateH1)

	var issues []audit.Issue
	if len(missingH1) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "headings",
			Severity:       audit.SeverityError,
			Message:        "Pages without an h1",
			AffectedURLs:   missingH1,
			Count:          len(missingH1),
			Recommendation: "Each page needs exactly one h1 describing its topic.",
		})
	}
	if len(multipleH1) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "headings",
			Severity:       audit.SeverityWarning,
			Message:        "Pages with more than one h1",
			AffectedURLs:   multipleH1,
			Count:          len(multipleH1),
			Recommendation: "Keep a single h1 and use h2-h6 for structure.",
		})
	}
	if len(duplicateH1) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "headings",
			Severity:       audit.SeverityWarning,
			Message:        "Pages sharing the same h1",
			AffectedURLs:   duplicateH1,
			Count:          len(duplicateH1),
			Recommendation: "Give each page a distinct h1 so search engines can tell them apart.",
		})
	}
	if len(skipped) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "headings",
			Severity:       audit.SeverityInfo,
			Message:        "Pages that skip heading levels",
			Details:        "A heading level is used without its parent level appearing on the page",
			AffectedURLs:   skipped,
			Count:          len(skipped),
			Recommendation: "Keep heading levels sequential so the outline stays meaningful.",
		})
	}
	if len(empty) > 0 {
		issues = append(issues, audit.Issue{
			Category:     "headings",
			Severity:     audit.SeverityInfo,
			Message:      "Pages with empty headings",
			AffectedURLs: empty,
			Count:        len(empty),
		})
	}

	return audit.Result{
		Name:     h.Name(),
		Severity: audit.OverallSeverity(issues),
		Summary:  summarize("heading", issues),
		Issues:   issues,
		Data: map[string]any{
			"pages_checked": len(okPages(in.Pages)),
		},
	}, nil
}

// skipsLevel reports whether two used heading levels are more than one
// step apart, e.g. an h3 on a page whose deepest heading above it is h1.
func skipsLevel(headings [6][]string) bool {
	prev := -1
	for i, level := range headings {
		if len(level) == 0 {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			return true
		}
		prev = i
	}
	return false
}

func hasEmptyHeading(headings [6][]string) bool {
	for _, level := range headings {
		for _, text := range level {
			if text == "" {
				return true
			}
		}
	}
	return false
}
