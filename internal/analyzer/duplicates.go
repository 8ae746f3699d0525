package analyzer

import (
	"context"
	"fmt"

	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/similarity"
)

// Duplicates reports groups of pages with identical or near-identical
// main content.
type Duplicates struct {
	detector *similarity.Detector
}

// NewDuplicates creates the duplicate content unit.
func NewDuplicates(detector *similarity.Detector) *Duplicates {
	return &Duplicates{detector: detector}
}

func (d *Duplicates) Name() string { return "duplicates" }

func (d *Duplicates) Analyze(_ context.Context, in Input) (audit.Result, error) {
	groups := d.detector.Detect(in.Pages)

	var issues []audit.Issue
	exactGroups, nearGroups := 0, 0
	for _, g := range groups {
		if g.Exact {
			exactGroups++
			issues = append(issues, audit.Issue{
				Category:       "duplicates",
				Severity:       audit.SeverityError,
				Message:        "Pages with identical content",
				Details:        fmt.Sprintf("%d pages share byte-identical main content", len(g.URLs)),
				AffectedURLs:   g.URLs,
				Count:          len(g.URLs),
				Recommendation: "Consolidate these pages or declare one canonical.",
			})
			continue
		}
		nearGroups++
		issues = append(issues, audit.Issue{
			Category:       "duplicates",
			Severity:       audit.SeverityWarning,
			Message:        "Pages with near-duplicate content",
			Details:        fmt.Sprintf("%d pages are at least %.0f%% similar", len(g.URLs), g.Similarity*100),
			AffectedURLs:   g.URLs,
			Count:          len(g.URLs),
			Recommendation: "Differentiate the content or point the variants at a canonical page.",
		})
	}

	return audit.Result{
		Name:     d.Name(),
		Severity: audit.OverallSeverity(issues),
		Summary:  summarize("duplicate content", issues),
		Issues:   issues,
		Data: map[string]any{
			"exact_groups": exactGroups,
			"near_groups":  nearGroups,
		},
	}, nil
}
