package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/seolens/siteaudit/internal/audit"
)

// MetaConfig bounds title and description lengths.
type MetaConfig struct {
	TitleMinLength int
	TitleMaxLength int
	DescMinLength  int
	DescMaxLength  int
}

// MetaTags checks titles and meta descriptions across the crawl.
type MetaTags struct {
	cfg MetaConfig
}

// NewMetaTags creates the meta tag unit.
func NewMetaTags(cfg MetaConfig) *MetaTags {
	if cfg.TitleMinLength <= 0 {
		cfg.TitleMinLength = 50
	}
	if cfg.TitleMaxLength <= 0 {
		cfg.TitleMaxLength = 60
	}
	if cfg.DescMinLength <= 0 {
		cfg.DescMinLength = 150
	}
	if cfg.DescMaxLength <= 0 {
		cfg.DescMaxLength = 160
	}
	return &MetaTags{cfg: cfg}
}

func (m *MetaTags) Name() string { return "meta_tags" }

func (m *MetaTags) Analyze(_ context.Context, in Input) (audit.Result, error) {
	var (
		missingTitle []string
		shortTitle   []string
		longTitle    []string
		missingDesc  []string
		badDescLen   []string
		titlePages   = make(map[string][]string)
	)

	for _, url := range okPages(in.Pages) {
		rec := in.Pages[url]
		switch {
		case rec.Title == "":
			missingTitle = append(missingTitle, url)
		case len(rec.Title) < m.cfg.TitleMinLength:
			shortTitle = append(shortTitle, url)
		case len(rec.Title) > m.cfg.TitleMaxLength:
			longTitle = append(longTitle, url)
		}
		if rec.Title != "" {
			titlePages[rec.Title] = append(titlePages[rec.Title], url)
		}

		switch {
		case rec.MetaDescription == "":
			missingDesc = append(missingDesc, url)
		case len(rec.MetaDescription) < m.cfg.DescMinLength,
			len(rec.MetaDescription) > m.cfg.DescMaxLength:
			badDescLen = append(badDescLen, url)
		}
	}

	var issues []audit.Issue
	if len(missingTitle) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "meta_tags",
			Severity:       audit.SeverityError,
			Message:        "Pages without a title tag",
			AffectedURLs:   missingTitle,
			Count:          len(missingTitle),
			Recommendation: "Every page needs a unique, descriptive title tag.",
		})
	}
	if len(shortTitle) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "meta_tags",
			Severity:       audit.SeverityWarning,
			Message:        fmt.Sprintf("Titles shorter than %d characters", m.cfg.TitleMinLength),
			AffectedURLs:   shortTitle,
			Count:          len(shortTitle),
			Recommendation: fmt.Sprintf("Aim for titles between %d and %d characters.", m.cfg.TitleMinLength, m.cfg.TitleMaxLength),
		})
	}
	if len(longTitle) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "meta_tags",
			Severity:       audit.SeverityWarning,
			Message:        fmt.Sprintf("Titles longer than %d characters", m.cfg.TitleMaxLength),
			AffectedURLs:   longTitle,
			Count:          len(longTitle),
			Recommendation: "Long titles get truncated in search results.",
		})
	}

	var dupTitles []string
	for title, urls := range titlePages {
		if len(urls) > 1 {
			dupTitles = append(dupTitles, title)
		}
	}
	if len(dupTitles) > 0 {
		sort.Strings(dupTitles)
		var affected []string
		for _, title := range dupTitles {
			affected = append(affected, titlePages[title]...)
		}
		sort.Strings(affected)
		issues = append(issues, audit.Issue{
			Category:       "meta_tags",
			Severity:       audit.SeverityWarning,
			Message:        "Duplicate titles across pages",
			Details:        fmt.Sprintf("%d titles are shared by more than one page", len(dupTitles)),
			AffectedURLs:   affected,
			Count:          len(affected),
			Recommendation: "Give each page a title that describes its unique content.",
		})
	}

	if len(missingDesc) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "meta_tags",
			Severity:       audit.SeverityWarning,
			Message:        "Pages without a meta description",
			AffectedURLs:   missingDesc,
			Count:          len(missingDesc),
			Recommendation: "Meta descriptions influence click-through from search results.",
		})
	}
	if len(badDescLen) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "meta_tags",
			Severity:       audit.SeverityInfo,
			Message:        fmt.Sprintf("Meta descriptions outside %d-%d characters", m.cfg.DescMinLength, m.cfg.DescMaxLength),
			AffectedURLs:   badDescLen,
			Count:          len(badDescLen),
			Recommendation: "Descriptions outside this range get truncated or padded by search engines.",
		})
	}

	return audit.Result{
		Name:     m.Name(),
		Severity: audit.OverallSeverity(issues),
		Summary:  summarize("meta tag", issues),
		Issues:   issues,
		Data: map[string]any{
			"pages_checked":    len(okPages(in.Pages)),
			"duplicate_titles": len(dupTitles),
		},
	}, nil
}
