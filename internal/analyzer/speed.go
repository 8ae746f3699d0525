package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/seolens/siteaudit/internal/audit"
)

// pagespeedEndpoint is the Google PageSpeed Insights v5 API.
const pagespeedEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// PageSpeedConfig tunes the PageSpeed unit.
type PageSpeedConfig struct {
	// APIKey raises the API quota. Optional.
	APIKey string

	// Timeout bounds the API call. PageSpeed runs a full Lighthouse
	// pass server-side, so this is generous by default.
	Timeout time.Duration
}

// PageSpeed measures the seed URL with the PageSpeed Insights API. It
// only needs the seed URL, so the scheduler starts it before the crawl
// and its latency hides behind the crawl.
type PageSpeed struct {
	cfg    PageSpeedConfig
	client *http.Client
}

// NewPageSpeed creates the PageSpeed unit. client may be nil.
func NewPageSpeed(cfg PageSpeedConfig, client *http.Client) *PageSpeed {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 55 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &PageSpeed{cfg: cfg, client: client}
}

func (p *PageSpeed) Name() string { return "pagespeed" }

// CrawlIndependent marks the unit as not needing crawl data.
func (p *PageSpeed) CrawlIndependent() {}

// pagespeedResponse is the subset of the API response the unit reads.
type pagespeedResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
		Audits map[string]struct {
			DisplayValue string  `json:"displayValue"`
			NumericValue float64 `json:"numericValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

func (p *PageSpeed) Analyze(ctx context.Context, in Input) (audit.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("url", in.SiteURL)
	q.Set("strategy", "mobile")
	if p.cfg.APIKey != "" {
		q.Set("key", p.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pagespeedEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return audit.Result{}, fmt.Errorf("build pagespeed request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return audit.Result{}, fmt.Errorf("call pagespeed api: %w", err)
		}
		return p.unavailable(in, err.Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return p.unavailable(in, fmt.Sprintf("API returned HTTP %d", resp.StatusCode)), nil
	}

	var body pagespeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return audit.Result{}, fmt.Errorf("decode pagespeed response: %w", err)
	}

	score := body.LighthouseResult.Categories.Performance.Score

	var issues []audit.Issue
	switch {
	case score < 0.5:
		issues = append(issues, audit.Issue{
			Category:       "pagespeed",
			Severity:       audit.SeverityError,
			Message:        fmt.Sprintf("Poor performance score: %.0f/100", score*100),
			AffectedURLs:   []string{in.SiteURL},
			Recommendation: "Slow pages lose visitors and rankings. Start with the largest opportunities Lighthouse lists.",
		})
	case score < 0.9:
		issues = append(issues, audit.Issue{
			Category:       "pagespeed",
			Severity:       audit.SeverityWarning,
			Message:        fmt.Sprintf("Performance score needs improvement: %.0f/100", score*100),
			AffectedURLs:   []string{in.SiteURL},
			Recommendation: "A score of 90 or above keeps Core Web Vitals in the green.",
		})
	}

	data := map[string]any{
		"performance_score": score * 100,
		"strategy":          "mobile",
	}
	for key, name := range map[string]string{
		"first-contentful-paint":   "first_contentful_paint",
		"largest-contentful-paint": "largest_contentful_paint",
		"cumulative-layout-shift":  "cumulative_layout_shift",
		"total-blocking-time":      "total_blocking_time",
		"speed-index":              "speed_index",
	} {
		if a, ok := body.LighthouseResult.Audits[key]; ok {
			data[name] = a.DisplayValue
		}
	}

	return audit.Result{
		Name:     p.Name(),
		Severity: audit.OverallSeverity(issues),
		Summary:  fmt.Sprintf("Performance score %.0f/100", score*100),
		Issues:   issues,
		Data:     data,
	}, nil
}

// unavailable degrades an unreachable API into a warning result. The
// rest of the audit is unaffected by Google-side outages or quota.
func (p *PageSpeed) unavailable(in Input, reason string) audit.Result {
	return audit.Result{
		Name:     p.Name(),
		Severity: audit.SeverityWarning,
		Summary:  "PageSpeed API unavailable",
		Issues: []audit.Issue{{
			Category:       "pagespeed",
			Severity:       audit.SeverityWarning,
			Message:        "PageSpeed measurement unavailable",
			Details:        reason,
			AffectedURLs:   []string{in.SiteURL},
			Recommendation: "Retry later. An API key raises the request quota.",
		}},
		Data: map[string]any{"strategy": "mobile"},
	}
}
