package audit

import (
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Status is the lifecycle state of an audit run.
type Status string

// Audit lifecycle states. An audit moves forward through these and
// never backwards; completed and failed are terminal.
const (
	StatusPending          Status = "pending"
	StatusCrawling         Status = "crawling"
	StatusAnalyzing        Status = "analyzing"
	StatusGeneratingReport Status = "generating_report"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Severity classifies an issue or an analyzer result.
type Severity string

// Severity levels, from harmless to blocking.
const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// severityRank orders severities so the worst one wins when rolling up.
var severityRank = map[Severity]int{
	SeveritySuccess: 0,
	SeverityInfo:    1,
	SeverityWarning: 2,
	SeverityError:   3,
}

// OverallSeverity returns the highest severity among issues, or
// SeveritySuccess when there are none.
func OverallSeverity(issues []Issue) Severity {
	worst := SeveritySuccess
	for _, issue := range issues {
		if severityRank[issue.Severity] > severityRank[worst] {
			worst = issue.Severity
		}
	}
	return worst
}

// ImageRef describes an <img> element found on a page.
type ImageRef struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	HasAlt bool   `json:"has_alt"`
	Format string `json:"format,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// LinkRef describes an anchor found on a page.
type LinkRef struct {
	Href     string `json:"href"`
	Text     string `json:"text"`
	Internal bool   `json:"internal"`
	Nofollow bool   `json:"nofollow"`
}

// PageRecord holds everything the analyzers need to know about one
// crawled page. HTML and Doc are transient working state: they are
// released after analysis so a large crawl does not pin every DOM in
// memory for the audit's lifetime.
type PageRecord struct {
	URL             string        `json:"url"`
	FinalURL        string        `json:"final_url,omitempty"`
	StatusCode      int           `json:"status_code"`
	Depth           int           `json:"depth"`
	Title           string        `json:"title"`
	MetaDescription string        `json:"meta_description"`
	MetaRobots      string        `json:"meta_robots,omitempty"`
	Noindex         bool          `json:"noindex"`
	Canonical       string        `json:"canonical,omitempty"`
	Headings        [6][]string   `json:"headings"`
	WordCount       int           `json:"word_count"`
	Images          []ImageRef    `json:"images"`
	InternalLinks   []string      `json:"internal_links"`
	ExternalLinks   []LinkRef     `json:"external_links"`
	Headers         http.Header   `json:"-"`
	LoadTime        time.Duration `json:"load_time_ms"`
	FetchedAt       time.Time     `json:"fetched_at"`

	HTML []byte            `json:"-"`
	Doc  *goquery.Document `json:"-"`
}

// H1 returns the first h1 heading, or empty when the page has none.
func (p *PageRecord) H1() string {
	if len(p.Headings[0]) == 0 {
		return ""
	}
	return p.Headings[0][0]
}

// ReleaseContent drops the raw HTML and parsed DOM.
func (p *PageRecord) ReleaseContent() {
	p.HTML = nil
	p.Doc = nil
}

// Issue is a single finding reported by an analyzer.
type Issue struct {
	Category       string   `json:"category"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Details        string   `json:"details,omitempty"`
	AffectedURLs   []string `json:"affected_urls,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Count          int      `json:"count,omitempty"`
}

// Result is the outcome of one analyzer over the whole crawl.
type Result struct {
	Name     string         `json:"name"`
	Severity Severity       `json:"severity"`
	Summary  string         `json:"summary"`
	Issues   []Issue        `json:"issues"`
	Data     map[string]any `json:"data,omitempty"`
}

// Audit is the full record of one audit run.
type Audit struct {
	ID             string                 `json:"id"`
	URL            string                 `json:"url"`
	Status         Status                 `json:"status"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	PagesCrawled   int                    `json:"pages_crawled"`
	TotalIssues    int                    `json:"total_issues"`
	CriticalIssues int                    `json:"critical_issues"`
	Warnings       int                    `json:"warnings"`
	PassedChecks   int                    `json:"passed_checks"`
	Results        map[string]Result      `json:"results,omitempty"`
	FailedUnits    []string               `json:"failed_units,omitempty"`
	Pages          map[string]*PageRecord `json:"-"`
	ErrorText      string                 `json:"error,omitempty"`
}

// Terminal reports whether the audit has finished, successfully or not.
func (a *Audit) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// Tally recomputes the aggregate counters from Results. Units that
// produced no issues count as passed checks.
func (a *Audit) Tally() {
	a.TotalIssues = 0
	a.CriticalIssues = 0
	a.Warnings = 0
	a.PassedChecks = 0
	for _, res := range a.Results {
		a.TotalIssues += len(res.Issues)
		for _, issue := range res.Issues {
			switch issue.Severity {
			case SeverityError:
				a.CriticalIssues++
			case SeverityWarning:
				a.Warnings++
			}
		}
		if len(res.Issues) == 0 {
			a.PassedChecks++
		}
	}
}
