package analyzer

import (
	"context"

	"github.com/seolens/siteaudit/internal/audit"
)

// Input is everything an analyzer unit may look at.
type Input struct {
	// AuditID identifies the run, for logging.
	AuditID string

	// SiteURL is the audit's seed URL.
	SiteURL string

	// Pages are the crawled pages, keyed by normalized URL. Empty for
	// crawl-independent units started before the crawl.
	Pages map[string]*audit.PageRecord
}

// Analyzer is one audit check run over the crawl.
type Analyzer interface {
	// Name identifies the unit in results and logs.
	Name() string

	// Analyze inspects the input and reports findings. An error marks
	// the whole unit as failed without affecting other units.
	Analyze(ctx context.Context, in Input) (audit.Result, error)
}

// CrawlIndependent marks analyzers that do not read crawled pages.
// The scheduler starts them before the crawl and joins them last, so
// their network latency hides behind the crawl.
type CrawlIndependent interface {
	CrawlIndependent()
}

// Split separates units into crawl-independent and crawl-dependent.
func Split(units []Analyzer) (early, normal []Analyzer) {
	for _, u := range units {
		if _, ok := u.(CrawlIndependent); ok {
			early = append(early, u)
			continue
		}
		normal = append(normal, u)
	}
	return early, normal
}
