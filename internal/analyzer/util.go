package analyzer

import (
	"fmt"
	"sort"

	"github.com/seolens/siteaudit/internal/audit"
)

// okPages returns the sorted URLs of pages that rendered with a 200,
// so every unit walks the crawl in a stable order.
func okPages(pages map[string]*audit.PageRecord) []string {
	urls := make([]string, 0, len(pages))
	for url, rec := range pages {
		if rec.StatusCode == 200 {
			urls = append(urls, url)
		}
	}
	sort.Strings(urls)
	return urls
}

func summarize(noun string, issues []audit.Issue) string {
	if len(issues) == 0 {
		return fmt.Sprintf("No %s issues found", noun)
	}
	if len(issues) == 1 {
		return fmt.Sprintf("1 %s issue found", noun)
	}
	return fmt.Sprintf("%d %s issues found", len(issues), noun)
}
