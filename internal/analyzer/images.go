package analyzer

import (
	"context"
	"fmt"

	"github.com/seolens/siteaudit/internal/audit"
)

// modernFormats compress well enough that anything else is worth a
// mention.
var modernFormats = map[string]struct{}{
	"webp": {}, "avif": {}, "svg": {},
}

// Images checks alt text, formats, and explicit dimensions of every
// image on the crawl.
type Images struct{}

// NewImages creates the image unit.
func NewImages() *Images { return &Images{} }

func (im *Images) Name() string { return "images" }

func (im *Images) Analyze(_ context.Context, in Input) (audit.Result, error) {
	var (
		total        int
		missingAlt   []string
		legacyFormat []string
		noDimensions []string
	)
	seenMissing := make(map[string]struct{})
	seenLegacy := make(map[string]struct{})
	seenNoDims := make(map[string]struct{})

	for _, url := range okPages(in.Pages) {
		rec := in.Pages[url]
		for _, img := range rec.Images {
			total++
			if !img.HasAlt || img.Alt == "" {
				if _, ok := seenMissing[url]; !ok {
					seenMissing[url] = struct{}{}
					missingAlt = append(missingAlt, url)
				}
			}
			if img.Format != "" {
				if _, modern := modernFormats[img.Format]; !modern {
					if _, ok := seenLegacy[url]; !ok {
						seenLegacy[url] = struct{}{}
						legacyFormat = append(legacyFormat, url)
					}
				}
			}
			if img.Width == "" || img.Height == "" {
				if _, ok := seenNoDims[url]; !ok {
					seenNoDims[url] = struct{}{}
					noDimensions = append(noDimensions, url)
				}
			}
		}
	}

	var issues []audit.Issue
	if len(missingAlt) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "images",
			Severity:       audit.SeverityWarning,
			Message:        "Pages with images missing alt text",
			AffectedURLs:   missingAlt,
			Count:          len(missingAlt),
			Recommendation: "Alt text is required for accessibility and helps image search.",
		})
	}
	if len(legacyFormat) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "images",
			Severity:       audit.SeverityInfo,
			Message:        "Pages serving images in legacy formats",
			Details:        "JPEG, PNG, and GIF are larger than WebP or AVIF equivalents",
			AffectedURLs:   legacyFormat,
			Count:          len(legacyFormat),
			Recommendation: "Serve WebP or AVIF with a fallback where support matters.",
		})
	}
	if len(noDimensions) > 0 {
		issues = append(issues, audit.Issue{
			Category:       "images",
			Severity:       audit.SeverityInfo,
			Message:        "Pages with images lacking explicit dimensions",
			Details:        "Images without width and height attributes cause layout shift while loading",
			AffectedURLs:   noDimensions,
			Count:          len(noDimensions),
		})
	}

	return audit.Result{
		Name:     im.Name(),
		Severity: audit.OverallSeverity(issues),
		Summary:  fmt.Sprintf("%d images checked, %s", total, summarize("image", issues)),
		Issues:   issues,
		Data: map[string]any{
			"total_images": total,
		},
	}, nil
}
