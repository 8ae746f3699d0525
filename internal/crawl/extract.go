package crawl

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/seolens/siteaudit/internal/audit"
)

// chromeTags are skipped when counting visible words: they carry
// navigation and machinery, not page content.
var chromeTags = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {},
	"header": {}, "footer": {}, "nav": {},
}

// Parse builds a PageRecord from a rendered snapshot. The record keeps
// both the raw HTML and the parsed document so analyzers can reuse them
// without re-parsing.
func Parse(snap audit.Snapshot, depth int, v *Validator) (*audit.PageRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(snap.Body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(snap.URL)
	if err != nil {
		return nil, err
	}

	rec := &audit.PageRecord{
		URL:        snap.URL,
		FinalURL:   snap.FinalURL,
		StatusCode: snap.StatusCode,
		Depth:      depth,
		Headers:    snap.Headers,
		LoadTime:   snap.Duration,
		HTML:       snap.Body,
		Doc:        doc,
	}

	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	rec.MetaDescription = metaContent(doc, "description")
	rec.MetaRobots = metaContent(doc, "robots")
	rec.Noindex = strings.Contains(strings.ToLower(rec.MetaRobots), "noindex")

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if resolved, err := Resolve(base, href); err == nil {
			rec.Canonical = resolved
		}
	}

	for i := range rec.Headings {
		sel := "h" + string(rune('1'+i))
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			rec.Headings[i] = append(rec.Headings[i], strings.TrimSpace(s.Text()))
		})
	}

	rec.WordCount = countWords(doc)
	rec.Images = extractImages(doc, base)
	rec.InternalLinks, rec.ExternalLinks = extractLinks(doc, base, v)

	return rec, nil
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="`+name+`"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

// countWords counts whitespace-separated tokens of the visible text,
// skipping chrome elements. The walk does not mutate the document.
func countWords(doc *goquery.Document) int {
	var sb strings.Builder
	for _, root := range doc.Selection.Nodes {
		appendVisibleText(&sb, root)
	}
	return len(strings.Fields(sb.String()))
}

func appendVisibleText(sb *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if _, skip := chromeTags[n.Data]; skip {
			return
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendVisibleText(sb, c)
	}
}

func extractImages(doc *goquery.Document, base *url.URL) []audit.ImageRef {
	var images []audit.ImageRef
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		if ref, err := url.Parse(src); err == nil {
			src = base.ResolveReference(ref).String()
		}
		alt, hasAlt := s.Attr("alt")
		img := audit.ImageRef{
			Src:    src,
			Alt:    strings.TrimSpace(alt),
			HasAlt: hasAlt,
			Format: imageFormat(src),
		}
		img.Width, _ = s.Attr("width")
		img.Height, _ = s.Attr("height")
		images = append(images, img)
	})
	return images
}

func imageFormat(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	p := u.Path
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return strings.ToLower(p[i+1:])
	}
	return ""
}

// extractLinks splits anchors into internal crawl candidates and
// external references. Internal links are normalized and deduplicated;
// external links keep their anchor text for the link analyzer.
func extractLinks(doc *goquery.Document, base *url.URL, v *Validator) ([]string, []audit.LinkRef) {
	var internal []string
	var external []audit.LinkRef
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved, err := Resolve(base, href)
		if err != nil {
			return
		}
		rel, _ := s.Attr("rel")
		nofollow := strings.Contains(strings.ToLower(rel), "nofollow")

		if v.SameHost(resolved) {
			if _, dup := seen[resolved]; dup {
				return
			}
			seen[resolved] = struct{}{}
			internal = append(internal, resolved)
			return
		}
		external = append(external, audit.LinkRef{
			Href:     resolved,
			Text:     strings.TrimSpace(s.Text()),
			Internal: false,
			Nofollow: nofollow,
		})
	})
	return internal, external
}
