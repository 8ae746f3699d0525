package analyzer

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/similarity"
)

// similarityRecord builds a page whose parsed DOM carries text for the
// duplicate detector.
func similarityRecord(t *testing.T, url, text string) *audit.PageRecord {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		"<html><body><main><p>" + text + "</p></main></body></html>"))
	require.NoError(t, err)
	rec := goodPage(url)
	rec.Doc = doc
	return rec
}

func goodPage(url string) *audit.PageRecord {
	return &audit.PageRecord{
		URL:             url,
		StatusCode:      200,
		Title:           "A perfectly sized page title for search results here",
		MetaDescription: strings.Repeat("A useful description of the page content. ", 4)[:155],
		Headings:        [6][]string{{"Main Heading"}, {"Section"}},
		WordCount:       500,
	}
}

func input(pages ...*audit.PageRecord) Input {
	in := Input{
		SiteURL: "https://example.com/",
		Pages:   make(map[string]*audit.PageRecord, len(pages)),
	}
	for _, p := range pages {
		in.Pages[p.URL] = p
	}
	return in
}

func issueByMessage(t *testing.T, res audit.Result, fragment string) audit.Issue {
	t.Helper()
	for _, issue := range res.Issues {
		if strings.Contains(issue.Message, fragment) {
			return issue
		}
	}
	t.Fatalf("no issue matching %q in %v", fragment, res.Issues)
	return audit.Issue{}
}

func TestMetaTagsCleanSite(t *testing.T) {
	t.Parallel()

	res, err := NewMetaTags(MetaConfig{}).Analyze(context.Background(), input(
		goodPage("https://example.com/"),
		goodPage("https://example.com/about"),
	))
	require.NoError(t, err)

	// Titles are identical across the two pages, so only the
	// duplicate-title warning fires.
	require.Len(t, res.Issues, 1)
	issue := issueByMessage(t, res, "Duplicate titles")
	require.Equal(t, audit.SeverityWarning, issue.Severity)
	require.Equal(t, audit.SeverityWarning, res.Severity)
}

func TestMetaTagsFindsProblems(t *testing.T) {
	t.Parallel()

	untitled := goodPage("https://example.com/untitled")
	untitled.Title = ""
	short := goodPage("https://example.com/short")
	short.Title = "Tiny"
	noDesc := goodPage("https://example.com/nodesc")
	noDesc.Title = "Another perfectly sized page title for search results"
	noDesc.MetaDescription = ""

	res, err := NewMetaTags(MetaConfig{}).Analyze(context.Background(), input(untitled, short, noDesc))
	require.NoError(t, err)

	require.Equal(t, audit.SeverityError, res.Severity)
	require.Equal(t, []string{"https://example.com/untitled"},
		issueByMessage(t, res, "without a title").AffectedURLs)
	require.Equal(t, []string{"https://example.com/short"},
		issueByMessage(t, res, "shorter than").AffectedURLs)
	require.Equal(t, []string{"https://example.com/nodesc"},
		issueByMessage(t, res, "without a meta description").AffectedURLs)
}

func TestMetaTagsSkipsFailedPages(t *testing.T) {
	t.Parallel()

	broken := &audit.PageRecord{URL: "https://example.com/broken", StatusCode: 0}
	res, err := NewMetaTags(MetaConfig{}).Analyze(context.Background(), input(broken))
	require.NoError(t, err)
	require.Empty(t, res.Issues)
	require.Equal(t, audit.SeveritySuccess, res.Severity)
}

func TestHeadings(t *testing.T) {
	t.Parallel()

	noH1 := goodPage("https://example.com/noh1")
	noH1.Headings = [6][]string{{}, {"Section"}}
	twoH1 := goodPage("https://example.com/twoh1")
	twoH1.Headings = [6][]string{{"First", "Second"}}
	skipper := goodPage("https://example.com/skip")
	skipper.Headings = [6][]string{{"Top"}, {}, {"Deep section"}}

	res, err := NewHeadings().Analyze(context.Background(), input(noH1, twoH1, skipper))
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com/noh1"},
		issueByMessage(t, res, "without an h1").AffectedURLs)
	require.Equal(t, []string{"https://example.com/twoh1"},
		issueByMessage(t, res, "more than one h1").AffectedURLs)
	require.Equal(t, []string{"https://example.com/skip"},
		issueByMessage(t, res, "skip heading levels").AffectedURLs)
	require.Equal(t, audit.SeverityError, res.Severity)
}

func TestHeadingsFlagsSharedH1(t *testing.T) {
	t.Parallel()

	a := goodPage("https://example.com/a")
	b := goodPage("https://example.com/b")
	c := goodPage("https://example.com/c")
	c.Headings = [6][]string{{"Something Else"}, {"Section"}}

	res, err := NewHeadings().Analyze(context.Background(), input(a, b, c))
	require.NoError(t, err)

	issue := issueByMessage(t, res, "sharing the same h1")
	require.Equal(t, audit.SeverityWarning, issue.Severity)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, issue.AffectedURLs)
}

func TestContentFlagsThinPages(t *testing.T) {
	t.Parallel()

	thin := goodPage("https://example.com/thin")
	thin.WordCount = 50
	noindexed := goodPage("https://example.com/hidden")
	noindexed.Noindex = true

	res, err := NewContent(ContentConfig{MinWords: 300}).Analyze(context.Background(),
		input(goodPage("https://example.com/"), thin, noindexed))
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com/thin"},
		issueByMessage(t, res, "Thin content").AffectedURLs)
	require.Equal(t, []string{"https://example.com/hidden"},
		issueByMessage(t, res, "excluded from indexing").AffectedURLs)
}

func TestLinksFindsBrokenTargets(t *testing.T) {
	t.Parallel()

	home := goodPage("https://example.com/")
	home.InternalLinks = []string{"https://example.com/gone", "https://example.com/missing"}
	gone := &audit.PageRecord{URL: "https://example.com/gone", StatusCode: 404, Depth: 1}
	missing := &audit.PageRecord{URL: "https://example.com/missing", StatusCode: 0, Depth: 1}

	res, err := NewLinks().Analyze(context.Background(), input(home, gone, missing))
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com/missing"},
		issueByMessage(t, res, "unreachable").AffectedURLs)
	require.Equal(t, []string{"https://example.com/gone"},
		issueByMessage(t, res, "error pages").AffectedURLs)
	require.Equal(t, audit.SeverityError, res.Severity)
}

func TestImagesFlagsMissingAlt(t *testing.T) {
	t.Parallel()

	p := goodPage("https://example.com/")
	p.Images = []audit.ImageRef{
		{Src: "https://example.com/a.webp", Alt: "described", HasAlt: true, Format: "webp", Width: "100", Height: "80"},
		{Src: "https://example.com/b.jpg", HasAlt: false, Format: "jpg"},
	}

	res, err := NewImages().Analyze(context.Background(), input(p))
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com/"},
		issueByMessage(t, res, "missing alt").AffectedURLs)
	require.Equal(t, []string{"https://example.com/"},
		issueByMessage(t, res, "legacy formats").AffectedURLs)
	require.Equal(t, 2, res.Data["total_images"])
}

func TestDuplicatesUnit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("unique audit content sentence number one two three four five. ", 15)
	a := similarityRecord(t, "https://example.com/a", text)
	b := similarityRecord(t, "https://example.com/b", text)

	unit := NewDuplicates(similarity.NewDetector(similarity.Config{}, zap.NewNop()))
	res, err := unit.Analyze(context.Background(), input(a, b))
	require.NoError(t, err)

	require.Len(t, res.Issues, 1)
	require.Equal(t, audit.SeverityError, res.Issues[0].Severity)
	require.ElementsMatch(t, []string{"https://example.com/a", "https://example.com/b"}, res.Issues[0].AffectedURLs)
	require.Equal(t, 1, res.Data["exact_groups"])
}

func TestRegistrySelect(t *testing.T) {
	t.Parallel()

	r := NewRegistry(RegistryConfig{}, zap.NewNop())

	all, err := r.Select(nil)
	require.NoError(t, err)
	require.Len(t, all, 7)

	some, err := r.Select([]string{"meta_tags", "pagespeed"})
	require.NoError(t, err)
	require.Len(t, some, 2)

	_, err = r.Select([]string{"nonsense"})
	require.ErrorContains(t, err, "unknown analyzer")

	early, normal := Split(all)
	require.Len(t, early, 1)
	require.Equal(t, "pagespeed", early[0].Name())
	require.Len(t, normal, 6)
}
