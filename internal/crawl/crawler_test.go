package crawl

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/audit"
)

// stubRenderer serves canned HTML keyed by normalized URL and records
// the order URLs were requested in.
type stubRenderer struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
	delay time.Duration
}

func (s *stubRenderer) Render(ctx context.Context, url string) (audit.Snapshot, error) {
	s.mu.Lock()
	s.calls = append(s.calls, url)
	body, ok := s.pages[url]
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return audit.Snapshot{}, ctx.Err()
		}
	}
	if !ok {
		return audit.Snapshot{}, errors.New("connection refused")
	}
	return audit.Snapshot{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       []byte(body),
		Duration:   5 * time.Millisecond,
	}, nil
}

func (s *stubRenderer) Close(context.Context) error { return nil }

func (s *stubRenderer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func page(title string, links ...string) string {
	body := "<html><head><title>" + title + "</title></head><body><main><p>Some page content here.</p>"
	for _, l := range links {
		body += `<a href="` + l + `">` + l + `</a>`
	}
	return body + "</main></body></html>"
}

func TestCrawlFollowsInternalLinks(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{
		"https://example.com/":      page("Home", "/about", "/pricing", "https://other.com/x"),
		"https://example.com/about": page("About", "/team"),
		"https://example.com/team":  page("Team"),
		// pricing links back to home, which must not be re-crawled
		"https://example.com/pricing": page("Pricing", "/"),
	}}

	c := New(r, Config{MaxPages: 10, ParallelRequests: 4}, zap.NewNop())
	pages, err := c.Crawl(context.Background(), "https://example.com/")
	require.NoError(t, err)

	require.Len(t, pages, 4)
	require.Contains(t, pages, "https://example.com/")
	require.Contains(t, pages, "https://example.com/about")
	require.Contains(t, pages, "https://example.com/pricing")
	require.Contains(t, pages, "https://example.com/team")

	require.Equal(t, 0, pages["https://example.com/"].Depth)
	require.Equal(t, 1, pages["https://example.com/about"].Depth)
	require.Equal(t, 1, pages["https://example.com/pricing"].Depth)
	require.Equal(t, 2, pages["https://example.com/team"].Depth)

	// The external link is never requested.
	for _, url := range r.requested() {
		require.NotContains(t, url, "other.com")
	}
}

func TestCrawlRespectsPageCap(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{
		"https://example.com/":  page("Home", "/a", "/b", "/c", "/d"),
		"https://example.com/a": page("A"),
		"https://example.com/b": page("B"),
		"https://example.com/c": page("C"),
		"https://example.com/d": page("D"),
	}}

	c := New(r, Config{MaxPages: 3, ParallelRequests: 2}, zap.NewNop())
	pages, err := c.Crawl(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.Len(t, pages, 3)
}

func TestCrawlRecordsFailuresWithZeroStatus(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{
		"https://example.com/": page("Home", "/broken", "/ok"),
		"https://example.com/ok": page("OK"),
		// /broken is absent so Render errors
	}}

	c := New(r, Config{MaxPages: 10, ParallelRequests: 4}, zap.NewNop())
	pages, err := c.Crawl(context.Background(), "https://example.com/")
	require.NoError(t, err)

	require.Len(t, pages, 3)
	broken := pages["https://example.com/broken"]
	require.NotNil(t, broken)
	require.Equal(t, 0, broken.StatusCode)
	require.Equal(t, 1, broken.Depth)
}

func TestCrawlDeadlineReturnsPartial(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{
		delay: 100 * time.Millisecond,
		pages: map[string]string{
			"https://example.com/":  page("Home", "/a", "/b", "/c"),
			"https://example.com/a": page("A"),
			"https://example.com/b": page("B"),
			"https://example.com/c": page("C"),
		},
	}

	c := New(r, Config{MaxPages: 10, ParallelRequests: 1, Deadline: 150 * time.Millisecond}, zap.NewNop())
	pages, err := c.Crawl(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.NotEmpty(t, pages)
	require.Less(t, len(pages), 4, "deadline should cut the crawl short")
}

func TestCrawlReportsProgress(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{
		"https://example.com/":  page("Home", "/a"),
		"https://example.com/a": page("A"),
	}}

	var mu sync.Mutex
	var counts []int
	c := New(r, Config{
		MaxPages:         10,
		ParallelRequests: 2,
		OnPage: func(_ string, crawled int) {
			mu.Lock()
			counts = append(counts, crawled)
			mu.Unlock()
		},
	}, zap.NewNop())

	_, err := c.Crawl(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, counts)
}

func TestCrawlRejectsBadSeed(t *testing.T) {
	t.Parallel()

	c := New(&stubRenderer{}, Config{}, zap.NewNop())
	_, err := c.Crawl(context.Background(), "ftp://example.com/")
	require.ErrorIs(t, err, ErrInvalidURL)
}
