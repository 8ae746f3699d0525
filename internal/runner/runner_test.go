package runner

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/analyzer"
	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/clock/system"
	"github.com/seolens/siteaudit/internal/crawl"
	"github.com/seolens/siteaudit/internal/progress"
	"github.com/seolens/siteaudit/internal/store"
)

// stubRenderer serves canned pages and counts renders.
type stubRenderer struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (s *stubRenderer) Render(_ context.Context, url string) (audit.Snapshot, error) {
	s.mu.Lock()
	s.calls++
	body := s.pages[url]
	s.mu.Unlock()
	return audit.Snapshot{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte(body),
	}, nil
}

func (s *stubRenderer) Close(context.Context) error { return nil }

func (s *stubRenderer) renderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fixedIDs hands out sequential IDs.
type fixedIDs struct {
	mu sync.Mutex
	n  int
}

func (f *fixedIDs) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return strings.Repeat("a", 7) + string(rune('0'+f.n)), nil
}

// roundTripFunc stubs outbound HTTP for the pagespeed unit.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func pagespeedClient(score string) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		body := `{"lighthouseResult":{"categories":{"performance":{"score":` + score + `}},"audits":{}}}`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	})}
}

func newTestRunner(t *testing.T, r audit.Renderer, client *http.Client) (*Runner, *store.Memory) {
	t.Helper()
	logger := zap.NewNop()
	st := store.NewMemory(store.Config{}, system.New(), logger)
	registry := analyzer.NewRegistry(analyzer.RegistryConfig{HTTPClient: client}, logger)
	sched := analyzer.NewScheduler(analyzer.Config{UnitTimeout: 5 * time.Second}, logger, nil)

	run := New(
		Config{Crawl: crawl.Config{MaxPages: 10, ParallelRequests: 2}},
		r, st, registry, sched,
		system.New(), &fixedIDs{}, logger, nil,
	)
	return run, st
}

func sitePage(title string, links ...string) string {
	b := "<html><head><title>" + title + "</title></head><body><main><h1>" + title + "</h1><p>content words</p>"
	for _, l := range links {
		b += `<a href="` + l + `">` + l + `</a>`
	}
	return b + "</main></body></html>"
}

func waitTerminal(t *testing.T, st *store.Memory, id string) audit.Audit {
	t.Helper()
	var snap audit.Audit
	require.Eventually(t, func() bool {
		var err error
		snap, err = st.Snapshot(id)
		if err != nil {
			return false
		}
		return snap.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestRunnerCompletesFullAudit(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{
		"https://example.com/":      sitePage("Home", "/about"),
		"https://example.com/about": sitePage("About"),
	}}
	run, st := newTestRunner(t, r, nil)

	id, err := run.Start(context.Background(), "https://example.com/",
		[]string{"meta_tags", "headings", "content", "links"})
	require.NoError(t, err)

	snap := waitTerminal(t, st, id)
	require.Equal(t, audit.StatusCompleted, snap.Status)
	require.Equal(t, 2, snap.PagesCrawled)
	require.Len(t, snap.Results, 4)
	require.Empty(t, snap.FailedUnits)
	require.NotNil(t, snap.CompletedAt)
	require.Positive(t, snap.TotalIssues, "short titles and thin content must be flagged")
}

func TestRunnerSkipsCrawlForIndependentUnits(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{}}
	run, st := newTestRunner(t, r, pagespeedClient("0.95"))

	id, err := run.Start(context.Background(), "https://example.com/", []string{"pagespeed"})
	require.NoError(t, err)

	snap := waitTerminal(t, st, id)
	require.Equal(t, audit.StatusCompleted, snap.Status)
	require.Equal(t, 0, snap.PagesCrawled)
	require.Contains(t, snap.Results, "pagespeed")
	require.Zero(t, r.renderCount(), "no crawl when only crawl-independent units run")
}

func TestRunnerRecordsFailedUnits(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{
		"https://example.com/": sitePage("Home"),
	}}
	// The pagespeed stub returns unparseable JSON, failing that unit
	// without failing the audit.
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("not json")),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	})}
	run, st := newTestRunner(t, r, client)

	id, err := run.Start(context.Background(), "https://example.com/",
		[]string{"meta_tags", "pagespeed"})
	require.NoError(t, err)

	snap := waitTerminal(t, st, id)
	require.Equal(t, audit.StatusCompleted, snap.Status)
	require.Equal(t, []string{"pagespeed"}, snap.FailedUnits)
	require.Contains(t, snap.Results, "meta_tags")
	require.NotContains(t, snap.Results, "pagespeed")
}

func TestRunnerPublishesTerminalEvent(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{
		"https://example.com/": sitePage("Home"),
	}}
	run, st := newTestRunner(t, r, nil)

	id, err := run.Start(context.Background(), "https://example.com/", []string{"meta_tags"})
	require.NoError(t, err)
	waitTerminal(t, st, id)

	b, err := st.Broadcaster(id)
	require.NoError(t, err)

	// The terminal event lands just after the store flips to completed.
	var last progress.Event
	require.Eventually(t, func() bool {
		history, sub := b.Subscribe()
		sub.Unsubscribe()
		if len(history) == 0 {
			return false
		}
		last = history[len(history)-1]
		return last.Terminal()
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, audit.StatusCompleted, last.Status)
	require.Equal(t, 100.0, last.Percent)
}

func TestFailedAuditReleasesCrawlState(t *testing.T) {
	t.Parallel()

	run, st := newTestRunner(t, &stubRenderer{}, nil)

	rec := &audit.PageRecord{
		URL:        "https://example.com/",
		StatusCode: 200,
		HTML:       []byte("<html><body>partial</body></html>"),
	}
	a := &audit.Audit{
		ID:        "aaaaaaa9",
		URL:       "https://example.com/",
		Status:    audit.StatusCrawling,
		StartedAt: time.Now(),
		Pages:     map[string]*audit.PageRecord{rec.URL: rec},
	}
	b := progress.NewBroadcaster(progress.Config{}, zap.NewNop())
	st.Put(a, b)

	run.fail(a.ID, b)

	snap, err := st.Snapshot(a.ID)
	require.NoError(t, err)
	require.Equal(t, audit.StatusFailed, snap.Status)
	require.Equal(t, failureMessage, snap.ErrorText)
	require.Nil(t, rec.HTML, "crawl content must not outlive a failed run")
}

func TestStartRejectsBadInput(t *testing.T) {
	t.Parallel()

	run, _ := newTestRunner(t, &stubRenderer{}, nil)

	_, err := run.Start(context.Background(), "ftp://example.com/", nil)
	require.Error(t, err)

	_, err = run.Start(context.Background(), "https://example.com/", []string{"bogus"})
	require.ErrorContains(t, err, "unknown analyzer")
}

var _ progress.Sink = (*progressCapture)(nil)

type progressCapture struct {
	mu     sync.Mutex
	events []progress.Event
}

func (p *progressCapture) Consume(ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *progressCapture) percents() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Percent
	}
	return out
}

func TestProgressPercentsAreMonotonic(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]string{
		"https://example.com/":      sitePage("Home", "/about"),
		"https://example.com/about": sitePage("About"),
	}}

	logger := zap.NewNop()
	st := store.NewMemory(store.Config{}, system.New(), logger)
	registry := analyzer.NewRegistry(analyzer.RegistryConfig{}, logger)
	sched := analyzer.NewScheduler(analyzer.Config{}, logger, nil)
	capture := &progressCapture{}

	run := New(
		Config{Crawl: crawl.Config{MaxPages: 10, ParallelRequests: 2}},
		r, st, registry, sched,
		system.New(), &fixedIDs{}, logger, nil,
		capture,
	)

	id, err := run.Start(context.Background(), "https://example.com/",
		[]string{"meta_tags", "headings"})
	require.NoError(t, err)
	waitTerminal(t, st, id)

	require.Eventually(t, func() bool {
		p := capture.percents()
		return len(p) > 0 && p[len(p)-1] == 100.0
	}, time.Second, 10*time.Millisecond)

	percents := capture.percents()
	for i := 1; i < len(percents); i++ {
		require.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}
