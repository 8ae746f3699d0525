package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seolens/siteaudit/internal/audit"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("renderer closed")

// Config tunes the headless browser.
type Config struct {
	// UserAgent is sent with every request.
	UserAgent string

	// ViewportWidth and ViewportHeight size the emulated screen.
	ViewportWidth  int
	ViewportHeight int

	// PageTimeout bounds a single page render.
	PageTimeout time.Duration

	// MaxTabs caps concurrently open tabs.
	MaxTabs int

	// DomainQPS, when positive, rate-limits navigations per domain.
	DomainQPS float64
}

// Renderer drives a shared headless Chrome and opens one tab per
// rendered page. It implements audit.Renderer.
type Renderer struct {
	cfg    Config
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	tabs chan struct{}

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	closed   bool
}

// New launches a headless Chrome and returns a Renderer bound to it.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "SiteAuditBot/1.0"
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1920
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 1080
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 10 * time.Second
	}
	if cfg.MaxTabs <= 0 {
		cfg.MaxTabs = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so the first Render does not pay the
	// launch cost inside its page timeout.
	if err := chromedp.Run(browserCtx); err != nil {
		browserStop()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Renderer{
		cfg:         cfg,
		logger:      logger.Named("render"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
		tabs:        make(chan struct{}, cfg.MaxTabs),
		limiters:    make(map[string]*rate.Limiter),
	}, nil
}

// Render opens a tab, navigates to pageURL, waits for the DOM to be
// ready, and returns the serialized post-JavaScript document together
// with the main response's status and headers.
func (r *Renderer) Render(ctx context.Context, pageURL string) (audit.Snapshot, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return audit.Snapshot{}, ErrClosed
	}
	r.mu.Unlock()

	if err := r.waitDomain(ctx, pageURL); err != nil {
		return audit.Snapshot{}, err
	}

	select {
	case r.tabs <- struct{}{}:
		defer func() { <-r.tabs }()
	case <-ctx.Done():
		return audit.Snapshot{}, ctx.Err()
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.cfg.PageTimeout)
	defer cancelTimeout()

	// The caller's context does not parent the tab context, so cancel
	// the tab by hand when the caller gives up.
	stop := forwardCancel(ctx, cancelTab)
	defer stop()

	var (
		metaMu  sync.Mutex
		status  int
		headers http.Header
	)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		metaMu.Lock()
		defer metaMu.Unlock()
		if status != 0 {
			return
		}
		status = int(resp.Response.Status)
		headers = convertHeaders(resp.Response.Headers)
	})

	start := time.Now()
	var (
		body     string
		finalURL string
	)
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
	)
	if err != nil {
		return audit.Snapshot{}, fmt.Errorf("render %s: %w", pageURL, err)
	}

	metaMu.Lock()
	defer metaMu.Unlock()
	r.logger.Debug("rendered page",
		zap.String("url", pageURL),
		zap.Int("status", status),
		zap.Duration("took", time.Since(start)))

	return audit.Snapshot{
		URL:        pageURL,
		FinalURL:   finalURL,
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(body),
		Duration:   time.Since(start),
	}, nil
}

// Close shuts down the browser. Render calls made after Close fail
// with ErrClosed.
func (r *Renderer) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.browserStop()
		r.allocCancel()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitDomain blocks until the per-domain limiter admits another
// navigation. A zero QPS disables limiting.
func (r *Renderer) waitDomain(ctx context.Context, pageURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return err
	}
	host := strings.ToLower(u.Host)

	r.mu.Lock()
	lim, ok := r.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1)
		r.limiters[host] = lim
	}
	r.mu.Unlock()

	return lim.Wait(ctx)
}

// forwardCancel cancels the tab when the caller's context ends first.
// The returned stop function releases the watcher goroutine.
func forwardCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func convertHeaders(h network.Headers) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if s, ok := v.(string); ok {
			out.Set(k, s)
		}
	}
	return out
}
