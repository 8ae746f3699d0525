package crawl

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seolens/siteaudit/internal/audit"
)

// Config bounds a crawl.
type Config struct {
	// MaxPages caps how many URLs are ever admitted to the frontier.
	MaxPages int

	// ParallelRequests caps concurrent page renders within a batch.
	ParallelRequests int

	// Deadline bounds the whole crawl. On expiry the crawl stops and
	// returns the pages gathered so far.
	Deadline time.Duration

	// OnPage, when set, is called after each page is stored with the
	// page URL and the running page count.
	OnPage func(url string, crawled int)
}

// Crawler walks a site breadth-first through a rendering browser.
type Crawler struct {
	renderer audit.Renderer
	cfg      Config
	logger   *zap.Logger
}

// New creates a Crawler. Zero config fields get sensible defaults.
func New(renderer audit.Renderer, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	if cfg.ParallelRequests <= 0 {
		cfg.ParallelRequests = 8
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		renderer: renderer,
		cfg:      cfg,
		logger:   logger.Named("crawler"),
	}
}

// Crawl renders pages breadth-first starting from seed until the
// frontier drains, the page cap is hit, or the deadline expires. Pages
// are keyed by normalized URL. A render failure still yields a record,
// with a zero status code, so analyzers can report broken pages.
func (c *Crawler) Crawl(ctx context.Context, seed string) (map[string]*audit.PageRecord, error) {
	validator, err := NewValidator(seed)
	if err != nil {
		return nil, err
	}
	start, err := Normalize(seed)
	if err != nil {
		return nil, ErrInvalidURL
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Deadline)
	defer cancel()

	front := newFrontier(c.cfg.MaxPages)
	front.push(start, 0)

	pages := make(map[string]*audit.PageRecord, c.cfg.MaxPages)

	for !front.empty() {
		if ctx.Err() != nil {
			c.logger.Warn("crawl deadline reached, returning partial results",
				zap.Int("pages", len(pages)))
			return pages, nil
		}

		batch := front.pop(c.cfg.ParallelRequests)
		records := make([]*audit.PageRecord, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, it := range batch {
			g.Go(func() error {
				records[i] = c.fetch(gctx, it.url, it.depth, validator)
				return nil
			})
		}
		// Workers never return errors; Wait is the write barrier.
		_ = g.Wait()

		for _, rec := range records {
			if rec == nil {
				continue
			}
			pages[rec.URL] = rec
			if c.cfg.OnPage != nil {
				c.cfg.OnPage(rec.URL, len(pages))
			}
			if rec.StatusCode != 200 {
				continue
			}
			for _, link := range rec.InternalLinks {
				if !validator.Valid(link) {
					continue
				}
				front.push(link, rec.Depth+1)
			}
		}
	}

	c.logger.Info("crawl complete",
		zap.String("seed", start),
		zap.Int("pages", len(pages)))
	return pages, nil
}

// fetch renders one URL and parses it into a record. Failures and
// non-HTML responses degrade to a placeholder record with status 0
// rather than aborting the crawl.
func (c *Crawler) fetch(ctx context.Context, pageURL string, depth int, v *Validator) *audit.PageRecord {
	snap, err := c.renderer.Render(ctx, pageURL)
	if err != nil {
		c.logger.Warn("render failed",
			zap.String("url", pageURL),
			zap.Error(err))
		return &audit.PageRecord{URL: pageURL, Depth: depth}
	}

	if ct := snap.Headers.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		c.logger.Debug("skipping non-html response",
			zap.String("url", pageURL),
			zap.String("content_type", ct))
		return &audit.PageRecord{URL: pageURL, Depth: depth}
	}

	rec, err := Parse(snap, depth, v)
	if err != nil {
		c.logger.Warn("parse failed",
			zap.String("url", pageURL),
			zap.Error(err))
		return &audit.PageRecord{URL: pageURL, Depth: depth}
	}
	return rec
}
