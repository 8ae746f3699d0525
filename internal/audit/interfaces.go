package audit

import (
	"context"
	"net/http"
	"time"
)

// Snapshot is the rendered state of a single page after JavaScript
// execution has settled.
type Snapshot struct {
	// URL is the address that was requested.
	URL string

	// FinalURL is the address after any redirects.
	FinalURL string

	// StatusCode is the HTTP status of the main document response.
	StatusCode int

	// Headers are the response headers of the main document.
	Headers http.Header

	// Body is the serialized DOM after rendering.
	Body []byte

	// Duration is the wall time spent rendering the page.
	Duration time.Duration
}

// Renderer loads pages in a real browser context and returns the
// post-JavaScript DOM.
type Renderer interface {
	// Render navigates to url and returns a snapshot of the settled page.
	Render(ctx context.Context, url string) (Snapshot, error)

	// Close releases browser resources.
	Close(ctx context.Context) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates identifiers for audits.
type IDGenerator interface {
	NewID() (string, error)
}
