package progress

import (
	"time"

	"github.com/seolens/siteaudit/internal/audit"
)

// Event is one progress update for an audit. Events are self-contained
// so a subscriber joining late can catch up from history alone.
type Event struct {
	AuditID        string       `json:"audit_id"`
	Status         audit.Status `json:"status"`
	Stage          string       `json:"stage,omitempty"`
	Percent        float64      `json:"percent"`
	Message        string       `json:"message,omitempty"`
	CurrentURL     string       `json:"current_url,omitempty"`
	PagesCrawled   int          `json:"pages_crawled,omitempty"`
	CompletedUnits int          `json:"completed_units,omitempty"`
	TotalUnits     int          `json:"total_units,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Status == audit.StatusCompleted || e.Status == audit.StatusFailed
}

// Sink receives every published event. Implementations must not block.
type Sink interface {
	Consume(Event)
}
