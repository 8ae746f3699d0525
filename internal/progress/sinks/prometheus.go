package sinks

import (
	"github.com/seolens/siteaudit/internal/metrics"
	"github.com/seolens/siteaudit/internal/progress"
)

// PrometheusSink counts progress events by audit status.
type PrometheusSink struct {
	metrics *metrics.Metrics
}

// NewPrometheusSink creates a PrometheusSink.
func NewPrometheusSink(m *metrics.Metrics) *PrometheusSink {
	return &PrometheusSink{metrics: m}
}

// Consume implements progress.Sink.
func (s *PrometheusSink) Consume(ev progress.Event) {
	s.metrics.ProgressEvents.WithLabelValues(string(ev.Status)).Inc()
	if ev.Terminal() {
		s.metrics.AuditsFinished.WithLabelValues(string(ev.Status)).Inc()
	}
}
