// Package sinks provides progress.Sink implementations.
package sinks

import (
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/progress"
)

// LogSink writes every progress event to the log. Terminal events log
// at info, the rest at debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("progress")}
}

// Consume implements progress.Sink.
func (s *LogSink) Consume(ev progress.Event) {
	fields := []zap.Field{
		zap.String("audit_id", ev.AuditID),
		zap.String("status", string(ev.Status)),
		zap.Float64("percent", ev.Percent),
	}
	if ev.Message != "" {
		fields = append(fields, zap.String("message", ev.Message))
	}
	if ev.Terminal() {
		s.logger.Info("audit finished", fields...)
		return
	}
	s.logger.Debug("audit progress", fields...)
}
