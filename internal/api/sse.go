package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/progress"
)

// handleEvents streams audit progress as server-sent events. The
// retained history is replayed first so late subscribers see the full
// picture, then live events follow until the audit finishes, the
// client disconnects, or the stream hits its maximum duration.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.store.Broadcaster(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "audit not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if s.metrics != nil {
		s.metrics.SSEClients.Inc()
		defer s.metrics.SSEClients.Dec()
	}

	history, sub := b.Subscribe()
	defer sub.Unsubscribe()

	for _, ev := range history {
		if !s.writeEvent(w, ev) {
			return
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(s.cfg.SSEKeepalive)
	defer keepalive.Stop()
	deadline := time.NewTimer(s.cfg.SSEMaxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-deadline.C:
			s.logger.Debug("event stream hit max duration",
				zap.String("audit_id", id))
			return
		case <-keepalive.C:
			// Comment lines keep proxies from cutting idle streams.
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
			// A silent stream whose audit was evicted will never see a
			// terminal event.
			if _, err := s.store.Snapshot(id); err != nil {
				return
			}
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if !s.writeEvent(w, ev) {
				return
			}
			flusher.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, ev progress.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	_, err = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
	return err == nil
}
