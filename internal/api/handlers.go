package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/store"
)

type createRequest struct {
	URL       string   `json:"url"`
	Analyzers []string `json:"analyzers,omitempty"`
}

type createResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	StatusURL  string `json:"status_url"`
	ResultsURL string `json:"results_url"`
	EventsURL  string `json:"events_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"audits": s.store.Len(),
	})
}

func (s *Server) handleAnalyzers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"analyzers": s.registry.Names(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	// The run outlives this request: its lifetime is bounded by the
	// crawl deadline and per-unit timeouts, never by the request
	// context, which dies as soon as the handler returns.
	id, err := s.runner.Start(context.Background(), req.URL, req.Analyzers)
	if err != nil {
		s.logger.Warn("audit rejected",
			zap.String("url", req.URL),
			zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		ID:         id,
		Status:     string(audit.StatusPending),
		StatusURL:  "/api/audits/" + id,
		ResultsURL: "/api/audits/" + id + "/results",
		EventsURL:  "/api/audits/" + id + "/events",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            snap.ID,
		"url":           snap.URL,
		"status":        snap.Status,
		"started_at":    snap.StartedAt,
		"completed_at":  snap.CompletedAt,
		"pages_crawled": snap.PagesCrawled,
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.lookup(w, r)
	if !ok {
		return
	}

	// A running audit returns what exists so far with 202, so clients
	// can render partial results while polling.
	code := http.StatusOK
	if !snap.Terminal() {
		code = http.StatusAccepted
	}
	writeJSON(w, code, snap)
}

// lookup fetches the audit named in the route, writing the error
// response itself when it is missing.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (audit.Audit, bool) {
	id := chi.URLParam(r, "id")
	snap, err := s.store.Snapshot(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "audit not found")
		} else {
			writeError(w, http.StatusInternalServerError, "lookup failed")
		}
		return audit.Audit{}, false
	}
	return snap, true
}
