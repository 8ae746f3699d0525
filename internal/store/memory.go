// Package store keeps audits in memory for the lifetime of the
// service, evicting finished ones after a retention window.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/progress"
)

// ErrNotFound is returned when an audit does not exist or has been
// evicted.
var ErrNotFound = errors.New("audit not found")

// Config tunes retention.
type Config struct {
	// TTL is how long a finished audit stays retrievable.
	TTL time.Duration

	// SweepInterval is how often expired audits are evicted.
	SweepInterval time.Duration
}

type entry struct {
	audit       *audit.Audit
	broadcaster *progress.Broadcaster
}

// Memory is a concurrency-safe in-memory audit store.
type Memory struct {
	cfg    Config
	clock  audit.Clock
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemory creates a Memory store.
func NewMemory(cfg Config, clock audit.Clock, logger *zap.Logger) *Memory {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		cfg:     cfg,
		clock:   clock,
		logger:  logger.Named("store"),
		entries: make(map[string]*entry),
	}
}

// Put registers a new audit with its broadcaster.
func (s *Memory) Put(a *audit.Audit, b *progress.Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[a.ID] = &entry{audit: a, broadcaster: b}
}

// Snapshot returns a copy of the audit safe to serialize while the
// runner keeps mutating the original.
func (s *Memory) Snapshot(id string) (audit.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return audit.Audit{}, ErrNotFound
	}

	snap := *e.audit
	if e.audit.Results != nil {
		snap.Results = make(map[string]audit.Result, len(e.audit.Results))
		for k, v := range e.audit.Results {
			snap.Results[k] = v
		}
	}
	snap.FailedUnits = append([]string(nil), e.audit.FailedUnits...)
	snap.Pages = nil
	return snap, nil
}

// Update applies fn to the audit under the store lock.
func (s *Memory) Update(id string, fn func(*audit.Audit)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	fn(e.audit)
	return nil
}

// Broadcaster returns the audit's progress broadcaster.
func (s *Memory) Broadcaster(id string) (*progress.Broadcaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.broadcaster, nil
}

// Len returns how many audits are currently retained.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartSweeper evicts expired audits every SweepInterval until ctx
// ends.
func (s *Memory) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// sweep removes finished audits whose retention has lapsed.
func (s *Memory) sweep() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.entries {
		if !e.audit.Terminal() || e.audit.CompletedAt == nil {
			continue
		}
		if now.Sub(*e.audit.CompletedAt) < s.cfg.TTL {
			continue
		}
		e.broadcaster.Close()
		delete(s.entries, id)
		evicted++
	}
	if evicted > 0 {
		s.logger.Info("evicted expired audits",
			zap.Int("evicted", evicted),
			zap.Int("remaining", len(s.entries)))
	}
}
