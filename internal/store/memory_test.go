package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/progress"
)

// fakeClock hands out a settable time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(ttl time.Duration) (*Memory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemory(Config{TTL: ttl}, clock, zap.NewNop()), clock
}

func put(s *Memory, id string, status audit.Status, completedAt *time.Time) {
	s.Put(&audit.Audit{
		ID:          id,
		URL:         "https://example.com/",
		Status:      status,
		CompletedAt: completedAt,
	}, progress.NewBroadcaster(progress.Config{}, zap.NewNop()))
}

func TestSnapshotIsDetached(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(time.Hour)
	put(s, "one", audit.StatusCrawling, nil)

	require.NoError(t, s.Update("one", func(a *audit.Audit) {
		a.Results = map[string]audit.Result{"meta_tags": {Name: "meta_tags"}}
	}))

	snap, err := s.Snapshot("one")
	require.NoError(t, err)
	snap.Results["meta_tags"] = audit.Result{Name: "mutated"}

	fresh, err := s.Snapshot("one")
	require.NoError(t, err)
	require.Equal(t, "meta_tags", fresh.Results["meta_tags"].Name)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(time.Hour)
	_, err := s.Snapshot("nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Update("nope", func(*audit.Audit) {}), ErrNotFound)
	_, err = s.Broadcaster("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSweepEvictsExpiredFinishedAudits(t *testing.T) {
	t.Parallel()

	s, clock := newTestStore(time.Hour)

	done := clock.Now()
	put(s, "finished", audit.StatusCompleted, &done)
	put(s, "running", audit.StatusCrawling, nil)

	clock.advance(30 * time.Minute)
	s.sweep()
	require.Equal(t, 2, s.Len(), "nothing expires before the TTL")

	clock.advance(31 * time.Minute)
	s.sweep()
	require.Equal(t, 1, s.Len())

	_, err := s.Snapshot("finished")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Snapshot("running")
	require.NoError(t, err, "unfinished audits are never evicted")
}

func TestSweepClosesBroadcaster(t *testing.T) {
	t.Parallel()

	s, clock := newTestStore(time.Minute)
	done := clock.Now()
	put(s, "old", audit.StatusFailed, &done)

	b, err := s.Broadcaster("old")
	require.NoError(t, err)
	_, sub := b.Subscribe()

	clock.advance(2 * time.Minute)
	s.sweep()

	_, ok := <-sub.Events()
	require.False(t, ok, "eviction ends open subscriptions")
}
