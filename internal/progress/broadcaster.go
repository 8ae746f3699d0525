package progress

import (
	"sync"

	"go.uber.org/zap"
)

// Config tunes a Broadcaster.
type Config struct {
	// HistorySize is how many recent events are replayed to new
	// subscribers.
	HistorySize int

	// MailboxSize is the per-subscriber channel capacity. A subscriber
	// whose mailbox is full when an event arrives is disconnected.
	MailboxSize int
}

// Subscriber is one listener on a Broadcaster.
type Subscriber struct {
	ch chan Event
	b  *Broadcaster
}

// Events is the subscriber's mailbox. It is closed when the audit
// reaches a terminal state or the subscriber falls behind.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Unsubscribe detaches the subscriber and closes its mailbox.
func (s *Subscriber) Unsubscribe() {
	s.b.remove(s)
}

// Broadcaster fans events for one audit out to any number of
// subscribers, keeping a bounded history for late joiners. Publish
// never blocks: a subscriber that cannot keep up is dropped.
type Broadcaster struct {
	cfg    Config
	logger *zap.Logger
	sinks  []Sink

	mu      sync.Mutex
	history []Event
	subs    map[*Subscriber]struct{}
	closed  bool
	dropped uint64
}

// NewBroadcaster creates a Broadcaster. Sinks observe every event
// regardless of subscribers.
func NewBroadcaster(cfg Config, logger *zap.Logger, sinks ...Sink) *Broadcaster {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 20
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		cfg:    cfg,
		logger: logger.Named("progress"),
		sinks:  sinks,
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Subscribe returns a snapshot of the retained history and a live
// subscriber. When the broadcaster is already closed the subscriber's
// mailbox is closed immediately, so callers replay history and stop.
func (b *Broadcaster) Subscribe() ([]Event, *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	history := append([]Event(nil), b.history...)
	sub := &Subscriber{
		ch: make(chan Event, b.cfg.MailboxSize),
		b:  b,
	}
	if b.closed {
		close(sub.ch)
		return history, sub
	}
	b.subs[sub] = struct{}{}
	return history, sub
}

// Publish records the event in history, forwards it to sinks, and
// delivers it to every subscriber that still has mailbox room. A
// terminal event closes the broadcaster.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	b.history = append(b.history, ev)
	if len(b.history) > b.cfg.HistorySize {
		b.history = b.history[len(b.history)-b.cfg.HistorySize:]
	}

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(b.subs, sub)
			close(sub.ch)
			b.dropped++
			b.logger.Warn("dropping slow progress subscriber",
				zap.String("audit_id", ev.AuditID),
				zap.Uint64("total_dropped", b.dropped))
		}
	}

	if ev.Terminal() {
		b.closed = true
		for sub := range b.subs {
			delete(b.subs, sub)
			close(sub.ch)
		}
	}
	sinks := b.sinks
	b.mu.Unlock()

	for _, s := range sinks {
		s.Consume(ev)
	}
}

// Close ends the stream without a terminal event. Used when an audit
// is evicted from the store.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Dropped returns how many subscribers have been disconnected for
// falling behind.
func (b *Broadcaster) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Broadcaster) remove(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}
