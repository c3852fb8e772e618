// Package bus implements the broadcast mechanism that links the input loop
// to its passive observers. One writer publishes, any number of subscribers
// receive, and a publish can never be slowed down by a reader.
package bus

import (
	"log/slog"
	"sync"
)

// Bus fans values out from a single logical writer to any number of
// subscribers. Each subscriber has a bounded queue; when a queue is full the
// subscriber is dropped rather than the writer waiting, so publish latency
// stays independent of subscriber count and speed.
//
// Publish must be called from one goroutine at a time (the input loop).
// Subscribe and Close are safe from any goroutine, including concurrently
// with an in-flight Publish.
type Bus[T any] struct {
	mu       sync.Mutex
	queueCap int
	logger   *slog.Logger
	subs     map[uint64]*Subscriber[T]
	nextID   uint64
	current  T
	hasValue bool
}

// Subscriber is one observer's live attachment to a Bus. Values arrive on
// Events in publish order; the channel is closed when the subscriber is
// dropped for falling behind or after Close.
type Subscriber[T any] struct {
	bus *Bus[T]
	id  uint64
	ch  chan T

	closeOnce sync.Once
}

// New creates a Bus whose subscribers each buffer up to queueCap values.
func New[T any](queueCap int, logger *slog.Logger) *Bus[T] {
	if queueCap < 1 {
		queueCap = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus[T]{
		queueCap: queueCap,
		logger:   logger.With("component", "bus"),
		subs:     make(map[uint64]*Subscriber[T]),
	}
}

// Publish records v as the current value and enqueues it for every
// subscriber. A subscriber whose queue is full is removed and its channel
// closed; Publish itself never blocks.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = v
	b.hasValue = true

	for id, sub := range b.subs {
		select {
		case sub.ch <- v:
		default:
			delete(b.subs, id)
			sub.closeOnce.Do(func() { close(sub.ch) })
			b.logger.Debug("subscriber dropped on overflow",
				"id", id, "queue_cap", b.queueCap)
		}
	}
}

// Subscribe attaches a new observer. When a value has already been
// published, it is pre-queued so the first receive is a full-state snapshot;
// history before that is never replayed.
func (b *Bus[T]) Subscribe() *Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber[T]{
		bus: b,
		id:  b.nextID,
		ch:  make(chan T, b.queueCap),
	}
	if b.hasValue {
		sub.ch <- b.current
	}
	b.subs[sub.id] = sub
	return sub
}

// Current returns the most recently published value, if any.
func (b *Bus[T]) Current() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.hasValue
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Events is the subscriber's receive channel. It is closed when the
// subscriber is dropped or closed; a receive that reports a closed channel
// means the stream is over, not that an empty value was published.
func (s *Subscriber[T]) Events() <-chan T {
	return s.ch
}

// Close detaches the subscriber. Idempotent, and safe to call concurrently
// with Publish or with an overflow drop.
func (s *Subscriber[T]) Close() {
	s.bus.mu.Lock()
	if _, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		s.closeOnce.Do(func() { close(s.ch) })
	}
	s.bus.mu.Unlock()
}
