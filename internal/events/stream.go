package events

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// defaultSubscriberBuffer is the initial ring size of a subscription.
const defaultSubscriberBuffer = 64

// Stream fans each published value out to every live Subscription.
type Stream[T any] struct {
	subs   *xsync.MapOf[uint64, *Subscription[T]]
	nextID atomic.Uint64

	// mu orders Publish/Subscribe against Close.
	mu     sync.RWMutex
	closed bool

	published atomic.Int64
}

// NewStream creates an open stream with no subscribers.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		subs: xsync.NewMapOf[uint64, *Subscription[T]](),
	}
}

// Publish delivers v to all current subscribers. It never blocks on a
// subscriber. Publishing to a closed stream or with no subscribers is a no-op.
func (s *Stream[T]) Publish(v T) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	s.published.Add(1)

	s.subs.Range(func(_ uint64, sub *Subscription[T]) bool {
		sub.buf.Push(v)
		return true
	})
}

// Subscribe registers a new subscriber. On a closed stream the returned
// subscription's channel is already closed.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		id:     s.nextID.Add(1),
		stream: s,
		buf:    NewBuffer[T](defaultSubscriberBuffer),
		out:    make(chan T),
		done:   make(chan struct{}),
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		sub.buf.Close()
		go sub.pump()
		return sub
	}
	s.subs.Store(sub.id, sub)
	s.mu.RUnlock()

	go sub.pump()
	return sub
}

// Published returns how many values have been published.
func (s *Stream[T]) Published() int64 {
	return s.published.Load()
}

// StreamStats summarizes a stream and the queues of its live subscribers.
type StreamStats struct {
	Subscribers int
	Published   int64
	Pending     int // queued across all subscribers, not yet delivered
	Resizes     int
}

// Stats returns current statistics.
func (s *Stream[T]) Stats() StreamStats {
	stats := StreamStats{
		Subscribers: s.subs.Size(),
		Published:   s.published.Load(),
	}
	s.subs.Range(func(_ uint64, sub *Subscription[T]) bool {
		bs := sub.Stats()
		stats.Pending += bs.Pending
		stats.Resizes += bs.Resizes
		return true
	})
	return stats
}

// Close ends the stream. Subscribers receive any values already queued,
// then their channels close. A subscriber that stops reading before then
// must call Subscription.Close to release its delivery goroutine.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	s.subs.Range(func(id uint64, sub *Subscription[T]) bool {
		sub.buf.Close()
		s.subs.Delete(id)
		return true
	})
}

// Subscription is one subscriber's view of a Stream.
type Subscription[T any] struct {
	id     uint64
	stream *Stream[T]
	buf    *Buffer[T]
	out    chan T
	done   chan struct{}
	once   sync.Once
}

// C returns the delivery channel. It is closed when the subscription or
// its stream is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Stats returns the state of the subscriber's queue.
func (s *Subscription[T]) Stats() BufferStats {
	return s.buf.Stats()
}

// Close unregisters the subscriber and discards undelivered values.
// Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.stream.subs.Delete(s.id)
		s.buf.Close()
		close(s.done)
	})
}

// pump moves values from the buffer to the channel in order.
func (s *Subscription[T]) pump() {
	defer close(s.out)

	for {
		v, ok := s.buf.Pop()
		if !ok {
			return
		}
		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}
