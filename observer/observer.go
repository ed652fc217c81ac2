// Package observer provides synchronous subject/observer notification.
//
// A Subject keeps its observers in registration order and calls them on the
// notifying goroutine. Registrations are relations held by the subject: the
// observer owns only a Subscription handle, and closing the subject drops
// every registration at once.
package observer

import (
	"sync"
	"sync/atomic"
)

// Subscription is the handle returned by Subject.Subscribe.
type Subscription struct {
	active atomic.Bool
	detach func(*Subscription)
}

// Unsubscribe removes the registration. It is safe to call more than once
// and from inside a notification callback.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	if s.detach != nil {
		s.detach(s)
	}
}

// Active reports whether the registration is still live.
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}

type entry[T any] struct {
	sub *Subscription
	fn  func(T)
}

// Subject broadcasts values of type T to its observers.
// The zero value is ready to use.
type Subject[T any] struct {
	mu      sync.Mutex
	entries []entry[T]
	closed  bool
}

// Subscribe registers fn and returns its handle. Subscribing to a closed
// subject returns an inactive handle.
func (s *Subject[T]) Subscribe(fn func(T)) *Subscription {
	sub := &Subscription{detach: s.remove}
	if fn == nil {
		return sub
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sub
	}
	sub.active.Store(true)
	s.entries = append(s.entries, entry[T]{sub: sub, fn: fn})
	return sub
}

// Notify calls every active observer in registration order. Observers added
// during the call are not invoked until the next Notify; observers removed
// during the call are skipped if not yet reached.
func (s *Subject[T]) Notify(value T) {
	s.mu.Lock()
	snapshot := make([]entry[T], len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	for _, e := range snapshot {
		if e.sub.Active() {
			e.fn(value)
		}
	}
}

// Len returns the number of live registrations.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close unregisters every observer. Later Subscribe calls return inactive
// handles and Notify becomes a no-op.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.closed = true
	s.mu.Unlock()

	for _, e := range entries {
		e.sub.active.Store(false)
	}
}

func (s *Subject[T]) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.sub == sub {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}
