// Package stream provides the broadcast primitives components use to push state to each other.
//
// State is a current-value stream: a late subscriber first receives the latest value,
// and a slow subscriber only ever sees the newest value it has not consumed yet.
// Events is an event stream: every subscriber receives every event published after
// it subscribed, in publication order, and nothing is replayed.
package stream

import (
	"context"
	"sync"
)

// State holds a value and broadcasts each change to its subscribers.
type State[T any] struct {
	mu     sync.Mutex
	value  T
	equal  func(a, b T) bool
	subs   map[chan T]struct{}
	done   chan struct{}
	closed bool
}

// StateOption configures a State.
type StateOption[T any] func(*State[T])

// WithEqual suppresses a Set whose value equals the current one.
func WithEqual[T any](equal func(a, b T) bool) StateOption[T] {
	return func(s *State[T]) {
		s.equal = equal
	}
}

// NewState returns a State holding initial.
func NewState[T any](initial T, options ...StateOption[T]) *State[T] {
	s := &State[T]{
		value: initial,
		subs:  make(map[chan T]struct{}),
		done:  make(chan struct{}),
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and notifies subscribers. It reports whether the value changed.
func (s *State[T]) Set(value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(value)
}

// Update applies fn to the current value atomically.
func (s *State[T]) Update(fn func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(fn(s.value))
}

func (s *State[T]) setLocked(value T) bool {
	if s.closed {
		return false
	}

	if s.equal != nil && s.equal(s.value, value) {
		return false
	}

	s.value = value
	for ch := range s.subs {
		offer(ch, value)
	}

	return true
}

// offer replaces whatever the subscriber has not read yet with value.
func offer[T any](ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	ch <- value
}

// Subscribe returns a channel that yields the current value, then every change.
// The channel is closed when ctx is done or the state is closed.
func (s *State[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	ch <- s.value
	if s.closed {
		close(ch)
		return ch
	}

	s.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}()

	return ch
}

// Close ends every subscription. Later Sets are ignored.
func (s *State[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.done)
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

// Derive keeps target in sync with fn applied to every value of src until ctx is done.
func Derive[A, B any](ctx context.Context, src *State[A], fn func(A) B, options ...StateOption[B]) *State[B] {
	target := NewState(fn(src.Get()), options...)
	updates := src.Subscribe(ctx)

	go func() {
		defer target.Close()

		for value := range updates {
			target.Set(fn(value))
		}
	}()

	return target
}
