package stream

import (
	"context"
	"sync"
)

// Events broadcasts an ordered sequence of events. Publishing never blocks:
// each subscriber buffers what it has not consumed yet.
type Events[T any] struct {
	mu     sync.Mutex
	subs   map[*subscription[T]]struct{}
	closed bool
}

type subscription[T any] struct {
	mu     sync.Mutex
	queue  []T
	done   bool
	notify chan struct{}
	out    chan T
}

func NewEvents[T any]() *Events[T] {
	return &Events[T]{subs: make(map[*subscription[T]]struct{})}
}

// Publish delivers event to every current subscriber.
func (e *Events[T]) Publish(event T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	for sub := range e.subs {
		sub.push(event)
	}
}

// Subscribe returns a channel of the events published from now on.
// The channel is closed when ctx is done, or after the remaining events are drained once the stream is closed.
func (e *Events[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &subscription[T]{
		notify: make(chan struct{}, 1),
		out:    make(chan T),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		close(sub.out)
		return sub.out
	}
	e.subs[sub] = struct{}{}
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.subs, sub)
			e.mu.Unlock()
			close(sub.out)
		}()

		for {
			event, ok, done := sub.pop()
			if ok {
				select {
				case sub.out <- event:
				case <-ctx.Done():
					return
				}
				continue
			}

			if done {
				return
			}

			select {
			case <-sub.notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub.out
}

// Close stops accepting events. Subscribers still receive what was already published.
func (e *Events[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.closed = true
	for sub := range e.subs {
		sub.finish()
	}
}

func (s *subscription[T]) push(event T) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()
	s.wake()
}

func (s *subscription[T]) finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.wake()
}

func (s *subscription[T]) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription[T]) pop() (event T, ok, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 {
		event = s.queue[0]
		s.queue = s.queue[1:]
		return event, true, false
	}

	return event, false, s.done
}
