package state

import "sync"

// Events is a queue of values of type T, stored as a resource. Producers
// Send, a consumer Drains everything sent so far.
type Events[T any] struct {
	mu    sync.Mutex
	queue []T
}

// Send appends an event.
func (e *Events[T]) Send(ev T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, ev)
}

// Drain returns all pending events and empties the queue.
func (e *Events[T]) Drain() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.queue
	e.queue = nil
	return out
}

// Len returns the number of pending events.
func (e *Events[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// EventsOf returns the Events[T] resource, registering an empty queue when
// none exists yet.
func EventsOf[T any](r *Resources) *Events[T] {
	return GetOrInsert(r, func() Events[T] { return Events[T]{} })
}

// Send is shorthand for EventsOf[T](r).Send(ev).
func Send[T any](r *Resources, ev T) {
	EventsOf[T](r).Send(ev)
}
