// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"sync"

	ring "github.com/eapache/queue"

	"github.com/aibor/vcore/signal"
)

// Queue is a bounded FIFO queue gated by a [signal.Bound]. It is safe for
// use by many producers. Receiving is safe from any goroutine as well, but
// the signal protocol assumes a single consumer.
type Queue[T any] struct {
	notify   signal.Bound
	capacity int

	mu    sync.Mutex
	items *ring.Queue
}

// New creates a new [Queue] with the given capacity that asserts notify
// after every push. It panics if capacity is less than 1.
func New[T any](capacity int, notify signal.Bound) *Queue[T] {
	if capacity < 1 {
		panic("queue: capacity must be positive")
	}

	if notify.IsZero() {
		panic("queue: notify signal not bound")
	}

	return &Queue[T]{
		notify:   notify,
		capacity: capacity,
		items:    ring.New(),
	}
}

// Send pushes item if the queue has room and asserts the notify signal. If
// the queue is full, nothing is stored and a [FullError] carrying the
// unchanged item is returned.
func (q *Queue[T]) Send(item T) error {
	q.mu.Lock()

	if q.items.Length() >= q.capacity {
		q.mu.Unlock()
		return &FullError[T]{Item: item, Capacity: q.capacity}
	}

	q.items.Add(item)
	q.mu.Unlock()

	q.notify.Assert()

	return nil
}

// ForceSend pushes item, evicting the oldest item if the queue is full. It
// always succeeds and always asserts the notify signal. If an item was
// evicted, it is returned with ok set.
func (q *Queue[T]) ForceSend(item T) (evicted T, ok bool) {
	q.mu.Lock()

	if q.items.Length() >= q.capacity {
		// Nil interface items fail the assertion but are evicted anyway.
		evicted, _ = q.items.Remove().(T)
		ok = true
	}

	q.items.Add(item)
	q.mu.Unlock()

	q.notify.Assert()

	return evicted, ok
}

// RecvOne pops the oldest item, if any. It never blocks.
func (q *Queue[T]) RecvOne() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() == 0 {
		var zero T
		return zero, false
	}

	item, _ := q.items.Remove().(T)

	return item, true
}

// RecvAll drains every currently available item in FIFO order and calls
// visit for each of them. It returns the number of items visited.
//
// Items are popped one by one, so visit runs without the queue being
// locked and may push to the queue itself. The notify signal is not
// cleared.
func (q *Queue[T]) RecvAll(visit func(T)) int {
	var count int

	for {
		item, ok := q.RecvOne()
		if !ok {
			return count
		}

		visit(item)

		count++
	}
}

// Len returns the number of items currently stored.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Length()
}

// Cap returns the capacity of the queue.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Notify returns the signal asserted on push.
func (q *Queue[T]) Notify() signal.Bound {
	return q.notify
}
