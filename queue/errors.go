// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"errors"
	"strconv"
)

// ErrFull is matched by [FullError] via [errors.Is].
var ErrFull = errors.New("queue is full")

// FullError is returned by [Queue.Send] if the queue is at capacity. It
// carries the rejected item, so the caller can retry, force send or drop
// it.
type FullError[T any] struct {
	Item     T
	Capacity int
}

// Error implements the [error] interface.
func (e *FullError[T]) Error() string {
	return ErrFull.Error() + " (capacity " + strconv.Itoa(e.Capacity) + ")"
}

// Is implements the [errors.Is] interface.
func (*FullError[T]) Is(other error) bool {
	if other == ErrFull {
		return true
	}

	_, ok := other.(*FullError[T])

	return ok
}
