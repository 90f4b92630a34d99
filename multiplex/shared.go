// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiplex

import (
	"sync"

	"github.com/aibor/vcore/signal"
)

type sharedState[H Handler] struct {
	mu      sync.Mutex
	handler H
}

// Shared routes several owners into one handler instance under a mutex.
// Copies of a Shared value share the instance and the mutex, so each owner
// holds its own copy and may register it with its own dispatcher.
//
// The mutex is not reentrant. A handler that calls [Shared.With] on its own
// adapter from within [Handler.Process] deadlocks. [Shared.TryWith] reports
// the lock as busy instead.
type Shared[H Handler] struct {
	state *sharedState[H]
}

// NewShared wraps h.
func NewShared[H Handler](h H) Shared[H] {
	return Shared[H]{state: &sharedState[H]{handler: h}}
}

// Signals implements [Handler].
func (s Shared[H]) Signals() []signal.Bound {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	return s.state.handler.Signals()
}

// Process implements [Handler].
func (s Shared[H]) Process(ctx *Context) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	s.state.handler.Process(ctx)
}

// With calls fn with the handler under the lock.
func (s Shared[H]) With(fn func(H)) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	fn(s.state.handler)
}

// TryWith calls fn with the handler if the lock is free and returns false
// without calling fn otherwise.
func (s Shared[H]) TryWith(fn func(H)) bool {
	if !s.state.mu.TryLock() {
		return false
	}
	defer s.state.mu.Unlock()

	fn(s.state.handler)

	return true
}
