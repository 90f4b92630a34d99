// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package startup

import (
	"sync"
	"sync/atomic"

	"github.com/aibor/vcore/signal"
)

// State is the state of a [Signal].
type State int

const (
	// Idle signals have never been armed.
	Idle State = iota
	// Armed signals have an unresolved [Task].
	Armed
	// Resolved signals have a resolved [Task] and may be resurrected.
	Resolved
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

const bitResolved signal.Mask = 1

// generation is one arm-resolve cycle of a [Signal]. Waits are bound to the
// generation that was current when they started, so resurrecting does not
// strand a waiter that has not parked yet.
type generation struct {
	claimed atomic.Bool
	err     error
	done    signal.Signal
}

func (g *generation) resolve(err error) bool {
	if !g.claimed.CompareAndSwap(false, true) {
		return false
	}

	// Written before the assert, read after observing the bit.
	g.err = err
	g.done.Assert(bitResolved)

	return true
}

func (g *generation) resolved() bool {
	return g.done.Snapshot().Any(bitResolved)
}

func (g *generation) wait() error {
	g.done.Wait(bitResolved)
	return g.err
}

// Signal is the waiting side of the rendezvous.
type Signal struct {
	mu  sync.Mutex
	cur *generation
}

// New creates an armed [Signal] and its [Task].
func New() (*Signal, *Task) {
	s := new(Signal)
	return s, s.Arm()
}

// NewResolved creates a [Signal] that is resolved as aborted. Waiting on it
// fails until it is resurrected. It is used for rendezvous that must not be
// usable before their first cycle begins.
func NewResolved() *Signal {
	s := new(Signal)
	s.Arm().Abort()

	return s
}

// Arm arms an idle signal and returns its first [Task]. The zero value of
// [Signal] is idle. It panics with [ErrNotIdle] if the signal has been armed
// before.
func (s *Signal) Arm() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		panic(ErrNotIdle)
	}

	s.cur = new(generation)

	return &Task{gen: s.cur}
}

// State returns the current state.
func (s *Signal) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state()
}

func (s *Signal) state() State {
	switch {
	case s.cur == nil:
		return Idle
	case s.cur.resolved():
		return Resolved
	default:
		return Armed
	}
}

// Wait blocks until the current [Task] is resolved. It returns nil if it
// succeeded or an [AbortedError] if it was aborted. It panics with
// [ErrIdle] if the signal has never been armed.
func (s *Signal) Wait() error {
	return s.ticket().wait()
}

// Resurrect re-arms a resolved signal and returns the fresh [Task]. It
// panics with [ErrNotResolved] if the current task is not resolved yet.
func (s *Signal) Resurrect() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resurrect()
}

func (s *Signal) resurrect() *Task {
	switch s.state() {
	case Idle:
		panic(ErrIdle)
	case Armed:
		panic(ErrNotResolved)
	}

	s.cur = new(generation)

	return &Task{gen: s.cur}
}

// ticket returns the generation a wait started now is bound to.
func (s *Signal) ticket() *generation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		panic(ErrIdle)
	}

	return s.cur
}

// succeedAndResurrect resolves task successfully and re-arms the signal in
// one step, so no concurrent ticket can observe the resolved state.
func (s *Signal) succeedAndResurrect(task *Task) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.Succeed()

	if task.gen != s.cur {
		// A stale task has been resolved before, so Succeed panicked
		// already. Foreign tasks end up here.
		panic(ErrNotResolved)
	}

	return s.resurrect()
}

// abortCurrent aborts the current task if it is still unresolved.
func (s *Signal) abortCurrent(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		s.cur.resolve(&AbortedError{Reason: reason})
	}
}

// Task is the resolving side of the rendezvous. It must be resolved exactly
// once by [Task.Succeed] or [Task.Abort]. Holders that may leave without
// resolving defer [Task.Close].
type Task struct {
	gen *generation
}

// Succeed resolves the task successfully. It panics with
// [ErrAlreadyResolved] if the task has been resolved before.
func (t *Task) Succeed() {
	if !t.gen.resolve(nil) {
		panic(ErrAlreadyResolved)
	}
}

// Abort resolves the task as aborted. It panics with [ErrAlreadyResolved]
// if the task has been resolved before.
func (t *Task) Abort() {
	if !t.gen.resolve(&AbortedError{}) {
		panic(ErrAlreadyResolved)
	}
}

// Close aborts the task with reason [ErrTaskClosed] if it is not resolved
// yet. It is a no-op otherwise.
func (t *Task) Close() {
	t.gen.resolve(&AbortedError{Reason: ErrTaskClosed})
}

// Resolved returns true if the task has been resolved.
func (t *Task) Resolved() bool {
	return t.gen.resolved()
}
