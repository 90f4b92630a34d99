// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aibor/vcore/signal"
)

type phase struct {
	bound   signal.Bound
	fired   bool
	pending []*Task
}

// Multi is a multi-phase shutdown signal with phases of type P.
type Multi[P comparable] struct {
	phases []P
	index  map[P]int
	sig    signal.Signal

	mu    sync.Mutex
	state []phase

	once sync.Once
	done chan struct{}
	err  error
}

// New creates a new [Multi] with the given phases in firing order. It panics
// if no phases are given, if a phase is given twice or if there are more
// phases than bits in a [signal.Mask].
func New[P comparable](phases ...P) *Multi[P] {
	if len(phases) == 0 {
		panic("shutdown: no phases")
	}

	if len(phases) > signal.MaxBits {
		panic("shutdown: too many phases")
	}

	m := &Multi[P]{
		phases: phases,
		index:  make(map[P]int, len(phases)),
		state:  make([]phase, len(phases)),
		done:   make(chan struct{}),
	}

	for idx, p := range phases {
		if _, exists := m.index[p]; exists {
			panic(fmt.Sprintf("shutdown: duplicate phase %v", p))
		}

		m.index[p] = idx
		m.state[idx].bound = signal.NewBound(&m.sig, signal.Mask(1)<<idx)
	}

	return m
}

func (m *Multi[P]) lookup(p P) int {
	idx, exists := m.index[p]
	if !exists {
		panic(fmt.Errorf("%w: %v", ErrUnknownPhase, p))
	}

	return idx
}

// Phases returns the phases in firing order.
func (m *Multi[P]) Phases() []P {
	return append([]P(nil), m.phases...)
}

// Phase returns the [signal.Bound] that is asserted once phase p fires. The
// bits are never cleared, so callers must not take them.
func (m *Multi[P]) Phase(p P) signal.Bound {
	return m.state[m.lookup(p)].bound
}

// Fired returns true if phase p has fired.
func (m *Multi[P]) Fired(p P) bool {
	idx := m.lookup(p)

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state[idx].fired
}

// Spawn registers fn to run once phase p fires.
func (m *Multi[P]) Spawn(p P, fn func() error) *Task {
	return m.SpawnSignal(p, signal.Bound{}, fn)
}

// SpawnSignal registers fn to run once phase p fired and trigger is
// asserted. A zero trigger is ignored.
//
// If the phase has fired already, nothing is scheduled and the caller is
// responsible for calling [Task.UnwrapOrRunNow].
func (m *Multi[P]) SpawnSignal(p P, trigger signal.Bound, fn func() error) *Task {
	idx := m.lookup(p)
	task := &Task{
		fn:      fn,
		trigger: trigger,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state[idx].fired {
		return task
	}

	task.scheduled = true
	m.state[idx].pending = append(m.state[idx].pending, task)

	return task
}

// Shutdown fires all phases in order. For each phase it waits until all its
// scheduled tasks have returned before it fires the next phase.
//
// Shutdown is idempotent. Concurrent and later calls wait for the first one
// to finish and return its result. The context bounds the wait of the
// calling goroutine only. Tasks keep running if it is done before them.
func (m *Multi[P]) Shutdown(ctx context.Context) error {
	m.once.Do(func() {
		go func() {
			defer close(m.done)
			m.err = m.run()
		}()
	})

	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", context.Cause(ctx))
	}
}

func (m *Multi[P]) run() error {
	var errs []error

	// Later phases fire even if tasks of an earlier phase fail, their
	// cleanups still need to happen.
	for idx, p := range m.phases {
		if err := runPhase(m.fire(idx)); err != nil {
			errs = append(errs, &PhaseError[P]{Phase: p, Err: err})
		}
	}

	return errors.Join(errs...)
}

// runPhase runs tasks concurrently and joins all their errors.
func runPhase(tasks []*Task) error {
	var (
		group errgroup.Group
		mu    sync.Mutex
		errs  []error
	)

	for _, task := range tasks {
		group.Go(func() error {
			if err := task.run(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = group.Wait()

	return errors.Join(errs...)
}

func (m *Multi[P]) fire(idx int) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	ph := &m.state[idx]
	ph.fired = true
	tasks := ph.pending
	ph.pending = nil

	// Asserted under the lock, so whoever observes the bit also observes
	// the phase as fired.
	ph.bound.Assert()

	return tasks
}
