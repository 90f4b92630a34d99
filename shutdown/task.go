// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package shutdown

import (
	"sync"

	"github.com/aibor/vcore/signal"
)

// Task is a cleanup function registered with a [Multi].
type Task struct {
	fn        func() error
	trigger   signal.Bound
	scheduled bool

	once sync.Once
	err  error
}

// Scheduled returns true if the task runs as part of the shutdown sequence.
// It is false for tasks registered after their phase has fired.
func (t *Task) Scheduled() bool {
	return t.scheduled
}

// UnwrapOrRunNow runs the cleanup function synchronously if the task has
// not been scheduled and returns its error. Repeated calls do not run it
// again. It is a no-op for scheduled tasks.
//
// The trigger of an unscheduled task is not waited for.
func (t *Task) UnwrapOrRunNow() error {
	if t.scheduled {
		return nil
	}

	return t.call()
}

func (t *Task) run() error {
	if !t.trigger.IsZero() {
		t.trigger.Wait()
	}

	return t.call()
}

func (t *Task) call() error {
	t.once.Do(func() {
		t.err = t.fn()
	})

	return t.err
}
