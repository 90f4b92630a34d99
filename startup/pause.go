// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package startup

import (
	"errors"
	"sync"
)

// Pauser is the controller side of the pause protocol. It brings all
// registered workers to a halt and keeps them there until the unpause
// [Task] returned by [Pauser.Pause] is resolved.
//
// Pause cycles are serialized. Workers must be added before the cycle they
// are supposed to take part in.
type Pauser struct {
	mu      sync.Mutex
	unpause *Signal
	workers []*PauseWorker
}

// NewPauser creates a new [Pauser] without workers.
func NewPauser() *Pauser {
	return &Pauser{
		unpause: NewResolved(),
	}
}

// AddWorker registers a new worker. The returned [Task] must be passed to
// [PauseWorker.HonorPause] once the worker observes a pause request.
func (p *Pauser) AddWorker() (*PauseWorker, *Task) {
	pause, task := New()
	worker := &PauseWorker{
		pause:   pause,
		unpause: p.unpause,
	}

	p.mu.Lock()
	p.workers = append(p.workers, worker)
	p.mu.Unlock()

	return worker, task
}

// Pause runs one pause cycle. It arms the unpause rendezvous, calls request
// to notify the workers and waits until every worker has honored the pause.
// The returned [Task] releases all workers once resolved.
//
// If any worker aborts its pause task, the unpause task is aborted so the
// remaining workers return from [PauseWorker.HonorPause] with an error, and
// the abort error is returned.
func (p *Pauser) Pause(request func()) (*Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tickets := make([]*generation, len(p.workers))
	for idx, worker := range p.workers {
		tickets[idx] = worker.pause.ticket()
	}

	unpause := p.unpause.Resurrect()

	if request != nil {
		request()
	}

	var errs []error

	for _, ticket := range tickets {
		if err := ticket.wait(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		unpause.Abort()

		return nil, err
	}

	return unpause, nil
}

// PauseWorker is the worker side of the pause protocol.
type PauseWorker struct {
	pause   *Signal
	unpause *Signal
}

// HonorPause resolves the given pause task and blocks until the controller
// releases the pause. It returns the fresh pause task to be used for the
// next cycle. An error is returned if the cycle was aborted, in which case
// the worker is expected to exit.
//
// It panics with [ErrAlreadyResolved] if task has been honored before.
func (w *PauseWorker) HonorPause(task *Task) (*Task, error) {
	// Bind to the current unpause generation before the controller can
	// observe the pause and resurrect it for the next cycle.
	unpause := w.unpause.ticket()

	next := w.pause.succeedAndResurrect(task)

	if err := unpause.wait(); err != nil {
		return next, err
	}

	return next, nil
}

// Close aborts the pending pause task. Controllers pausing afterwards get
// an abort error instead of blocking forever.
func (w *PauseWorker) Close() {
	w.pause.abortCurrent(ErrTaskClosed)
}
