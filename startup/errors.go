// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package startup

import (
	"errors"
)

var (
	// ErrStartupAborted is matched by [AbortedError] via [errors.Is].
	ErrStartupAborted = errors.New("startup aborted")

	// ErrTaskClosed is the reason of an abort caused by closing an
	// unresolved [Task].
	ErrTaskClosed = errors.New("task closed unresolved")

	// ErrAlreadyResolved is the panic value if a [Task] is resolved twice.
	ErrAlreadyResolved = errors.New("task already resolved")

	// ErrNotResolved is the panic value if a [Signal] is resurrected while
	// still armed.
	ErrNotResolved = errors.New("signal not resolved")

	// ErrIdle is the panic value if an idle [Signal] is used before it has
	// been armed.
	ErrIdle = errors.New("signal idle")

	// ErrNotIdle is the panic value if [Signal.Arm] is called on a signal
	// that has been armed before.
	ErrNotIdle = errors.New("signal not idle")
)

// AbortedError is returned by waits on a [Signal] whose [Task] was aborted.
type AbortedError struct {
	// Reason is an optional cause of the abort.
	Reason error
}

// Error implements the [error] interface.
func (e *AbortedError) Error() string {
	if e.Reason == nil {
		return ErrStartupAborted.Error()
	}

	return ErrStartupAborted.Error() + ": " + e.Reason.Error()
}

// Is implements the [errors.Is] interface.
func (*AbortedError) Is(other error) bool {
	if other == ErrStartupAborted {
		return true
	}

	_, ok := other.(*AbortedError)

	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *AbortedError) Unwrap() error {
	return e.Reason
}
