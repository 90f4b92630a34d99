// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package shutdown

import (
	"errors"
	"fmt"
)

// ErrUnknownPhase is the panic value for phases not declared on creation.
var ErrUnknownPhase = errors.New("unknown shutdown phase")

// PhaseError is returned by [Multi.Shutdown] if tasks of a phase failed.
type PhaseError[P comparable] struct {
	Phase P
	Err   error
}

// Error implements the [error] interface.
func (e *PhaseError[P]) Error() string {
	return fmt.Sprintf("shutdown phase %v: %v", e.Phase, e.Err)
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *PhaseError[P]) Unwrap() error {
	return e.Err
}
