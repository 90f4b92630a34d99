// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiplex

import (
	"errors"
	"fmt"
)

var (
	ErrClosed          = errors.New("dispatcher closed")
	ErrRunning         = errors.New("dispatcher already running")
	ErrNilHandler      = errors.New("nil handler")
	ErrInvalidFD       = errors.New("invalid file descriptor")
	ErrFDRegistered    = errors.New("file descriptor already registered")
	ErrFDNotRegistered = errors.New("file descriptor not registered")
	ErrUnregistered    = errors.New("handler not registered")
)

// HandlerPanicError is logged when a handler panics in
// [Handler.Process]. The handler is removed from the dispatcher afterwards.
type HandlerPanicError struct {
	Value any
}

// Error implements the [error] interface.
func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *HandlerPanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
