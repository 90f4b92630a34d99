// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"flag"
	"fmt"
)

var (
	// ErrHelp is returned if help or version output was requested.
	ErrHelp = flag.ErrHelp

	ErrReadBuildInfo   = errors.New("failed to read build info")
	ErrValueOutOfRange = errors.New("value is outside of range")
	ErrUnexpectedArgs  = errors.New("unexpected positional arguments")
)

// ParseArgsError wraps errors that occur during argument parsing.
type ParseArgsError struct {
	err error
	msg string
}

// Error implements the [error] interface.
func (e *ParseArgsError) Error() string {
	if e.err == nil {
		return e.msg
	}

	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

// Is implements the [errors.Is] interface.
func (e *ParseArgsError) Is(other error) bool {
	_, ok := other.(*ParseArgsError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *ParseArgsError) Unwrap() error {
	return e.err
}
