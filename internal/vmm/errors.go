// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"errors"
	"fmt"
)

var (
	// ErrVCPUPanic is returned by a vCPU that observed a panic request.
	ErrVCPUPanic = errors.New("vcpu panic")

	// ErrVCPUFailed is returned by [Machine.Wait] if a vCPU exited with an
	// error other than a panic. Details are returned by [Machine.Shutdown].
	ErrVCPUFailed = errors.New("vcpu failed")

	// ErrDataMismatch is returned by a vCPU if it read back other data than
	// it wrote.
	ErrDataMismatch = errors.New("data mismatch")

	// ErrSectorRange is the completion error for requests beyond the disk.
	ErrSectorRange = errors.New("sector out of range")

	ErrNoSuchVCPU  = errors.New("no such vcpu")
	ErrNotPaused   = errors.New("machine not paused")
	ErrPaused      = errors.New("machine already paused")
	ErrNotStarted  = errors.New("machine not started")
	ErrStarted     = errors.New("machine already started")
	ErrInvalidIRQ  = errors.New("invalid irq line")
	ErrInvalidSize = errors.New("invalid size")
)

// VCPUError wraps errors a vCPU loop exited with.
type VCPUError struct {
	ID  int
	Err error
}

// Error implements the [error] interface.
func (e *VCPUError) Error() string {
	return fmt.Sprintf("vcpu %d: %v", e.ID, e.Err)
}

// Is implements the [errors.Is] interface.
func (*VCPUError) Is(other error) bool {
	_, ok := other.(*VCPUError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *VCPUError) Unwrap() error {
	return e.Err
}
