// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package signal

import "context"

// Bound is an immutable pair of a shared [Signal] and one fixed [Mask].
//
// It is handed to producers that should wake a specific interest of a
// consumer. Asserting a Bound only ever sets its own mask, so many
// producers can share one consumer signal safely.
type Bound struct {
	sig  *Signal
	mask Mask
}

// NewBound creates a new [Bound]. It panics if sig is nil or mask is empty.
func NewBound(sig *Signal, mask Mask) Bound {
	if sig == nil {
		panic("signal: bound to nil signal")
	}

	if mask == NoMask {
		panic("signal: bound to empty mask")
	}

	return Bound{sig: sig, mask: mask}
}

// Assert sets the bound bits.
func (b Bound) Assert() {
	b.sig.Assert(b.mask)
}

// Take clears the bound bits and returns true if any of them was set.
func (b Bound) Take() bool {
	return b.sig.Take(b.mask) != NoMask
}

// Pending returns true if any of the bound bits is currently set. Like
// [Signal.Snapshot] the result is not authoritative.
func (b Bound) Pending() bool {
	return b.sig.Snapshot().Any(b.mask)
}

// Wait blocks until any of the bound bits is set.
func (b Bound) Wait() {
	b.sig.Wait(b.mask)
}

// Signal returns the underlying [Signal].
func (b Bound) Signal() *Signal {
	return b.sig
}

// Mask returns the bound bits.
func (b Bound) Mask() Mask {
	return b.mask
}

// IsZero returns true for the zero value, which is not bound to anything.
func (b Bound) IsZero() bool {
	return b.sig == nil
}

// AssertOnDone asserts the bound bits once ctx is done. This is how a
// waiter gets a timeout or cancellation: it watches the bits as any other
// and leaves its loop when they fire. The returned stop function works like
// the one returned by [context.AfterFunc].
func (b Bound) AssertOnDone(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, b.Assert)
}
