// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package signal

// Typed attaches a closed set of named bits to a [Signal]. Each purpose
// defines its own mask type, so masks of unrelated signals can not be mixed
// up:
//
//	type VCPUMask uint64
//
//	const (
//		VCPUStop VCPUMask = 1 << iota
//		VCPUPanic
//	)
//
//	sig := signal.NewTyped[VCPUMask]()
//	sig.Assert(VCPUStop)
type Typed[M ~uint64] struct {
	sig *Signal
}

// NewTyped creates a [Typed] with a new underlying [Signal].
func NewTyped[M ~uint64]() Typed[M] {
	return Typed[M]{sig: New()}
}

// Wrap creates a [Typed] for an existing [Signal].
func Wrap[M ~uint64](sig *Signal) Typed[M] {
	return Typed[M]{sig: sig}
}

// Assert sets the given bits. See [Signal.Assert].
func (t Typed[M]) Assert(mask M) {
	t.sig.Assert(Mask(mask))
}

// Take clears the given bits and returns those that were set. See
// [Signal.Take].
func (t Typed[M]) Take(mask M) M {
	return M(t.sig.Take(Mask(mask)))
}

// Wait blocks until any of the given bits is set. See [Signal.Wait].
func (t Typed[M]) Wait(mask M) M {
	return M(t.sig.Wait(Mask(mask)))
}

// Snapshot returns the current state. See [Signal.Snapshot].
func (t Typed[M]) Snapshot() M {
	return M(t.sig.Snapshot())
}

// Bind returns a [Bound] for the given bits of the underlying signal.
func (t Typed[M]) Bind(mask M) Bound {
	return NewBound(t.sig, Mask(mask))
}

// Signal returns the underlying [Signal].
func (t Typed[M]) Signal() *Signal {
	return t.sig
}
