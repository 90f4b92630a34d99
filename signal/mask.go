// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package signal

import "strconv"

// Mask is a set of bits of a [Signal]. The package does not treat any bit
// specially.
type Mask uint64

const (
	// NoMask contains no bits.
	NoMask = Mask(0)

	// AllMask contains every bit.
	AllMask = ^Mask(0)

	// MaxBits is the number of distinct bits a [Mask] can hold.
	MaxBits = 64
)

// Has returns true if all bits of other are set in m.
func (m Mask) Has(other Mask) bool {
	return m&other == other
}

// Any returns true if any bit of other is set in m.
func (m Mask) Any(other Mask) bool {
	return m&other != 0
}

// String returns the mask as hex number.
func (m Mask) String() string {
	return "0x" + strconv.FormatUint(uint64(m), 16)
}
