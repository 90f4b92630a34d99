// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package signal provides the wakeup primitive every concurrent component of
// vcore is built on: a [Signal] is an atomic bitmask combined with a list of
// parked waiters.
//
// Producers [Signal.Assert] bits, consumers [Signal.Take] them or block in
// [Signal.Wait] until any bit of interest is set. A bit stays set until it
// is taken, so an assert is never lost, no matter whether the consumer is
// parked, about to park or busy at the time.
//
// Bits are usually given names by a closed mask type per purpose and used
// with [Typed]. A [Bound] pairs a signal with one fixed mask, so a producer
// can wake a specific interest of a consumer without knowing its other bits.
package signal
