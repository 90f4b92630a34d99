// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queue provides a bounded multi-producer, single-consumer queue
// whose non-emptiness is advertised via a [signal.Bound].
//
// Producers never block: [Queue.Send] hands the item back if the queue is
// full, [Queue.ForceSend] evicts the oldest item instead. Every successful
// push asserts the bound signal afterwards, so a consumer waiting on it can
// not miss work.
//
// The consumer drains with [Queue.RecvAll] and takes the signal bit itself
// once it believes the queue is empty. A producer asserting between the last
// pop and the take only causes one spurious wakeup that finds the queue
// empty.
package queue
