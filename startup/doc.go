// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package startup provides a resurrectable rendezvous between one waiting
// controller and the worker that must complete before the controller may go
// on.
//
// A [Signal] is waited on, the matching [Task] is held by the worker and
// resolved exactly once, either successfully or by aborting. Once resolved,
// the Signal can be resurrected, which arms it again with a fresh Task. This
// allows repeating the rendezvous without allocating new primitives, which
// the pause protocol of [Pauser] and [PauseWorker] relies on.
package startup
