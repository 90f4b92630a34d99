// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package shutdown runs cleanup tasks in ordered phases.
//
// A [Multi] is created with its phases in firing order. Cleanup functions
// are registered for a phase with [Multi.Spawn] or [Multi.SpawnSignal] and
// run once their phase has fired. [Multi.Shutdown] fires the phases one
// after another and waits for the tasks of each phase before firing the
// next one.
//
// Registering for a phase that has fired already schedules nothing. The
// returned [Task] then runs the cleanup synchronously on
// [Task.UnwrapOrRunNow], so late registrations are never lost and never run
// twice.
package shutdown
