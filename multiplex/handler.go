// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiplex

import "github.com/aibor/vcore/signal"

// Handler is a component driven by a [Dispatcher].
type Handler interface {
	// Signals returns the interests the dispatcher waits on for the
	// handler. It is called once on registration.
	Signals() []signal.Bound

	// Process is called once per wakeup in which any interest of the
	// handler fired or any of its file descriptors is ready. It runs on
	// the dispatcher goroutine and must not block.
	Process(ctx *Context)
}
