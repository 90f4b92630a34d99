// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package multiplex provides a single threaded reactor that waits on signal
// interests and file descriptor readiness at once.
//
// Components implement [Handler] and are registered with a [Dispatcher].
// The dispatcher subscribes to every interest of every handler and blocks
// in one epoll wait that also covers the file descriptors registered by the
// handlers. Once woken, it dispatches each handler at most once, in
// registration order, and only if any of its interests fired or any of its
// file descriptors is ready.
//
// The dispatcher takes the fired bits on behalf of the handler before
// calling [Handler.Process], so handlers drain their sources after the bits
// have been cleared and no assert is missed.
package multiplex
