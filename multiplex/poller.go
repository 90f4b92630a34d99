// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiplex

// poller is the OS readiness primitive of a [Dispatcher]. Besides the
// registered file descriptors it has a waker that makes a blocking wait
// return early.
type poller interface {
	add(fd int, events Events) error
	modify(fd int, events Events) error
	remove(fd int) error
	// wait appends readiness events to buf. It blocks until any file
	// descriptor is ready or the waker fired if block is true. Waker events
	// are consumed and not reported.
	wait(buf []Ready, block bool) ([]Ready, error)
	// wake must not block. It is called from asserting goroutines.
	wake()
	close() error
}
