// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiplex

import (
	"log/slog"

	"github.com/aibor/vcore/signal"
)

// Context is passed to [Handler.Process]. It is only valid during the call.
type Context struct {
	reg   *Registration
	fired []signal.Bound
	ready []Ready
}

// Fired returns true if any bit of b fired for this wakeup. The bits have
// been taken already.
func (c *Context) Fired(b signal.Bound) bool {
	for _, fired := range c.fired {
		if fired.Signal() == b.Signal() && fired.Mask().Any(b.Mask()) {
			return true
		}
	}

	return false
}

// Taken returns the bits of b that fired for this wakeup.
func (c *Context) Taken(b signal.Bound) signal.Mask {
	var taken signal.Mask

	for _, fired := range c.fired {
		if fired.Signal() == b.Signal() {
			taken |= fired.Mask() & b.Mask()
		}
	}

	return taken
}

// FiredSignals returns all interests that fired for this wakeup. Their masks
// are reduced to the bits actually taken.
func (c *Context) FiredSignals() []signal.Bound {
	return c.fired
}

// Ready returns the readiness events of the handler's file descriptors.
func (c *Context) Ready() []Ready {
	return c.ready
}

// RegisterFD adds a file descriptor for the handler. It is waited on from
// the next wait on.
func (c *Context) RegisterFD(fd int, events Events) error {
	return c.reg.RegisterFD(fd, events)
}

// ModifyFD changes the events waited for on fd.
func (c *Context) ModifyFD(fd int, events Events) error {
	return c.reg.ModifyFD(fd, events)
}

// UnregisterFD removes the file descriptor.
func (c *Context) UnregisterFD(fd int) error {
	return c.reg.UnregisterFD(fd)
}

// Deregister removes the handler from the dispatcher after this call.
func (c *Context) Deregister() {
	_ = c.reg.Close()
}

// Logger returns the logger of the dispatcher.
func (c *Context) Logger() *slog.Logger {
	return c.reg.dispatcher.logger
}
