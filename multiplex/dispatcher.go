// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiplex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aibor/vcore/signal"
)

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithLogger sets the logger. Default is [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher is the reactor. All methods are safe for concurrent use, but
// only one goroutine may run it at a time.
//
// File descriptors are level triggered. Handlers must consume the readiness
// or modify their interest, otherwise they are dispatched again right away.
type Dispatcher struct {
	logger *slog.Logger
	poller poller

	mu     sync.Mutex
	regs   []*Registration
	fds    map[int]*Registration
	closed bool

	// Held while running, so Close can wait for a blocked wait to return.
	runMu   sync.Mutex
	running atomic.Bool
	stopped atomic.Bool

	ready []Ready
}

// NewDispatcher creates a new [Dispatcher]. It fails with
// [errors.ErrUnsupported] on platforms without epoll.
func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		logger: slog.Default(),
		poller: p,
		fds:    make(map[int]*Registration),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Register adds a handler. The dispatcher subscribes to all interests
// returned by [Handler.Signals]. Interests that fired before are dispatched
// on the next run.
func (d *Dispatcher) Register(h Handler) (*Registration, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	reg := &Registration{
		dispatcher: d,
		handler:    h,
		signals:    h.Signals(),
		fds:        make(map[int]Events),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	for _, b := range reg.signals {
		if b.IsZero() {
			continue
		}

		cancel := b.Signal().Subscribe(b.Mask(), d.poller.wake)
		reg.cancels = append(reg.cancels, cancel)
	}

	d.regs = append(d.regs, reg)

	d.logger.Debug("handler registered",
		slog.String("handler", fmt.Sprintf("%T", h)),
		slog.Int("signals", len(reg.signals)),
	)

	// Make a running dispatcher look at the new interests.
	d.poller.wake()

	return reg, nil
}

// Stop makes [Dispatcher.Run] return. It is sticky: once stopped, the
// dispatcher does not block anymore.
func (d *Dispatcher) Stop() {
	d.stopped.Store(true)
	d.poller.wake()
}

// Run dispatches until [Dispatcher.Stop] is called or ctx is done. It
// returns nil if stopped and the context cause otherwise.
func (d *Dispatcher) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, d.Stop)
	defer stop()

	for !d.stopped.Load() {
		if err := d.RunOnce(); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	return nil
}

// RunOnce waits once and dispatches all fired handlers. The wait does not
// block if any interest is pending already or the dispatcher is stopped.
func (d *Dispatcher) RunOnce() error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer d.running.Store(false)

	d.runMu.Lock()
	defer d.runMu.Unlock()

	regs, err := d.snapshot()
	if err != nil {
		return err
	}

	block := !d.stopped.Load() && !anyPending(regs)

	d.ready, err = d.poller.wait(d.ready[:0], block)
	if err != nil {
		return err
	}

	// Registrations may have changed while waiting.
	regs, err = d.snapshot()
	if err != nil {
		return err
	}

	for _, reg := range regs {
		d.dispatch(reg)
	}

	return nil
}

func (d *Dispatcher) snapshot() ([]*Registration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	return slices.Clone(d.regs), nil
}

func anyPending(regs []*Registration) bool {
	for _, reg := range regs {
		for _, b := range reg.signals {
			if !b.IsZero() && b.Pending() {
				return true
			}
		}
	}

	return false
}

func (d *Dispatcher) dispatch(reg *Registration) {
	ctx := &Context{reg: reg}

	d.mu.Lock()
	removed := reg.removed

	for _, ready := range d.ready {
		if d.fds[ready.FD] == reg {
			ctx.ready = append(ctx.ready, ready)
		}
	}
	d.mu.Unlock()

	// Removed by a handler dispatched earlier in this round.
	if removed {
		return
	}

	for _, b := range reg.signals {
		if b.IsZero() {
			continue
		}

		if taken := b.Signal().Take(b.Mask()); taken != signal.NoMask {
			ctx.fired = append(ctx.fired, signal.NewBound(b.Signal(), taken))
		}
	}

	if len(ctx.fired) == 0 && len(ctx.ready) == 0 {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("removing panicked handler",
				slog.String("handler", fmt.Sprintf("%T", reg.handler)),
				slog.Any("error", &HandlerPanicError{Value: r}),
			)

			_ = reg.Close()
		}
	}()

	reg.handler.Process(ctx)
}

// Close stops the dispatcher, removes all handlers and releases the poller.
// It waits for a running dispatch to finish, so it must not be called from
// within [Handler.Process].
func (d *Dispatcher) Close() error {
	d.Stop()

	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}

	d.closed = true
	regs := d.regs
	d.regs = nil
	d.mu.Unlock()

	errs := make([]error, 0, len(regs)+1)
	for _, reg := range regs {
		errs = append(errs, reg.Close())
	}

	errs = append(errs, d.poller.close())

	return errors.Join(errs...)
}

// Registration is a handler registered with a [Dispatcher].
type Registration struct {
	dispatcher *Dispatcher
	handler    Handler
	signals    []signal.Bound
	cancels    []func()

	// Guarded by the dispatcher mutex.
	fds     map[int]Events
	removed bool
}

// Handler returns the registered handler.
func (r *Registration) Handler() Handler {
	return r.handler
}

// RegisterFD adds a file descriptor readiness interest for the handler.
func (r *Registration) RegisterFD(fd int, events Events) error {
	if fd < 0 {
		return ErrInvalidFD
	}

	d := r.dispatcher

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := r.usable(); err != nil {
		return err
	}

	if _, exists := d.fds[fd]; exists {
		return ErrFDRegistered
	}

	if err := d.poller.add(fd, events); err != nil {
		return fmt.Errorf("register fd %d: %w", fd, err)
	}

	d.fds[fd] = r
	r.fds[fd] = events

	d.logger.Debug("fd registered",
		slog.Int("fd", fd),
		slog.String("events", events.String()),
	)

	return nil
}

// ModifyFD changes the events waited for on fd.
func (r *Registration) ModifyFD(fd int, events Events) error {
	d := r.dispatcher

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := r.usable(); err != nil {
		return err
	}

	if _, exists := r.fds[fd]; !exists {
		return ErrFDNotRegistered
	}

	if err := d.poller.modify(fd, events); err != nil {
		return fmt.Errorf("modify fd %d: %w", fd, err)
	}

	r.fds[fd] = events

	return nil
}

// UnregisterFD removes the file descriptor. It must be called before the
// descriptor is closed.
func (r *Registration) UnregisterFD(fd int) error {
	d := r.dispatcher

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := r.usable(); err != nil {
		return err
	}

	return r.unregisterFD(fd)
}

// unregisterFD requires the dispatcher mutex.
func (r *Registration) unregisterFD(fd int) error {
	if _, exists := r.fds[fd]; !exists {
		return ErrFDNotRegistered
	}

	delete(r.fds, fd)
	delete(r.dispatcher.fds, fd)

	if err := r.dispatcher.poller.remove(fd); err != nil {
		return fmt.Errorf("unregister fd %d: %w", fd, err)
	}

	return nil
}

func (r *Registration) usable() error {
	switch {
	case r.dispatcher.closed:
		return ErrClosed
	case r.removed:
		return ErrUnregistered
	default:
		return nil
	}
}

// Close removes the handler with all its interests and file descriptors.
// It is safe to call more than once and from within [Handler.Process].
func (r *Registration) Close() error {
	d := r.dispatcher

	d.mu.Lock()
	defer d.mu.Unlock()

	if r.removed {
		return nil
	}

	r.removed = true

	for _, cancel := range r.cancels {
		cancel()
	}

	var errs []error

	for fd := range r.fds {
		errs = append(errs, r.unregisterFD(fd))
	}

	if idx := slices.Index(d.regs, r); idx >= 0 {
		d.regs = slices.Delete(d.regs, idx, idx+1)
	}

	d.logger.Debug("handler removed",
		slog.String("handler", fmt.Sprintf("%T", r.handler)),
	)

	return errors.Join(errs...)
}
