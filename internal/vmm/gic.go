// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/aibor/vcore/multiplex"
	"github.com/aibor/vcore/signal"
)

// irqSink receives routed interrupts.
type irqSink interface {
	injectIRQ(line int)
}

// InterruptController routes interrupt lines to vCPUs. Devices assert their
// line, the controller picks it up on the dispatcher and injects it into the
// target vCPU.
type InterruptController struct {
	lines signal.Signal

	mu     sync.Mutex
	routes [signal.MaxBits]irqSink

	delivered atomic.Uint64
	spurious  atomic.Uint64
}

var _ multiplex.Handler = (*InterruptController)(nil)

// NewInterruptController creates an [InterruptController] without routes.
func NewInterruptController() *InterruptController {
	return new(InterruptController)
}

// Line returns the bound signal raising line n.
func (g *InterruptController) Line(n int) (signal.Bound, error) {
	if n < 0 || n >= signal.MaxBits {
		return signal.Bound{}, ErrInvalidIRQ
	}

	return signal.NewBound(&g.lines, signal.Mask(1)<<n), nil
}

// Route sets the target of line n. A nil sink drops the line.
func (g *InterruptController) Route(n int, sink irqSink) error {
	if n < 0 || n >= signal.MaxBits {
		return ErrInvalidIRQ
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.routes[n] = sink

	return nil
}

// Signals implements [multiplex.Handler].
func (g *InterruptController) Signals() []signal.Bound {
	return []signal.Bound{signal.NewBound(&g.lines, signal.AllMask)}
}

// Process implements [multiplex.Handler].
func (g *InterruptController) Process(ctx *multiplex.Context) {
	pending := ctx.Taken(g.Signals()[0])

	g.mu.Lock()
	defer g.mu.Unlock()

	for pending != signal.NoMask {
		line := bits.TrailingZeros64(uint64(pending))
		pending &^= signal.Mask(1) << line

		sink := g.routes[line]
		if sink == nil {
			g.spurious.Add(1)
			ctx.Logger().Debug("spurious interrupt", slog.Int("line", line))

			continue
		}

		sink.injectIRQ(line)
		g.delivered.Add(1)
	}
}

// Delivered returns the number of interrupts injected.
func (g *InterruptController) Delivered() uint64 {
	return g.delivered.Load()
}
