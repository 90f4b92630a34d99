// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"runtime"
	"sync/atomic"

	"github.com/aibor/vcore/queue"
	"github.com/aibor/vcore/signal"
	"github.com/aibor/vcore/startup"
)

// exitObserver is how a vCPU loop looks at its signal. While the guest has
// work, it polls. Once there is nothing to do but wait for interrupts or
// requests from outside, it parks.
type exitObserver interface {
	observe(sig signal.Typed[VCPUMask]) VCPUMask
}

type pollObserver struct{}

func (pollObserver) observe(sig signal.Typed[VCPUMask]) VCPUMask {
	return sig.Take(vcpuAll)
}

type waitObserver struct{}

func (waitObserver) observe(sig signal.Typed[VCPUMask]) VCPUMask {
	sig.Wait(vcpuAll)
	return sig.Take(vcpuAll)
}

// submitter is the device side of a vCPU.
type submitter interface {
	Submit(req Request) error
}

// VCPU is a virtual CPU. Its guest writes and reads back sectors of the
// block device, one request at a time.
type VCPU struct {
	id       int
	sig      signal.Typed[VCPUMask]
	irqs     atomic.Uint64
	used     *queue.Queue[Completion]
	disk     submitter
	console  io.Writer
	requests int
	logger   *slog.Logger

	// Called once the workload is done.
	idle func()

	completed atomic.Uint64
	pauses    atomic.Uint64
	irqCount  atomic.Uint64

	// Guest state, only touched on the vCPU goroutine.
	next     int
	inflight bool
	starved  bool
	idled    bool
	written  []byte
}

// ID returns the index of the vCPU.
func (c *VCPU) ID() int {
	return c.id
}

// Signal returns the vCPU signal.
func (c *VCPU) Signal() signal.Typed[VCPUMask] {
	return c.sig
}

func (c *VCPU) injectIRQ(line int) {
	c.irqs.Or(1 << uint(line))
	c.sig.Assert(VCPUIrq)
}

// Run runs the vCPU loop on a locked OS thread until it is stopped. boot is
// resolved once the loop runs. The loop honors pause requests using worker
// and pause.
func (c *VCPU) Run(boot *startup.Task, worker *startup.PauseWorker, pause *startup.Task) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer worker.Close()
	defer boot.Close()

	boot.Succeed()

	c.logger.Debug("vcpu running", slog.Int("vcpu", c.id))

	for {
		c.reportIdle()

		var observer exitObserver = pollObserver{}
		if !c.runnable() {
			observer = waitObserver{}
		}

		exits := observer.observe(c.sig)

		switch {
		case exits&VCPUPanic != 0:
			return &VCPUError{ID: c.id, Err: ErrVCPUPanic}
		case exits&VCPUStop != 0:
			c.logger.Debug("vcpu stopped", slog.Int("vcpu", c.id))
			return nil
		}

		if exits&VCPUPause != 0 {
			next, err := worker.HonorPause(pause)
			if err != nil {
				return &VCPUError{ID: c.id, Err: err}
			}

			pause = next
			c.pauses.Add(1)
		}

		if exits&VCPUIrq != 0 {
			if err := c.handleIRQ(); err != nil {
				return &VCPUError{ID: c.id, Err: err}
			}
		}

		if exits&VCPUKick != 0 {
			c.starved = false
		}

		c.step()
	}
}

// reportIdle calls idle once the workload is done. A vCPU with a pending
// stop or panic is not reported.
func (c *VCPU) reportIdle() {
	if c.idled || c.idle == nil || c.next < c.requests {
		return
	}

	if c.sig.Snapshot()&vcpuExits != 0 {
		return
	}

	c.idled = true
	c.idle()
}

// runnable returns true if the guest can make progress without waiting.
func (c *VCPU) runnable() bool {
	return !c.inflight && !c.starved && c.next < c.requests
}

func (c *VCPU) step() {
	if !c.runnable() {
		return
	}

	req := c.request(c.next)

	err := c.disk.Submit(req)
	if err != nil {
		var fullErr *queue.FullError[Request]
		if errors.As(err, &fullErr) {
			c.starved = true
			return
		}

		c.logger.Warn("vcpu submit failed",
			slog.Int("vcpu", c.id),
			slog.Any("error", err),
		)

		return
	}

	c.inflight = true
}

// request builds the request seq. Even requests write a sector, odd
// requests read it back.
func (c *VCPU) request(seq int) Request {
	req := Request{
		CPU:    c.id,
		Seq:    seq,
		Sector: uint64(c.id*c.requests + seq/2),
		Used:   c.used,
	}

	if seq%2 == 0 {
		c.written = []byte(fmt.Sprintf("vcpu %d sector %d", c.id, req.Sector))
		req.Op = OpWrite
		req.Data = c.written
	}

	return req
}

func (c *VCPU) handleIRQ() error {
	lines := c.irqs.Swap(0)
	c.irqCount.Add(uint64(bits.OnesCount64(lines)))

	var err error

	c.used.RecvAll(func(completion Completion) {
		if err != nil {
			return
		}

		err = c.complete(completion)
	})

	return err
}

func (c *VCPU) complete(completion Completion) error {
	if completion.Seq != c.next {
		return fmt.Errorf("completion %d while waiting for %d", completion.Seq, c.next)
	}

	if completion.Err != nil {
		return fmt.Errorf("request %d: %w", completion.Seq, completion.Err)
	}

	if completion.Seq%2 == 1 {
		if !bytes.HasPrefix(completion.Data, c.written) {
			return fmt.Errorf("request %d: %w", completion.Seq, ErrDataMismatch)
		}

		fmt.Fprintf(c.console, "vcpu %d: verified request %d\r\n", c.id, completion.Seq)
	}

	c.inflight = false
	c.next++
	c.completed.Add(1)

	return nil
}

// VCPUStats are counters of a [VCPU].
type VCPUStats struct {
	ID         int
	Completed  uint64
	Pauses     uint64
	Interrupts uint64
}

// Stats returns the counters.
func (c *VCPU) Stats() VCPUStats {
	return VCPUStats{
		ID:         c.id,
		Completed:  c.completed.Load(),
		Pauses:     c.pauses.Load(),
		Interrupts: c.irqCount.Load(),
	}
}
