// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/aibor/vcore/multiplex"
	"github.com/aibor/vcore/queue"
	"github.com/aibor/vcore/shutdown"
	"github.com/aibor/vcore/signal"
	"github.com/aibor/vcore/startup"
)

// Config is the configuration of a [Machine].
type Config struct {
	// VCPUs is the number of vCPUs. At most [signal.MaxBits].
	VCPUs int
	// QueueCapacity is the capacity of the block request queue.
	QueueCapacity int
	// Requests is the number of block requests each vCPU submits.
	Requests int
	// Console receives the console output. Nil discards it.
	Console io.Writer
	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Machine wires vCPUs, devices and the dispatcher.
type Machine struct {
	logger     *slog.Logger
	dispatcher *multiplex.Dispatcher
	gic        *InterruptController
	block      *BlockDevice
	console    *Console
	vcpus      []*VCPU
	pauser     *startup.Pauser
	shutdown   *shutdown.Multi[Phase]
	sig        signal.Typed[MachineMask]
	busy       atomic.Int32

	reactor errgroup.Group
	cpus    errgroup.Group

	errMu   sync.Mutex
	cpuErrs []error

	mu      sync.Mutex
	started bool
	unpause *startup.Task

	cleanupMu sync.Mutex
	cleanups  []string
}

// NewMachine creates a new [Machine]. Nothing runs before
// [Machine.Start].
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.VCPUs < 1 || cfg.VCPUs > signal.MaxBits || cfg.Requests < 0 {
		return nil, fmt.Errorf("machine: %w", ErrInvalidSize)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dispatcher, err := multiplex.NewDispatcher(multiplex.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("machine: %w", err)
	}

	sectors := uint64(cfg.VCPUs * max(cfg.Requests, 1))

	block, err := NewBlockDevice(cfg.QueueCapacity, sectors, logger)
	if err != nil {
		_ = dispatcher.Close()
		return nil, err
	}

	console, err := NewConsole(cfg.Console)
	if err != nil {
		_ = dispatcher.Close()
		return nil, err
	}

	m := &Machine{
		logger:     logger,
		dispatcher: dispatcher,
		gic:        NewInterruptController(),
		block:      block,
		console:    console,
		pauser:     startup.NewPauser(),
		shutdown:   shutdown.New(PhaseStopDevices, PhaseStopGic, PhaseDestroyVcpu),
		sig:        signal.NewTyped[MachineMask](),
	}

	m.busy.Store(int32(cfg.VCPUs))

	for id := range cfg.VCPUs {
		if err := m.addVCPU(id, cfg.Requests); err != nil {
			_ = m.close()
			return nil, err
		}
	}

	return m, nil
}

func (m *Machine) addVCPU(id int, requests int) error {
	line, err := m.gic.Line(id)
	if err != nil {
		return err
	}

	cpu := &VCPU{
		id:       id,
		sig:      signal.NewTyped[VCPUMask](),
		used:     queue.New[Completion](1, line),
		disk:     m.block,
		console:  m.console.Writer(),
		requests: requests,
		logger:   m.logger,
		idle:     m.vcpuIdle,
	}

	if err := m.gic.Route(id, cpu); err != nil {
		return err
	}

	if err := m.block.AttachKick(id, cpu.sig.Bind(VCPUKick)); err != nil {
		return err
	}

	m.vcpus = append(m.vcpus, cpu)

	return nil
}

func (m *Machine) vcpuIdle() {
	if m.busy.Add(-1) == 0 {
		m.sig.Assert(MachineIdle)
	}
}

// VCPU returns the vCPU with the given index.
func (m *Machine) VCPU(id int) (*VCPU, error) {
	if id < 0 || id >= len(m.vcpus) {
		return nil, ErrNoSuchVCPU
	}

	return m.vcpus[id], nil
}

// Start registers the devices, runs the dispatcher and boots all vCPUs. It
// returns once every vCPU is running. The cleanups of all components are
// registered before anything runs, so [Machine.Shutdown] must be called
// even if Start fails.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrStarted
	}

	m.started = true

	if err := m.attachDevices(); err != nil {
		return err
	}

	m.reactor.Go(func() error {
		return m.dispatcher.Run(context.Background())
	})

	boots := make([]*startup.Signal, 0, len(m.vcpus))

	for _, cpu := range m.vcpus {
		boot, bootTask := startup.New()
		worker, pauseTask := m.pauser.AddWorker()
		boots = append(boots, boot)

		m.cpus.Go(func() error {
			err := cpu.Run(bootTask, worker, pauseTask)
			if err == nil {
				return nil
			}

			m.errMu.Lock()
			m.cpuErrs = append(m.cpuErrs, err)
			m.errMu.Unlock()

			if errors.Is(err, ErrVCPUPanic) {
				m.sig.Assert(MachinePanic)
			} else {
				m.sig.Assert(MachineFault)
			}

			return err
		})
	}

	if err := m.spawn(PhaseDestroyVcpu, m.cleanup("vcpus", m.destroyVCPUs)); err != nil {
		return fmt.Errorf("destroy vcpus: %w", err)
	}

	for _, boot := range boots {
		if err := boot.Wait(); err != nil {
			return fmt.Errorf("boot vcpu: %w", err)
		}
	}

	m.logger.Debug("machine started", slog.Int("vcpus", len(m.vcpus)))

	return ctx.Err()
}

func (m *Machine) attachDevices() error {
	gicReg, err := m.dispatcher.Register(m.gic)
	if err != nil {
		return fmt.Errorf("attach gic: %w", err)
	}

	err = m.spawn(PhaseStopGic, m.cleanup("gic", func() error {
		err := gicReg.Close()
		m.dispatcher.Stop()

		return errors.Join(err, m.reactor.Wait())
	}))
	if err != nil {
		return fmt.Errorf("stop gic: %w", err)
	}

	blockReg, err := m.dispatcher.Register(m.block)
	if err != nil {
		return fmt.Errorf("attach block device: %w", err)
	}

	err = m.spawn(PhaseStopDevices, m.cleanup("block", blockReg.Close))
	if err != nil {
		return fmt.Errorf("stop block device: %w", err)
	}

	consoleReg, err := m.console.Attach(m.dispatcher)
	if err != nil {
		return fmt.Errorf("attach console: %w", err)
	}

	return errors.Join(
		m.spawn(PhaseStopDevices, m.console.CloseWriter),
		m.spawnSignal(PhaseStopDevices, m.console.Drained(),
			m.cleanup("console", consoleReg.Close)),
	)
}

// spawn registers fn for phase p. If the phase has fired already, because
// a shutdown raced the start, fn runs right away.
func (m *Machine) spawn(p Phase, fn func() error) error {
	return m.shutdown.Spawn(p, fn).UnwrapOrRunNow()
}

func (m *Machine) spawnSignal(p Phase, trigger signal.Bound, fn func() error) error {
	return m.shutdown.SpawnSignal(p, trigger, fn).UnwrapOrRunNow()
}

// cleanup wraps fn so it is recorded when it runs.
func (m *Machine) cleanup(name string, fn func() error) func() error {
	return func() error {
		m.logger.Debug("cleanup", slog.String("component", name))

		m.cleanupMu.Lock()
		m.cleanups = append(m.cleanups, name)
		m.cleanupMu.Unlock()

		return fn()
	}
}

func (m *Machine) destroyVCPUs() error {
	for _, cpu := range m.vcpus {
		cpu.sig.Assert(VCPUStop)
	}

	// Errors are collected per vCPU.
	_ = m.cpus.Wait()

	return nil
}

// Wait blocks until all vCPUs finished their workload, a vCPU panicked or
// failed, or ctx is done.
func (m *Machine) Wait(ctx context.Context) error {
	stop := m.sig.Bind(MachineCancel).AssertOnDone(ctx)
	defer stop()

	fired := m.sig.Wait(MachineIdle | MachinePanic | MachineFault | MachineCancel)

	switch {
	case fired&MachinePanic != 0:
		return ErrVCPUPanic
	case fired&MachineFault != 0:
		return ErrVCPUFailed
	case fired&MachineIdle != 0:
		return nil
	default:
		return context.Cause(ctx)
	}
}

// Pause stops all vCPUs. They stay parked until [Machine.Resume].
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}

	if m.unpause != nil {
		return ErrPaused
	}

	unpause, err := m.pauser.Pause(func() {
		for _, cpu := range m.vcpus {
			cpu.sig.Assert(VCPUPause)
		}
	})
	if err != nil {
		return fmt.Errorf("pause: %w", err)
	}

	m.unpause = unpause

	m.logger.Debug("machine paused")

	return nil
}

// Resume releases the vCPUs paused by [Machine.Pause].
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resume()
}

func (m *Machine) resume() error {
	if m.unpause == nil {
		return ErrNotPaused
	}

	m.unpause.Succeed()
	m.unpause = nil

	m.logger.Debug("machine resumed")

	return nil
}

// Panic makes the given vCPU fail with [ErrVCPUPanic]. Other vCPUs are not
// affected.
func (m *Machine) Panic(id int) error {
	cpu, err := m.VCPU(id)
	if err != nil {
		return err
	}

	cpu.sig.Assert(VCPUPanic)

	return nil
}

// Shutdown runs the shutdown phases: devices are stopped first, then the
// interrupt controller together with the dispatcher, then the vCPUs. A
// paused machine is resumed first. Errors of the vCPU loops are returned
// along with the cleanup errors.
func (m *Machine) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.unpause != nil {
		_ = m.resume()
	}
	m.mu.Unlock()

	err := m.shutdown.Shutdown(ctx)
	if err != nil {
		return err
	}

	m.errMu.Lock()
	cpuErr := errors.Join(m.cpuErrs...)
	m.errMu.Unlock()

	return errors.Join(cpuErr, m.close())
}

func (m *Machine) close() error {
	return errors.Join(
		m.dispatcher.Close(),
		m.console.Close(),
	)
}

// Run starts the machine, waits for it and shuts it down.
func (m *Machine) Run(ctx context.Context) error {
	err := m.Start(ctx)
	if err == nil {
		err = m.Wait(ctx)
	}

	shutdownErr := m.Shutdown(context.WithoutCancel(ctx))

	// The vCPU error carries the details of a panic or failure.
	if shutdownErr != nil {
		return shutdownErr
	}

	return err
}

// Stats are counters of a [Machine].
type Stats struct {
	VCPUs      []VCPUStats
	Block      BlockStats
	Interrupts uint64
}

// Stats returns the counters.
func (m *Machine) Stats() Stats {
	stats := Stats{
		Block:      m.block.Stats(),
		Interrupts: m.gic.Delivered(),
	}

	for _, cpu := range m.vcpus {
		stats.VCPUs = append(stats.VCPUs, cpu.Stats())
	}

	return stats
}
