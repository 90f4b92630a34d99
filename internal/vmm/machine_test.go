// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/vcore/startup"
)

func newMachine(t *testing.T, cfg Config) *Machine {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = discardLogger
	}

	m, err := NewMachine(cfg)
	require.NoError(t, err)

	return m
}

func TestNewMachine_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no vcpus", cfg: Config{QueueCapacity: 1}},
		{name: "too many vcpus", cfg: Config{VCPUs: 65, QueueCapacity: 1}},
		{name: "negative requests", cfg: Config{VCPUs: 1, QueueCapacity: 1, Requests: -1}},
		{name: "no queue", cfg: Config{VCPUs: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMachine(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidSize)
		})
	}
}

func TestMachine_Run(t *testing.T) {
	var console bytes.Buffer

	m := newMachine(t, Config{
		VCPUs: 3,
		// Smaller than the number of vCPUs, so submissions get rejected
		// and retried after a kick.
		QueueCapacity: 2,
		Requests:      40,
		Console:       &console,
	})

	require.NoError(t, m.Run(context.Background()))

	stats := m.Stats()
	require.Len(t, stats.VCPUs, 3)

	for _, cpu := range stats.VCPUs {
		assert.Equal(t, uint64(40), cpu.Completed, "vcpu %d", cpu.ID)
	}

	assert.Equal(t, uint64(120), stats.Block.Processed)
	assert.Zero(t, stats.Block.Evicted)
	assert.Equal(t, uint64(120), stats.Interrupts)

	assert.Contains(t, console.String(), "vcpu 0: verified request 1\n")
	assert.Contains(t, console.String(), "vcpu 2: verified request 39\n")
	assert.NotContains(t, console.String(), "\r")
}

func TestMachine_PauseResume(t *testing.T) {
	m := newMachine(t, Config{VCPUs: 4, QueueCapacity: 8, Requests: 200})

	assert.ErrorIs(t, m.Pause(), ErrNotStarted)

	require.NoError(t, m.Start(context.Background()))

	for range 5 {
		require.NoError(t, m.Pause())
		assert.ErrorIs(t, m.Pause(), ErrPaused)

		// Parked vCPUs make no progress.
		before := m.Stats()
		time.Sleep(time.Millisecond)
		assert.Equal(t, before.VCPUs, m.Stats().VCPUs)

		require.NoError(t, m.Resume())
	}

	assert.ErrorIs(t, m.Resume(), ErrNotPaused)

	require.NoError(t, m.Wait(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	for _, cpu := range m.Stats().VCPUs {
		assert.Equal(t, uint64(5), cpu.Pauses)
		assert.Equal(t, uint64(200), cpu.Completed)
	}
}

func TestMachine_WaitContext(t *testing.T) {
	m := newMachine(t, Config{VCPUs: 2, QueueCapacity: 4, Requests: 10})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Pause())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Paused vCPUs never finish their workload.
	require.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)

	// Shutdown resumes the paused machine before stopping it.
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestMachine_PauseAfterPanic(t *testing.T) {
	m := newMachine(t, Config{VCPUs: 2, QueueCapacity: 4})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Panic(0))
	m.sig.Wait(MachinePanic)

	// The panicked vCPU can not honor the pause.
	assert.Error(t, m.Pause())

	err := m.Shutdown(context.Background())

	var cpuErr *VCPUError

	require.ErrorAs(t, err, &cpuErr)
	assert.ErrorIs(t, err, ErrVCPUPanic)
	assert.ErrorIs(t, err, startup.ErrStartupAborted)
}

func TestMachine_NotStarted(t *testing.T) {
	m := newMachine(t, Config{VCPUs: 1, QueueCapacity: 1})

	assert.ErrorIs(t, m.Panic(1), ErrNoSuchVCPU)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestMachine_StartAfterShutdownFired(t *testing.T) {
	m := newMachine(t, Config{VCPUs: 2, QueueCapacity: 2})

	// All phases fired before anything was registered.
	require.NoError(t, m.shutdown.Shutdown(context.Background()))

	require.NoError(t, m.Start(context.Background()))

	// Every cleanup ran right at registration, in registration order.
	assert.Equal(t, []string{"gic", "block", "console", "vcpus"}, m.cleanups)

	for _, cpu := range m.vcpus {
		assert.True(t, cpu.sig.Snapshot()&VCPUStop != 0)
	}

	require.NoError(t, m.Shutdown(context.Background()))
}
