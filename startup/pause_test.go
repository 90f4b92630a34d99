// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package startup_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/vcore/signal"
	"github.com/aibor/vcore/startup"
)

const (
	bitPause signal.Mask = 1 << iota
	bitStop
)

// pauseLoop mimics a vCPU loop that honors pause and stop requests.
func pauseLoop(
	worker *startup.PauseWorker,
	task *startup.Task,
	sig *signal.Signal,
	paused *atomic.Int32,
) error {
	defer worker.Close()

	for {
		sig.Wait(bitPause | bitStop)

		if sig.Take(bitStop).Any(bitStop) {
			return nil
		}

		if !sig.Take(bitPause).Any(bitPause) {
			continue
		}

		paused.Add(1)

		next, err := worker.HonorPause(task)
		if err != nil {
			return err
		}

		paused.Add(-1)

		task = next
	}
}

func TestPauser_Cycles(t *testing.T) {
	const (
		numWorkers = 4
		numCycles  = 50
	)

	var (
		pauser = startup.NewPauser()
		sigs   = make([]*signal.Signal, numWorkers)
		paused atomic.Int32
		wg     sync.WaitGroup
		errs   = make([]error, numWorkers)
	)

	for idx := range numWorkers {
		worker, task := pauser.AddWorker()
		sigs[idx] = signal.New()

		wg.Add(1)

		go func() {
			defer wg.Done()

			errs[idx] = pauseLoop(worker, task, sigs[idx], &paused)
		}()
	}

	request := func() {
		for _, sig := range sigs {
			sig.Assert(bitPause)
		}
	}

	for range numCycles {
		unpause, err := pauser.Pause(request)
		require.NoError(t, err)

		// Every worker is parked while paused.
		assert.Equal(t, int32(numWorkers), paused.Load())

		unpause.Succeed()
	}

	for _, sig := range sigs {
		sig.Assert(bitStop)
	}

	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestPauser_WorkerGone(t *testing.T) {
	pauser := startup.NewPauser()

	present, task := pauser.AddWorker()
	gone, _ := pauser.AddWorker()

	gone.Close()

	sig := signal.New()
	done := make(chan error)

	go func() {
		var paused atomic.Int32
		done <- pauseLoop(present, task, sig, &paused)
	}()

	unpause, err := pauser.Pause(func() { sig.Assert(bitPause) })
	require.ErrorIs(t, err, startup.ErrStartupAborted)
	assert.Nil(t, unpause)

	// The remaining worker is released with the abort.
	assert.ErrorIs(t, <-done, startup.ErrStartupAborted)
}

func TestPauseWorker_HonorTwicePanics(t *testing.T) {
	pauser := startup.NewPauser()
	worker, task := pauser.AddWorker()

	requested := make(chan struct{})
	unpaused := make(chan struct{})

	go func() {
		defer close(unpaused)

		unpause, err := pauser.Pause(func() { close(requested) })
		if assert.NoError(t, err) {
			unpause.Succeed()
		}
	}()

	<-requested

	next, err := worker.HonorPause(task)
	require.NoError(t, err)
	<-unpaused

	assert.False(t, next.Resolved())
	assert.Panics(t, func() {
		_, _ = worker.HonorPause(task)
	})

	worker.Close()
	assert.True(t, next.Resolved())
}

func TestPauseWorker_HonorBeforeFirstPause(t *testing.T) {
	pauser := startup.NewPauser()
	worker, task := pauser.AddWorker()

	_, err := worker.HonorPause(task)

	assert.ErrorIs(t, err, startup.ErrStartupAborted)
}
