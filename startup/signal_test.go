// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package startup_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/vcore/startup"
)

func TestSignal_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		resolve func(*startup.Task)
		assert  assert.ErrorAssertionFunc
	}{
		{
			name:    "succeed",
			resolve: (*startup.Task).Succeed,
			assert:  assert.NoError,
		},
		{
			name:    "abort",
			resolve: (*startup.Task).Abort,
			assert: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, startup.ErrStartupAborted)
			},
		},
		{
			name:    "close",
			resolve: (*startup.Task).Close,
			assert: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, startup.ErrStartupAborted) &&
					assert.ErrorIs(t, err, startup.ErrTaskClosed)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, task := startup.New()
			assert.Equal(t, startup.Armed, sig.State())
			assert.False(t, task.Resolved())

			done := make(chan error)

			go func() { done <- sig.Wait() }()

			tt.resolve(task)

			tt.assert(t, <-done)
			assert.True(t, task.Resolved())
			assert.Equal(t, startup.Resolved, sig.State())

			// Later waits see the same outcome.
			tt.assert(t, sig.Wait())
		})
	}
}

func TestTask_ResolveTwicePanics(t *testing.T) {
	tests := []struct {
		name   string
		first  func(*startup.Task)
		second func(*startup.Task)
	}{
		{"succeed succeed", (*startup.Task).Succeed, (*startup.Task).Succeed},
		{"succeed abort", (*startup.Task).Succeed, (*startup.Task).Abort},
		{"abort succeed", (*startup.Task).Abort, (*startup.Task).Succeed},
		{"close abort", (*startup.Task).Close, (*startup.Task).Abort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, task := startup.New()
			tt.first(task)

			assert.PanicsWithValue(t, startup.ErrAlreadyResolved, func() {
				tt.second(task)
			})
		})
	}
}

func TestTask_CloseAfterResolve(t *testing.T) {
	sig, task := startup.New()
	task.Succeed()
	task.Close()

	assert.NoError(t, sig.Wait())
}

func TestTask_ExactlyOnceConcurrent(t *testing.T) {
	sig, task := startup.New()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		panics int
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() {
				if recover() != nil {
					mu.Lock()
					panics++
					mu.Unlock()
				}
			}()

			task.Succeed()
		}()
	}

	wg.Wait()

	assert.Equal(t, 7, panics)
	assert.NoError(t, sig.Wait())
}

func TestSignal_Resurrect(t *testing.T) {
	sig, task := startup.New()

	assert.PanicsWithValue(t, startup.ErrNotResolved, func() {
		sig.Resurrect()
	})

	task.Abort()
	require.Error(t, sig.Wait())

	next := sig.Resurrect()
	assert.Equal(t, startup.Armed, sig.State())

	go next.Succeed()

	assert.NoError(t, sig.Wait())
}

func TestSignal_Idle(t *testing.T) {
	var sig startup.Signal

	assert.Equal(t, startup.Idle, sig.State())
	assert.PanicsWithValue(t, startup.ErrIdle, func() { _ = sig.Wait() })
	assert.PanicsWithValue(t, startup.ErrIdle, func() { sig.Resurrect() })

	task := sig.Arm()
	assert.Equal(t, startup.Armed, sig.State())
	assert.PanicsWithValue(t, startup.ErrNotIdle, func() { sig.Arm() })

	task.Succeed()
	assert.NoError(t, sig.Wait())
}

func TestNewResolved(t *testing.T) {
	sig := startup.NewResolved()

	assert.Equal(t, startup.Resolved, sig.State())
	require.ErrorIs(t, sig.Wait(), startup.ErrStartupAborted)

	task := sig.Resurrect()
	task.Succeed()

	assert.NoError(t, sig.Wait())
}

func TestAbortedError(t *testing.T) {
	reason := errors.New("vcpu gone")
	err := error(&startup.AbortedError{Reason: reason})

	assert.ErrorIs(t, err, startup.ErrStartupAborted)
	assert.ErrorIs(t, err, &startup.AbortedError{})
	assert.ErrorIs(t, err, reason)
	assert.EqualError(t, err, "startup aborted: vcpu gone")
	assert.EqualError(t, &startup.AbortedError{}, "startup aborted")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", startup.Idle.String())
	assert.Equal(t, "armed", startup.Armed.String())
	assert.Equal(t, "resolved", startup.Resolved.String())
	assert.Equal(t, "unknown", startup.State(42).String())
}
