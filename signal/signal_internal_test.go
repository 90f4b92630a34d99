// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignal_WaiterBookkeeping(t *testing.T) {
	sig := New()

	t.Run("woken waiter is removed", func(t *testing.T) {
		done := make(chan struct{})

		go func() {
			defer close(done)
			sig.Wait(1)
		}()

		assert.Eventually(t, func() bool {
			return sig.waiters.Load() == 1
		}, time.Second, time.Millisecond)

		sig.Assert(1)
		<-done

		assert.Zero(t, sig.waiters.Load())
		assert.Empty(t, sig.list)
	})

	t.Run("already satisfied", func(t *testing.T) {
		sig.Take(AllMask)
		sig.Assert(2)

		Await[struct{}](sig, 2, func() { t.Fatal("must not park") }, nil)

		assert.Zero(t, sig.waiters.Load())
	})

	t.Run("subscription cancel", func(t *testing.T) {
		cancel := sig.Subscribe(4, func() {})
		assert.Equal(t, int32(1), sig.waiters.Load())

		sig.Assert(4)
		assert.Equal(t, int32(1), sig.waiters.Load(), "persists")

		cancel()
		assert.Zero(t, sig.waiters.Load())
	})
}
