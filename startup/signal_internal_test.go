// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package startup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketSurvivesResurrect(t *testing.T) {
	sig, task := New()

	ticket := sig.ticket()

	next := sig.succeedAndResurrect(task)

	assert.Equal(t, Armed, sig.State())
	assert.NoError(t, ticket.wait())
	assert.False(t, next.Resolved())
	assert.NotSame(t, ticket, sig.ticket())
}

func TestSucceedAndResurrect_ForeignTask(t *testing.T) {
	sig, _ := New()
	_, foreign := New()

	assert.PanicsWithValue(t, ErrNotResolved, func() {
		sig.succeedAndResurrect(foreign)
	})
}

func TestAbortCurrent(t *testing.T) {
	sig, task := New()

	sig.abortCurrent(ErrTaskClosed)

	assert.True(t, task.Resolved())
	assert.ErrorIs(t, sig.Wait(), ErrTaskClosed)

	// Idle signals are left alone.
	var idle Signal
	idle.abortCurrent(ErrTaskClosed)
	assert.Equal(t, Idle, idle.State())
}
