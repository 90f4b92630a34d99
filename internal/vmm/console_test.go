// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func runUntilDrained(t *testing.T, console *Console) {
	t.Helper()

	d := newDispatcher(t)

	_, err := console.Attach(d)
	require.NoError(t, err)

	for range 100 {
		if console.Drained().Pending() {
			return
		}

		require.NoError(t, d.RunOnce())
	}

	t.Fatal("console not drained")
}

func TestConsole_Lines(t *testing.T) {
	var out bytes.Buffer

	console, err := NewConsole(&out)
	require.NoError(t, err)

	t.Cleanup(func() { _ = console.Close() })

	_, err = io.WriteString(console.Writer(), "hello\r\nwor")
	require.NoError(t, err)
	_, err = io.WriteString(console.Writer(), "ld\nno newline\r")
	require.NoError(t, err)

	require.NoError(t, console.CloseWriter())
	require.NoError(t, console.CloseWriter())

	runUntilDrained(t, console)

	assert.Equal(t, "hello\nworld\nno newline\n", out.String())
	assert.NoError(t, console.Err())
}

func TestConsole_WriteError(t *testing.T) {
	console, err := NewConsole(failingWriter{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = console.Close() })

	_, err = io.WriteString(console.Writer(), "a\nb\n")
	require.NoError(t, err)
	require.NoError(t, console.CloseWriter())

	runUntilDrained(t, console)

	assert.ErrorContains(t, console.Err(), "disk full")
}

func TestConsole_Discard(t *testing.T) {
	console, err := NewConsole(nil)
	require.NoError(t, err)

	_, err = io.WriteString(console.Writer(), "dropped\n")
	require.NoError(t, err)

	assert.NoError(t, console.Close())
	assert.NoError(t, console.Close())
}
