// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aibor/vcore/multiplex"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newDispatcher(t *testing.T) *multiplex.Dispatcher {
	t.Helper()

	d, err := multiplex.NewDispatcher(multiplex.WithLogger(discardLogger))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = d.Close()
	})

	return d
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []int
}

func (r *lineRecorder) injectIRQ(line int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, line)
}

func (r *lineRecorder) list() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int(nil), r.lines...)
}

const (
	timeout = 2 * time.Second
	tick    = time.Millisecond
)
