// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiplex_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aibor/vcore/multiplex"
	"github.com/aibor/vcore/signal"
)

type testHandler struct {
	name    string
	signals []signal.Bound
	process func(*multiplex.Context)

	mu    sync.Mutex
	calls int
	log   *[]string
}

func (h *testHandler) Signals() []signal.Bound {
	return h.signals
}

func (h *testHandler) Process(ctx *multiplex.Context) {
	h.mu.Lock()
	h.calls++

	if h.log != nil {
		*h.log = append(*h.log, h.name)
	}
	h.mu.Unlock()

	if h.process != nil {
		h.process(ctx)
	}
}

func (h *testHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.calls
}

func newDispatcher(t *testing.T) *multiplex.Dispatcher {
	t.Helper()

	d, err := multiplex.NewDispatcher()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = d.Close()
	})

	return d
}

func register(t *testing.T, d *multiplex.Dispatcher, h multiplex.Handler) *multiplex.Registration {
	t.Helper()

	reg, err := d.Register(h)
	require.NoError(t, err)

	return reg
}
