// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags_ParseArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expected    *flags
		expectedErr error
		errContains string
	}{
		{
			name: "defaults",
			expected: &flags{
				vcpus:         vcpusDefault,
				queueCapacity: queueCapacityDefault,
				requests:      requestsDefault,
				pauseCycles:   pauseCyclesDefault,
			},
		},
		{
			name: "all set",
			args: []string{
				"-vcpus", "8",
				"-queue-capacity=2",
				"-requests=0",
				"-pause-cycles", "5",
				"-debug",
			},
			expected: &flags{
				vcpus:         8,
				queueCapacity: 2,
				requests:      0,
				pauseCycles:   5,
				debug:         true,
			},
		},
		{
			name: "later flag wins",
			args: []string{"-vcpus=3", "-vcpus=4"},
			expected: &flags{
				vcpus:         4,
				queueCapacity: queueCapacityDefault,
				requests:      requestsDefault,
				pauseCycles:   pauseCyclesDefault,
			},
		},
		{
			name: "version ignores positional args",
			args: []string{"-version", "foo"},
			expected: &flags{
				vcpus:         vcpusDefault,
				queueCapacity: queueCapacityDefault,
				requests:      requestsDefault,
				pauseCycles:   pauseCyclesDefault,
				version:       true,
			},
		},
		{
			name:        "too many vcpus",
			args:        []string{"-vcpus=65"},
			expectedErr: &ParseArgsError{},
			errContains: ErrValueOutOfRange.Error(),
		},
		{
			name:        "zero vcpus",
			args:        []string{"-vcpus=0"},
			expectedErr: &ParseArgsError{},
			errContains: ErrValueOutOfRange.Error(),
		},
		{
			name:        "zero queue capacity",
			args:        []string{"-queue-capacity=0"},
			expectedErr: &ParseArgsError{},
			errContains: ErrValueOutOfRange.Error(),
		},
		{
			name:        "unknown flag",
			args:        []string{"-kernel=/boot/vmlinuz"},
			expectedErr: &ParseArgsError{},
		},
		{
			name:        "positional args",
			args:        []string{"-vcpus=2", "foo"},
			expectedErr: ErrUnexpectedArgs,
		},
		{
			name:        "help",
			args:        []string{"-help"},
			expectedErr: ErrHelp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFlags(io.Discard)

			err := flags.ParseArgs(tt.args)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.ErrorContains(t, err, tt.errContains)

				return
			}

			require.NoError(t, err)

			flags.flagSet = nil
			assert.Equal(t, tt.expected, flags)
		})
	}
}

func TestFlags_Usage(t *testing.T) {
	var output bytes.Buffer

	flags := newFlags(&output)

	err := flags.ParseArgs([]string{"-help"})
	require.ErrorIs(t, err, ErrHelp)

	assert.Contains(t, output.String(), "Usage of 'vcore'")
	assert.Contains(t, output.String(), "VCORE_ARGS")
	assert.Contains(t, output.String(), "-pause-cycles")
}

func TestFlags_MachineConfig(t *testing.T) {
	flags := newFlags(io.Discard)
	require.NoError(t, flags.ParseArgs([]string{"-vcpus=3", "-requests=7"}))

	var console bytes.Buffer

	cfg := flags.machineConfig(&console)

	assert.Equal(t, 3, cfg.VCPUs)
	assert.Equal(t, 7, cfg.Requests)
	assert.Equal(t, queueCapacityDefault, cfg.QueueCapacity)
	assert.Same(t, &console, cfg.Console)
}
