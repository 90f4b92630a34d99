// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiplex

import "strings"

// Events is a set of file descriptor readiness events.
type Events uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead Events = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition. It is always reported and
	// need not be requested.
	EventError
	// EventHangup indicates the peer closed its end. It is always reported
	// and need not be requested.
	EventHangup
)

var eventNames = []string{"read", "write", "error", "hangup"}

// String implements the [fmt.Stringer] interface.
func (e Events) String() string {
	var names []string

	for idx, name := range eventNames {
		if e&(1<<idx) != 0 {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}

// Ready is a readiness event of a file descriptor.
type Ready struct {
	FD     int
	Events Events
}
