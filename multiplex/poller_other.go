// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux

package multiplex

import (
	"errors"
	"fmt"
)

func newPoller() (poller, error) {
	return nil, fmt.Errorf("multiplex: %w", errors.ErrUnsupported)
}
