// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Cleans up rate limit categories and stops on its own after the
		// retention period.
		goleak.IgnoreTopFunction("github.com/joeycumines/go-catrate.(*Limiter).worker"),
	)
}
