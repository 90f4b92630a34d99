// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"context"
	"log/slog"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// warner logs warnings rate limited per category, so a busy device does
// not flood the log.
type warner struct {
	logger  *slog.Logger
	limiter *catrate.Limiter
}

func newWarner(logger *slog.Logger) *warner {
	return &warner{
		logger: logger,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 5,
			time.Minute: 60,
		}),
	}
}

func (w *warner) warn(category string, msg string, attrs ...slog.Attr) {
	if _, ok := w.limiter.Allow(category); !ok {
		return
	}

	w.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}
