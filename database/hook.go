/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

// SlowQueryEnv overrides whether slow queries are reported: "1" enables,
// anything else disables.
const SlowQueryEnv = "DAPPER_SLOW_QUERY"

var sqlSilentMode atomic.Bool

// EnableSQLSilent mutes the slow query hook, e.g. while seeding data.
func EnableSQLSilent(b bool) {
	sqlSilentMode.Store(b)
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.BgGreen, color.FgHiWhite),
	"INSERT": color.New(color.BgBlue, color.FgHiWhite),
	"UPDATE": color.New(color.BgYellow, color.FgHiWhite),
	"DELETE": color.New(color.BgMagenta, color.FgHiWhite),
}

var (
	fallbackColor = color.New(color.BgRed, color.FgHiWhite)
	slowTagColor  = color.New(color.FgYellow)
)

func formatOperation(event *bun.QueryEvent) string {
	c, ok := operationColors[event.Operation()]
	if !ok {
		c = fallbackColor
	}
	return c.Sprint(event.Query)
}

// SlowQueryHook reports successful queries that ran longer than a
// threshold, to the logger and optionally as a colored line on a writer.
type SlowQueryHook struct {
	fromEnv  string
	enabled  bool
	slowTime time.Duration
	writer   io.Writer
	logger   Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

type SlowQueryOption func(*SlowQueryHook)

// WithSlowQueryWriter also echoes slow statements to w.
func WithSlowQueryWriter(w io.Writer) SlowQueryOption {
	return func(h *SlowQueryHook) { h.writer = w }
}

func NewSlowQueryHook(slowTime time.Duration, logger Logger, opts ...SlowQueryOption) *SlowQueryHook {
	h := &SlowQueryHook{
		fromEnv:  SlowQueryEnv,
		enabled:  true,
		slowTime: slowTime,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.writer == nil && os.Getenv("BUNDEBUG") != "" {
		h.writer = os.Stderr
	}
	return h
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if sqlSilentMode.Load() || event.Err != nil {
		return
	}
	enabled := h.enabled
	if env, ok := os.LookupEnv(h.fromEnv); ok {
		enabled = strings.TrimSpace(env) == "1"
	}
	if !enabled {
		return
	}

	duration := time.Since(event.StartTime)
	if duration <= h.slowTime {
		return
	}
	if h.logger != nil {
		h.logger.Warn("Slow query detected:", "operation", event.Operation(), "duration", duration, "query", event.Query)
	}
	if h.writer != nil {
		_, _ = fmt.Fprintln(h.writer,
			time.Now().Format("2006-01-02 15:04:05.000"),
			slowTagColor.Sprintf("%15s", "[SLOW]"),
			fmt.Sprintf("%17s", duration.Round(time.Microsecond)),
			" ", formatOperation(event),
		)
	}
}
