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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) record(level, msg string, fields []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s %s%s", level, msg, formatFields(fields)))
}

func (l *recordingLogger) SetLevel(LogLevel) {}
func (l *recordingLogger) Debug(msg string, fields ...any) { l.record("DEBUG", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...any) { l.record("INFO", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...any) { l.record("WARN", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...any) { l.record("ERROR", msg, fields) }

func TestSlowQueryHook(t *testing.T) {
	slowEvent := func() *bun.QueryEvent {
		return &bun.QueryEvent{Query: "SELECT * FROM account", StartTime: time.Now().Add(-50 * time.Millisecond)}
	}

	t.Run("reports slow query", func(t *testing.T) {
		var buf bytes.Buffer
		logger := &recordingLogger{}
		h := NewSlowQueryHook(10*time.Millisecond, logger, WithSlowQueryWriter(&buf))
		h.AfterQuery(context.Background(), slowEvent())

		assert.Contains(t, buf.String(), "[SLOW]")
		assert.Contains(t, buf.String(), "SELECT * FROM account")
		if assert.Len(t, logger.messages, 1) {
			assert.Contains(t, logger.messages[0], "WARN Slow query detected:")
			assert.Contains(t, logger.messages[0], "operation=SELECT")
		}
	})

	t.Run("fast query ignored", func(t *testing.T) {
		logger := &recordingLogger{}
		h := NewSlowQueryHook(time.Hour, logger)
		h.AfterQuery(context.Background(), slowEvent())
		assert.Empty(t, logger.messages)
	})

	t.Run("failed query ignored", func(t *testing.T) {
		logger := &recordingLogger{}
		h := NewSlowQueryHook(0, logger)
		ev := slowEvent()
		ev.Err = errors.New("boom")
		h.AfterQuery(context.Background(), ev)
		assert.Empty(t, logger.messages)
	})

	t.Run("disabled by env", func(t *testing.T) {
		t.Setenv(SlowQueryEnv, "0")
		logger := &recordingLogger{}
		NewSlowQueryHook(0, logger).AfterQuery(context.Background(), slowEvent())
		assert.Empty(t, logger.messages)
	})

	t.Run("silent mode", func(t *testing.T) {
		EnableSQLSilent(true)
		defer EnableSQLSilent(false)
		logger := &recordingLogger{}
		NewSlowQueryHook(0, logger).AfterQuery(context.Background(), slowEvent())
		assert.Empty(t, logger.messages)
	})
}

func TestTracingHook(t *testing.T) {
	h := NewTracingHook(noop.NewTracerProvider().Tracer("test"), "sqlite").WithStatement(true)
	ev := &bun.QueryEvent{Query: "UPDATE account SET balance = 0", StartTime: time.Now()}
	ctx := h.BeforeQuery(context.Background(), ev)
	assert.NotPanics(t, func() { h.AfterQuery(ctx, ev) })

	assert.NotNil(t, NewTracingHook(nil, "postgresql").tracer)
}

func TestFormatFields(t *testing.T) {
	assert.Equal(t, "", formatFields(nil))
	assert.Equal(t, " a=1 b=x", formatFields([]any{"a", 1, "b", "x", "dangling"}))
}

func TestExecutor_LogsFailedStatement(t *testing.T) {
	logger := &recordingLogger{}
	e, mock := newMockExecutor(t, WithExecutorLogger(logger))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM t").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	_, err := e.ExecuteForeach(context.Background(), []string{"DELETE FROM t"})
	assert.Error(t, err)

	var failed []string
	for _, m := range logger.messages {
		if len(m) > 5 && m[:5] == "ERROR" {
			failed = append(failed, m)
		}
	}
	if assert.Len(t, failed, 2) {
		assert.Contains(t, failed[0], "Statement failed")
		assert.Contains(t, failed[0], "index=0")
		assert.Contains(t, failed[1], "Batch failed")
	}
}
