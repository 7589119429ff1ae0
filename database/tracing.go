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
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingHook starts one span per query. Arguments are interpolated into
// the statement text, so the text is only attached when WithStatement is set.
type TracingHook struct {
	tracer    trace.Tracer
	system    string
	statement bool
}

var _ bun.QueryHook = (*TracingHook)(nil)

// NewTracingHook returns a hook using tracer, or the global provider's
// tracer when nil. system is the db.system attribute, e.g. "postgresql".
func NewTracingHook(tracer trace.Tracer, system string) *TracingHook {
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return &TracingHook{tracer: tracer, system: system}
}

// WithStatement makes the hook record the formatted statement text.
func (h *TracingHook) WithStatement(on bool) *TracingHook {
	h.statement = on
	return h
}

func (h *TracingHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	ctx, span := h.tracer.Start(ctx, "db."+event.Operation(), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", h.system),
		attribute.String("db.operation", event.Operation()),
	)
	if h.statement {
		span.SetAttributes(attribute.String("db.statement", event.Query))
	}
	return ctx
}

func (h *TracingHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	defer span.End()
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	}
}
