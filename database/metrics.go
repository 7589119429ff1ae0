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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// Metrics collects query latency and batch outcomes. It is a bun query
// hook and is also passed to executors with WithMetrics.
type Metrics struct {
	queries    *prometheus.SummaryVec
	batches    *prometheus.CounterVec
	statements *prometheus.CounterVec
	batchTime  *prometheus.HistogramVec
}

var _ bun.QueryHook = (*Metrics)(nil)

// NewMetrics registers the collectors under namespace with reg. Collectors
// already registered by an earlier call are reused.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		queries: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_milliseconds",
			Help:      "Query latency by operation and outcome.",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.001,
			},
		}, []string{"operation", "status"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "batches_total",
			Help:      "Statement batches by operation and outcome.",
		}, []string{"operation", "status"}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "batch_statements_total",
			Help:      "Statements submitted in batches by operation.",
		}, []string{"operation"}),
		batchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "batch_duration_seconds",
			Help:      "Batch latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	var err error
	if m.queries, err = register(reg, m.queries); err != nil {
		return nil, err
	}
	if m.batches, err = register(reg, m.batches); err != nil {
		return nil, err
	}
	if m.statements, err = register(reg, m.statements); err != nil {
		return nil, err
	}
	if m.batchTime, err = register(reg, m.batchTime); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (m *Metrics) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	status := "ok"
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		status = "error"
	}
	elapsed := time.Since(event.StartTime)
	m.queries.WithLabelValues(event.Operation(), status).Observe(float64(elapsed.Milliseconds()))
}

// observeBatch is safe on a nil receiver.
func (m *Metrics) observeBatch(operation string, statements int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrPartialSuccess) {
			status = "partial"
		}
	}
	m.batches.WithLabelValues(operation, status).Inc()
	m.statements.WithLabelValues(operation).Add(float64(statements))
	m.batchTime.WithLabelValues(operation).Observe(elapsed.Seconds())
}
