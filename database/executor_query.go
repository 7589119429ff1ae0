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
	"fmt"

	"github.com/uptrace/bun"

	"github.com/tomoncle/dapper/command"
)

// Query runs a query with positional `?` arguments and returns every row
// as a column name to value map.
func (e *Executor) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	var out []map[string]any
	err := e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
		ctx, cancel := e.statementContext(ctx)
		defer cancel()
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		out = make([]map[string]any, 0)
		return e.db.ScanRows(ctx, rows, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryCommand marshals cmd and runs it as a query.
func (e *Executor) QueryCommand(ctx context.Context, cmd *command.Command) ([]map[string]any, error) {
	m, err := command.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	query, args := m.Positional()
	return e.Query(ctx, query, args...)
}

// QueryIn binds the fields of obj by name, giving empty lists a sentinel
// item first, and runs the query.
func (e *Executor) QueryIn(ctx context.Context, query string, obj any) ([]map[string]any, error) {
	m, err := command.Prepare(query, obj)
	if err != nil {
		return nil, err
	}
	q, args := m.Positional()
	return e.Query(ctx, q, args...)
}

// QueryFirstRow returns the first row of the result, or nil when the query
// returns no rows.
func (e *Executor) QueryFirstRow(ctx context.Context, query string, args ...any) (map[string]any, error) {
	rows, err := e.Query(ctx, query, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// QueryString returns the first column of the first row as a string. No
// rows and NULL both yield "".
func (e *Executor) QueryString(ctx context.Context, query string, args ...any) (string, error) {
	var out string
	err := e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
		ctx, cancel := e.statementContext(ctx)
		defer cancel()
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			return rows.Err()
		}
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		var first sql.NullString
		dest := make([]any, len(cols))
		dest[0] = &first
		for i := 1; i < len(dest); i++ {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan first column: %w", err)
		}
		out = first.String
		return rows.Err()
	})
	return out, err
}
