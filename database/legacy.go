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
	"errors"

	"github.com/tomoncle/dapper/types"
)

// Integer status wrappers for callers that still compare sentinels instead
// of checking errors. The message is empty on success.

// ForeachStatus returns the affected rows of ExecuteForeach, or
// types.DBStatusAbnormal (-1) with the error text.
func (e *Executor) ForeachStatus(ctx context.Context, stmts []string) (int64, string) {
	n, err := e.ExecuteForeach(ctx, stmts)
	if err != nil {
		return int64(types.DBStatusAbnormal), err.Error()
	}
	return n, ""
}

// ForeachStrictStatus returns the affected rows of ExecuteForeachStrict,
// types.DBStatusFailure (-2) when the row count did not match, or
// types.DBStatusAbnormal (-1) for any other failure.
func (e *Executor) ForeachStrictStatus(ctx context.Context, stmts []string) (int64, string) {
	n, err := e.ExecuteForeachStrict(ctx, stmts)
	switch {
	case err == nil:
		return n, ""
	case errors.Is(err, ErrPartialSuccess):
		return int64(types.DBStatusFailure), err.Error()
	default:
		return int64(types.DBStatusAbnormal), err.Error()
	}
}

// ConcatenatedStatus returns 1 on success and 0 with the error text.
func (e *Executor) ConcatenatedStatus(ctx context.Context, stmts []string) (int, string) {
	status, err := e.ExecuteConcatenated(ctx, stmts)
	if err != nil {
		return 0, err.Error()
	}
	return status, ""
}

// StoredProcedureStatus returns 1 on success and 0 with the error text.
func (e *Executor) StoredProcedureStatus(ctx context.Context, name string, params ...any) (int, string) {
	status, err := e.ExecuteStoredProcedure(ctx, name, params...)
	if err != nil {
		return 0, err.Error()
	}
	return status, ""
}
