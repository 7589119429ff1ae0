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

	"github.com/tomoncle/dapper/command"
)

// AsyncResult is delivered once on the channel returned by the Async
// methods. Rows holds the affected rows or the block status.
type AsyncResult struct {
	Rows int64
	Err  error
}

func (e *Executor) async(fn func() (int64, error)) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- AsyncResult{Err: fmt.Errorf("batch panicked: %v", r)}
			}
		}()
		n, err := fn()
		ch <- AsyncResult{Rows: n, Err: err}
	}()
	return ch
}

// ExecuteForeachAsync runs ExecuteForeach in a goroutine.
func (e *Executor) ExecuteForeachAsync(ctx context.Context, stmts []string) <-chan AsyncResult {
	return e.async(func() (int64, error) { return e.ExecuteForeach(ctx, stmts) })
}

// ExecuteForeachStrictAsync runs ExecuteForeachStrict in a goroutine.
func (e *Executor) ExecuteForeachStrictAsync(ctx context.Context, stmts []string) <-chan AsyncResult {
	return e.async(func() (int64, error) { return e.ExecuteForeachStrict(ctx, stmts) })
}

// ExecuteForeachNoTransactionAsync runs ExecuteForeachNoTransaction in a goroutine.
func (e *Executor) ExecuteForeachNoTransactionAsync(ctx context.Context, stmts []string) <-chan AsyncResult {
	return e.async(func() (int64, error) { return e.ExecuteForeachNoTransaction(ctx, stmts) })
}

// ExecuteConcatenatedAsync runs ExecuteConcatenated in a goroutine.
func (e *Executor) ExecuteConcatenatedAsync(ctx context.Context, stmts []string) <-chan AsyncResult {
	return e.async(func() (int64, error) {
		status, err := e.ExecuteConcatenated(ctx, stmts)
		return int64(status), err
	})
}

// ExecuteConcatenatedNoTransactionAsync runs ExecuteConcatenatedNoTransaction in a goroutine.
func (e *Executor) ExecuteConcatenatedNoTransactionAsync(ctx context.Context, stmts []string) <-chan AsyncResult {
	return e.async(func() (int64, error) {
		status, err := e.ExecuteConcatenatedNoTransaction(ctx, stmts)
		return int64(status), err
	})
}

// ExecuteBatchAsync runs ExecuteBatch in a goroutine.
func (e *Executor) ExecuteBatchAsync(ctx context.Context, policy BatchPolicy, stmts []string) <-chan AsyncResult {
	return e.async(func() (int64, error) { return e.ExecuteBatch(ctx, policy, stmts) })
}

// ExecuteCommandSetAsync runs ExecuteCommandSet in a goroutine.
func (e *Executor) ExecuteCommandSetAsync(ctx context.Context, set *command.Set) <-chan AsyncResult {
	return e.async(func() (int64, error) { return e.ExecuteCommandSet(ctx, set) })
}

// ExecuteDictionaryBatchAsync runs ExecuteDictionaryBatch in a goroutine.
func (e *Executor) ExecuteDictionaryBatchAsync(ctx context.Context, entries []BatchEntry) <-chan AsyncResult {
	return e.async(func() (int64, error) { return 0, e.ExecuteDictionaryBatch(ctx, entries) })
}
