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
package dapper

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/tomoncle/dapper/command"
	"github.com/tomoncle/dapper/database"
	"github.com/tomoncle/dapper/repository"
	"github.com/tomoncle/dapper/types"
)

// Service is the entity-level API of Helper.
type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Query runs raw SQL with :name parameters bound from obj.
	Query(ctx context.Context, query string, obj any) ([]*T, error)

	// QueryIn runs raw SQL whose obj carries one list parameter.
	QueryIn(ctx context.Context, query string, obj any) ([]*T, error)

	// QueryFirst returns the first entity of Query or nil.
	QueryFirst(ctx context.Context, query string, obj any) (*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	Save(ctx context.Context, model ...*T) error
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error
	Update(ctx context.Context, model *T) error
	Delete(ctx context.Context, id any) error

	SaveWithTx(ctx context.Context, tx *bun.Tx, model ...*T) error
	UpdateWithTx(ctx context.Context, tx *bun.Tx, model *T) error
	DeleteWithTx(ctx context.Context, tx *bun.Tx, id any) error
}

// Helper combines a repository for T with the batch executor of the same
// database.
type Helper[T any] struct {
	repo     repository.Repository[T]
	executor *database.Executor
}

var _ Service[struct{}] = (*Helper[struct{}])(nil)

// New returns a Helper over db. opts configure the executor.
func New[T any](db *bun.DB, opts ...database.ExecutorOption) *Helper[T] {
	return NewFromExecutor[T](database.NewExecutor(db, opts...))
}

// NewFromExecutor returns a Helper sharing executor and its database.
func NewFromExecutor[T any](executor *database.Executor) *Helper[T] {
	return &Helper[T]{
		repo:     repository.NewRepository[T](executor.DB()),
		executor: executor,
	}
}

// NewFromProvider connects the provider's database through factory and
// returns a Helper over it.
func NewFromProvider[T any](ctx context.Context, factory *database.BaseDatabaseFactory, source database.ConnectionStringSource, provider types.DBProvider, dbType string) (*Helper[T], error) {
	if factory == nil {
		factory = database.NewDatabaseFactory()
	}
	manager, err := factory.CreateFromProvider(source, provider, dbType)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, false); err != nil {
		return nil, err
	}
	return NewFromExecutor[T](manager.GetExecutor()), nil
}

// Default returns a Helper over the global database set up by
// database.InitDB.
func Default[T any]() (*Helper[T], error) {
	executor := database.GetExecutor()
	if executor == nil {
		return nil, database.ErrNotConnected
	}
	return NewFromExecutor[T](executor), nil
}

// Executor returns the batch executor.
func (h *Helper[T]) Executor() *database.Executor { return h.executor }

// Repository returns the entity repository.
func (h *Helper[T]) Repository() repository.Repository[T] { return h.repo }

func (h *Helper[T]) Get(ctx context.Context, id any) (*T, error) {
	return h.repo.GetOne(ctx, id)
}

func (h *Helper[T]) All(ctx context.Context) ([]*T, error) {
	return h.repo.GetAll(ctx)
}

func (h *Helper[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	return h.repo.List(ctx, filter)
}

func (h *Helper[T]) Query(ctx context.Context, query string, obj any) ([]*T, error) {
	return h.repo.Query(ctx, query, obj)
}

func (h *Helper[T]) QueryIn(ctx context.Context, query string, obj any) ([]*T, error) {
	return h.repo.QueryIn(ctx, query, obj)
}

func (h *Helper[T]) QueryFirst(ctx context.Context, query string, obj any) (*T, error) {
	return h.repo.QueryFirst(ctx, query, obj)
}

func (h *Helper[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	return h.repo.Page(ctx, page)
}

func (h *Helper[T]) Save(ctx context.Context, model ...*T) error {
	return h.repo.Create(ctx, model...)
}

func (h *Helper[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	return h.repo.Upsert(ctx, fields, duplicateKeys, model...)
}

func (h *Helper[T]) Update(ctx context.Context, model *T) error {
	return h.repo.Update(ctx, model)
}

func (h *Helper[T]) Delete(ctx context.Context, id any) error {
	return h.repo.Delete(ctx, id)
}

func (h *Helper[T]) SaveWithTx(ctx context.Context, tx *bun.Tx, model ...*T) error {
	return h.repo.CreateWithTx(ctx, tx, model...)
}

func (h *Helper[T]) UpdateWithTx(ctx context.Context, tx *bun.Tx, model *T) error {
	return h.repo.UpdateWithTx(ctx, tx, model)
}

func (h *Helper[T]) DeleteWithTx(ctx context.Context, tx *bun.Tx, id any) error {
	return h.repo.DeleteWithTx(ctx, tx, id)
}

// Execute runs stmts with the executor's default policy.
func (h *Helper[T]) Execute(ctx context.Context, stmts ...string) (int64, error) {
	return h.executor.Execute(ctx, stmts)
}

// ExecuteCommand marshals a command built from sql and obj and runs it
// outside a transaction.
func (h *Helper[T]) ExecuteCommand(ctx context.Context, sql string, obj any) (int64, error) {
	cmd := command.NewCommand(sql)
	if obj != nil {
		var err error
		if cmd, err = command.NewCommandFromObject(sql, obj); err != nil {
			return 0, err
		}
	}
	return h.executor.ExecuteCommand(ctx, cmd)
}

// ExecuteCommandSet runs every command of set in one transaction.
func (h *Helper[T]) ExecuteCommandSet(ctx context.Context, set *command.Set) (int64, error) {
	return h.executor.ExecuteCommandSet(ctx, set)
}

// QueryRows returns raw rows for queries that do not map onto T.
func (h *Helper[T]) QueryRows(ctx context.Context, query string, obj any) ([]map[string]any, error) {
	return h.executor.QueryIn(ctx, query, obj)
}
