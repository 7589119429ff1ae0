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
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tomoncle/dapper/command"
)

const instrumentationName = "github.com/tomoncle/dapper/database"

// ConnState is the connection state reported by an Executor.
type ConnState int32

const (
	ConnClosed ConnState = iota
	ConnOpen
	ConnBroken
)

func (s ConnState) String() string {
	switch s {
	case ConnOpen:
		return "open"
	case ConnBroken:
		return "broken"
	default:
		return "closed"
	}
}

// BatchPolicy selects how a list of statements is executed.
type BatchPolicy int

const (
	// SingleTransaction runs every statement in one transaction and commits
	// when none fails.
	SingleTransaction BatchPolicy = iota
	// StrictRowCount is SingleTransaction that also requires the summed
	// affected rows to equal the number of statements.
	StrictRowCount
	// NoTransaction runs statements one by one and stops at the first failure.
	NoTransaction
	// ConcatenatedBlock sends all statements as one block in one round trip
	// inside a transaction.
	ConcatenatedBlock
	// ConcatenatedBlockNoTransaction sends the block without a transaction.
	ConcatenatedBlockNoTransaction
)

var policyNames = map[BatchPolicy]string{
	SingleTransaction:              "single_transaction",
	StrictRowCount:                 "strict_row_count",
	NoTransaction:                  "no_transaction",
	ConcatenatedBlock:              "concatenated_block",
	ConcatenatedBlockNoTransaction: "concatenated_block_no_transaction",
}

func (p BatchPolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParseBatchPolicy maps a configured policy name to a BatchPolicy. An empty
// name selects SingleTransaction.
func ParseBatchPolicy(name string) (BatchPolicy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return SingleTransaction, nil
	}
	for p, s := range policyNames {
		if s == name {
			return p, nil
		}
	}
	return SingleTransaction, fmt.Errorf("unknown batch policy: %s", name)
}

// BatchEntry is one statement of a dictionary batch together with the
// parameter sets it runs with. Each set is bound with command.Prepare.
type BatchEntry struct {
	SQL       string
	ParamSets []any
}

// NewDictionaryBatch converts a statement to parameter sets map into
// entries ordered by statement text.
func NewDictionaryBatch(m map[string][]any) []BatchEntry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]BatchEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, BatchEntry{SQL: k, ParamSets: m[k]})
	}
	return entries
}

// Executor runs statement batches against a bun database. Each call
// acquires its own connection and releases it before returning.
type Executor struct {
	db      *bun.DB
	logger  Logger
	txOpts  *sql.TxOptions
	timeout time.Duration
	policy  BatchPolicy
	metrics *Metrics
	tracer  trace.Tracer

	active atomic.Int32
	broken atomic.Bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(logger Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithTxOptions sets the options every transaction begins with.
func WithTxOptions(opts *sql.TxOptions) ExecutorOption {
	return func(e *Executor) { e.txOpts = opts }
}

// WithStatementTimeout bounds each statement execution.
func WithStatementTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithDefaultPolicy sets the policy used by Execute.
func WithDefaultPolicy(p BatchPolicy) ExecutorOption {
	return func(e *Executor) { e.policy = p }
}

// WithMetrics records batch outcomes into m.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer sets the tracer batch spans are started with.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// WithExecutorConfig applies isolation level, statement timeout and
// default policy from cfg. Invalid values are logged and ignored.
func WithExecutorConfig(cfg ExecutorConfig) ExecutorOption {
	return func(e *Executor) {
		if level, err := ParseIsolationLevel(cfg.IsolationLevel); err != nil {
			e.logger.Warn("Ignoring executor isolation level", "error", err)
		} else if level != sql.LevelDefault || cfg.ReadOnly {
			e.txOpts = &sql.TxOptions{Isolation: level, ReadOnly: cfg.ReadOnly}
		}
		if cfg.StatementTimeout > 0 {
			e.timeout = cfg.StatementTimeout
		}
		if p, err := ParseBatchPolicy(cfg.DefaultPolicy); err != nil {
			e.logger.Warn("Ignoring executor default policy", "error", err)
		} else {
			e.policy = p
		}
	}
}

// NewExecutor returns an executor over db.
func NewExecutor(db *bun.DB, opts ...ExecutorOption) *Executor {
	e := &Executor{
		db:     db,
		logger: GetLogger(),
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = GetLogger()
	}
	return e
}

// DB returns the underlying bun database.
func (e *Executor) DB() *bun.DB { return e.db }

// State reports whether a connection is currently held, or whether the
// last acquisition or statement left the connection unusable.
func (e *Executor) State() ConnState {
	if e.active.Load() > 0 {
		return ConnOpen
	}
	if e.broken.Load() {
		return ConnBroken
	}
	return ConnClosed
}

// withConn acquires a connection for the duration of fn and releases it on
// every exit path, panics included.
func (e *Executor) withConn(ctx context.Context, fn func(ctx context.Context, conn bun.Conn) error) (err error) {
	if e.db == nil {
		return ErrNotConnected
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		e.broken.Store(true)
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	e.active.Add(1)
	defer func() {
		e.active.Add(-1)
		cerr := conn.Close()
		e.broken.Store(errors.Is(err, driver.ErrBadConn))
		if cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			err = errors.Join(err, fmt.Errorf("failed to release connection: %w", cerr))
		}
	}()
	return fn(ctx, conn)
}

// withTx runs fn in a transaction on conn. It commits when fn returns nil
// and rolls back on error or panic. A rollback failure is joined with the
// error that caused it.
func (e *Executor) withTx(ctx context.Context, conn bun.Conn, fn func(ctx context.Context, tx bun.Tx) error) (err error) {
	tx, err := conn.BeginTx(ctx, e.txOpts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	panicked := true
	defer func() {
		if !panicked && err == nil {
			return
		}
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("failed to roll back transaction: %w", rerr))
		}
	}()
	err = fn(ctx, tx)
	if err == nil {
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cerr)
		}
	}
	panicked = false
	return err
}

// statementContext bounds one statement by the configured timeout.
func (e *Executor) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return ctx, func() {}
}

// exec runs one statement and returns its non-negative affected rows.
func (e *Executor) exec(ctx context.Context, db bun.IConn, query string, args ...any) (int64, error) {
	ctx, cancel := e.statementContext(ctx)
	defer cancel()
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// instrument wraps one batch call with a correlation id, a span, logs and
// metrics.
func (e *Executor) instrument(ctx context.Context, operation string, statements int, fn func(ctx context.Context, batchID string) error) error {
	batchID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "dapper."+operation, trace.WithAttributes(
		attribute.String("db.batch.id", batchID),
		attribute.String("db.batch.operation", operation),
		attribute.Int("db.batch.statements", statements),
	))
	defer span.End()

	start := time.Now()
	e.logger.Debug("Executing batch", "batch_id", batchID, "operation", operation, "statements", statements)
	err := fn(ctx, batchID)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("Batch failed", "batch_id", batchID, "operation", operation, "duration", elapsed, "error", err)
	} else {
		e.logger.Debug("Batch completed", "batch_id", batchID, "operation", operation, "duration", elapsed)
	}
	e.metrics.observeBatch(operation, statements, elapsed, err)
	return err
}

// runStatements executes stmts in order on db, stopping at the first error.
func (e *Executor) runStatements(ctx context.Context, db bun.IConn, batchID string, stmts []string) (int64, error) {
	var total int64
	for i, stmt := range stmts {
		query := command.TrimTerminator(stmt)
		n, err := e.exec(ctx, db, query)
		if err != nil {
			e.logger.Error("Statement failed", "batch_id", batchID, "index", i, "sql", query, "error", err)
			return 0, &ExecError{Index: i, SQL: query, Err: err}
		}
		total += n
	}
	return total, nil
}

// ExecuteForeach runs stmts in one transaction and returns the summed
// affected rows. The first failure rolls everything back and is returned
// as an *ExecError.
func (e *Executor) ExecuteForeach(ctx context.Context, stmts []string) (int64, error) {
	var total int64
	err := e.instrument(ctx, SingleTransaction.String(), len(stmts), func(ctx context.Context, batchID string) error {
		return e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
			return e.withTx(ctx, conn, func(ctx context.Context, tx bun.Tx) error {
				n, err := e.runStatements(ctx, tx, batchID, stmts)
				total = n
				return err
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ExecuteForeachStrict is ExecuteForeach that commits only when the summed
// affected rows equal len(stmts). Otherwise it rolls back and returns
// ErrPartialSuccess.
func (e *Executor) ExecuteForeachStrict(ctx context.Context, stmts []string) (int64, error) {
	var total int64
	err := e.instrument(ctx, StrictRowCount.String(), len(stmts), func(ctx context.Context, batchID string) error {
		return e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
			return e.withTx(ctx, conn, func(ctx context.Context, tx bun.Tx) error {
				n, err := e.runStatements(ctx, tx, batchID, stmts)
				if err != nil {
					return err
				}
				if n != int64(len(stmts)) {
					return fmt.Errorf("%w: %d rows affected by %d statements", ErrPartialSuccess, n, len(stmts))
				}
				total = n
				return nil
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ExecuteForeachNoTransaction runs stmts one by one without a transaction.
// Statements before a failing one stay applied.
func (e *Executor) ExecuteForeachNoTransaction(ctx context.Context, stmts []string) (int64, error) {
	var total int64
	err := e.instrument(ctx, NoTransaction.String(), len(stmts), func(ctx context.Context, batchID string) error {
		return e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
			n, err := e.runStatements(ctx, conn, batchID, stmts)
			total = n
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ExecuteConcatenated joins stmts into one block and sends it in a single
// round trip inside a transaction. It returns 1 on success and 0 with the
// error otherwise.
func (e *Executor) ExecuteConcatenated(ctx context.Context, stmts []string) (int, error) {
	return e.executeBlock(ctx, ConcatenatedBlock, stmts, true)
}

// ExecuteConcatenatedNoTransaction is ExecuteConcatenated without a transaction.
func (e *Executor) ExecuteConcatenatedNoTransaction(ctx context.Context, stmts []string) (int, error) {
	return e.executeBlock(ctx, ConcatenatedBlockNoTransaction, stmts, false)
}

func (e *Executor) executeBlock(ctx context.Context, policy BatchPolicy, stmts []string, inTx bool) (int, error) {
	if len(stmts) == 0 {
		return 1, nil
	}
	block := e.Block(stmts)
	err := e.instrument(ctx, policy.String(), len(stmts), func(ctx context.Context, batchID string) error {
		return e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
			run := func(ctx context.Context, db bun.IConn) error {
				if _, err := e.exec(ctx, db, block); err != nil {
					return &ExecError{Index: -1, SQL: block, Err: err}
				}
				return nil
			}
			if !inTx {
				return run(ctx, conn)
			}
			return e.withTx(ctx, conn, func(ctx context.Context, tx bun.Tx) error {
				return run(ctx, tx)
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// Block returns the single server-side block stmts are sent as. Every
// statement gets a terminator. SQL Server gets `BEGIN ... END;`, PostgreSQL
// an anonymous `DO $$ BEGIN ... END $$;` block, and MySQL and SQLite the
// plain statement list, which needs multi-statement support in the driver.
func (e *Executor) Block(stmts []string) string {
	var body strings.Builder
	for i, stmt := range stmts {
		if i > 0 {
			body.WriteByte(' ')
		}
		body.WriteString(command.TrimTerminator(stmt))
		body.WriteByte(';')
	}
	switch e.dialectName() {
	case dialect.PG:
		return "DO $$ BEGIN " + body.String() + " END $$;"
	case dialect.MySQL, dialect.SQLite:
		return body.String()
	default:
		return "BEGIN " + body.String() + " END;"
	}
}

func (e *Executor) dialectName() dialect.Name {
	if e.db == nil {
		return dialect.Invalid
	}
	return e.db.Dialect().Name()
}

// ExecuteBatch dispatches stmts to the operation implementing policy. The
// count is the summed affected rows, or 1 for the block policies.
func (e *Executor) ExecuteBatch(ctx context.Context, policy BatchPolicy, stmts []string) (int64, error) {
	switch policy {
	case SingleTransaction:
		return e.ExecuteForeach(ctx, stmts)
	case StrictRowCount:
		return e.ExecuteForeachStrict(ctx, stmts)
	case NoTransaction:
		return e.ExecuteForeachNoTransaction(ctx, stmts)
	case ConcatenatedBlock:
		status, err := e.ExecuteConcatenated(ctx, stmts)
		return int64(status), err
	case ConcatenatedBlockNoTransaction:
		status, err := e.ExecuteConcatenatedNoTransaction(ctx, stmts)
		return int64(status), err
	default:
		return 0, fmt.Errorf("unknown batch policy: %s", policy)
	}
}

// Execute runs stmts with the executor's default policy.
func (e *Executor) Execute(ctx context.Context, stmts []string) (int64, error) {
	return e.ExecuteBatch(ctx, e.policy, stmts)
}

// ExecuteDictionaryBatch runs every entry in one transaction, once per
// parameter set or once without parameters when an entry has none. Any
// failure rolls back the whole batch.
func (e *Executor) ExecuteDictionaryBatch(ctx context.Context, entries []BatchEntry) error {
	count := 0
	for _, entry := range entries {
		count += max(len(entry.ParamSets), 1)
	}
	return e.instrument(ctx, "dictionary_batch", count, func(ctx context.Context, batchID string) error {
		return e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
			return e.withTx(ctx, conn, func(ctx context.Context, tx bun.Tx) error {
				for i, entry := range entries {
					sets := entry.ParamSets
					if len(sets) == 0 {
						sets = []any{nil}
					}
					for _, set := range sets {
						m, err := command.Prepare(command.TrimTerminator(entry.SQL), set)
						if err != nil {
							return &ExecError{Index: i, SQL: entry.SQL, Err: err}
						}
						query, args := m.Positional()
						if _, err := e.exec(ctx, tx, query, args...); err != nil {
							e.logger.Error("Statement failed", "batch_id", batchID, "index", i, "sql", query, "error", err)
							return &ExecError{Index: i, SQL: query, Err: err}
						}
					}
				}
				return nil
			})
		})
	})
}

// ProcedureCall returns the call statement for a stored procedure taking
// n positional arguments.
func (e *Executor) ProcedureCall(name string, n int) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	if e.dialectName() == dialect.MSSQL {
		if n == 0 {
			return "EXEC " + name
		}
		return "EXEC " + name + " " + marks
	}
	return "CALL " + name + "(" + marks + ")"
}

// ExecuteStoredProcedure calls the named procedure in its own transaction.
// It returns 1 on success and 0 with the error otherwise.
func (e *Executor) ExecuteStoredProcedure(ctx context.Context, name string, params ...any) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: procedure name is empty", command.ErrInvalidArgument)
	}
	query := e.ProcedureCall(name, len(params))
	err := e.instrument(ctx, "stored_procedure", 1, func(ctx context.Context, batchID string) error {
		return e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
			return e.withTx(ctx, conn, func(ctx context.Context, tx bun.Tx) error {
				if _, err := e.exec(ctx, tx, query, params...); err != nil {
					return &ExecError{Index: 0, SQL: query, Err: err}
				}
				return nil
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// ExecuteCommandSet marshals and runs every command of set in one
// transaction and returns the summed affected rows.
func (e *Executor) ExecuteCommandSet(ctx context.Context, set *command.Set) (int64, error) {
	if set == nil {
		return 0, fmt.Errorf("%w: command set is nil", command.ErrInvalidArgument)
	}
	var total int64
	err := e.instrument(ctx, "command_set", set.Len(), func(ctx context.Context, batchID string) error {
		return e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
			return e.withTx(ctx, conn, func(ctx context.Context, tx bun.Tx) error {
				var sum int64
				for i, cmd := range set.All() {
					n, err := e.execCommand(ctx, tx, cmd)
					if err != nil {
						e.logger.Error("Command failed", "batch_id", batchID, "index", i, "sql", cmd.Text, "error", err)
						return &ExecError{Index: i, SQL: cmd.Text, Err: err}
					}
					sum += n
				}
				total = sum
				return nil
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ExecuteCommand marshals and runs a single command without a transaction.
func (e *Executor) ExecuteCommand(ctx context.Context, cmd *command.Command) (int64, error) {
	if cmd == nil {
		return 0, fmt.Errorf("%w: command is nil", command.ErrInvalidArgument)
	}
	var total int64
	err := e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
		n, err := e.execCommand(ctx, conn, cmd)
		total = n
		return err
	})
	return total, err
}

func (e *Executor) execCommand(ctx context.Context, db bun.IConn, cmd *command.Command) (int64, error) {
	m, err := command.Marshal(cmd)
	if err != nil {
		return 0, err
	}
	query, args := m.Positional()
	return e.exec(ctx, db, query, args...)
}

// ExecuteSQL runs one statement with positional `?` arguments outside a
// transaction and returns its affected rows.
func (e *Executor) ExecuteSQL(ctx context.Context, query string, args ...any) (int64, error) {
	var total int64
	err := e.withConn(ctx, func(ctx context.Context, conn bun.Conn) error {
		n, err := e.exec(ctx, conn, query, args...)
		total = n
		return err
	})
	return total, err
}
