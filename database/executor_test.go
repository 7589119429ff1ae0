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
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mssqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/dapper/command"
	"github.com/tomoncle/dapper/types"
)

func newMockExecutor(t *testing.T, opts ...ExecutorOption) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewExecutor(db, opts...), mock
}

func newSQLiteExecutor(t *testing.T, opts ...ExecutorOption) *Executor {
	t.Helper()
	sqlDB, err := sql.Open(sqliteshim.ShimName, filepath.Join(t.TempDir(), "dapper.db"))
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE account (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		balance INTEGER NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)
	return NewExecutor(db, opts...)
}

func countAccounts(t *testing.T, e *Executor) int {
	t.Helper()
	n, err := e.DB().NewSelect().Table("account").Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestExecutor_ExecuteForeach(t *testing.T) {
	ctx := context.Background()
	stmts := []string{"INSERT INTO t (a) VALUES (1);", "UPDATE t SET a = 2"}

	t.Run("commit", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO t (a) VALUES (1)").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE t SET a = 2").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		rows, err := e.ExecuteForeach(ctx, stmts)
		require.NoError(t, err)
		assert.Equal(t, int64(3), rows)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, ConnClosed, e.State())
	})

	t.Run("rollback", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO t (a) VALUES (1)").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE t SET a = 2").WillReturnError(boom)
		mock.ExpectRollback()

		rows, err := e.ExecuteForeach(ctx, stmts)
		assert.Equal(t, int64(0), rows)
		assert.ErrorIs(t, err, ErrExecutionFailure)
		assert.ErrorIs(t, err, boom)

		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, 1, execErr.Index)
		assert.Equal(t, "UPDATE t SET a = 2", execErr.SQL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		mock.ExpectBegin().WillReturnError(errors.New("no tx"))

		_, err := e.ExecuteForeach(ctx, stmts)
		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit fails", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO t (a) VALUES (1)").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE t SET a = 2").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(errors.New("disk full"))

		rows, err := e.ExecuteForeach(ctx, stmts)
		assert.Equal(t, int64(0), rows)
		assert.ErrorContains(t, err, "failed to commit transaction")
	})
}

func TestExecutor_ExecuteForeachStrict(t *testing.T) {
	ctx := context.Background()
	stmts := []string{"UPDATE t SET a = 1 WHERE id = 1", "UPDATE t SET a = 1 WHERE id = 2"}

	cases := []struct {
		name     string
		affected []int64
		wantRows int64
		wantErr  error
	}{
		{name: "one row each", affected: []int64{1, 1}, wantRows: 2},
		{name: "missing row", affected: []int64{1, 0}, wantErr: ErrPartialSuccess},
		{name: "too many rows", affected: []int64{2, 1}, wantErr: ErrPartialSuccess},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, mock := newMockExecutor(t)
			mock.ExpectBegin()
			for i, stmt := range stmts {
				mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, c.affected[i]))
			}
			if c.wantErr != nil {
				mock.ExpectRollback()
			} else {
				mock.ExpectCommit()
			}

			rows, err := e.ExecuteForeachStrict(ctx, stmts)
			assert.Equal(t, c.wantRows, rows)
			if c.wantErr != nil {
				assert.ErrorIs(t, err, c.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecutor_ExecuteForeachNoTransaction(t *testing.T) {
	ctx := context.Background()
	e, mock := newMockExecutor(t)
	mock.ExpectExec("DELETE FROM t WHERE id = 1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM u WHERE id = 1").WillReturnError(errors.New("no table u"))

	rows, err := e.ExecuteForeachNoTransaction(ctx, []string{
		"DELETE FROM t WHERE id = 1",
		"DELETE FROM u WHERE id = 1",
		"DELETE FROM v WHERE id = 1",
	})
	assert.Equal(t, int64(0), rows)
	assert.ErrorIs(t, err, ErrExecutionFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_ExecuteConcatenated(t *testing.T) {
	ctx := context.Background()

	t.Run("one round trip in a transaction", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO t VALUES (1); INSERT INTO t VALUES (2);").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		status, err := e.ExecuteConcatenated(ctx, []string{"INSERT INTO t VALUES (1);", "INSERT INTO t VALUES (2)"})
		require.NoError(t, err)
		assert.Equal(t, 1, status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO t VALUES (1);").WillReturnError(errors.New("boom"))
		mock.ExpectRollback()

		status, err := e.ExecuteConcatenated(ctx, []string{"INSERT INTO t VALUES (1)"})
		assert.Equal(t, 0, status)
		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, -1, execErr.Index)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("without transaction", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		mock.ExpectExec("DELETE FROM t;").WillReturnResult(sqlmock.NewResult(0, 5))

		status, err := e.ExecuteConcatenatedNoTransaction(ctx, []string{"DELETE FROM t"})
		require.NoError(t, err)
		assert.Equal(t, 1, status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty list", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		status, err := e.ExecuteConcatenated(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestExecutor_Block(t *testing.T) {
	stmts := []string{"UPDATE a SET x = 1;", "  UPDATE b SET y = 2  "}
	cases := []struct {
		name    string
		dialect schema.Dialect
		want    string
	}{
		{name: "sqlite", dialect: sqlitedialect.New(), want: "UPDATE a SET x = 1; UPDATE b SET y = 2;"},
		{name: "postgres", dialect: pgdialect.New(), want: "DO $$ BEGIN UPDATE a SET x = 1; UPDATE b SET y = 2; END $$;"},
		{name: "mssql", dialect: mssqldialect.New(), want: "BEGIN UPDATE a SET x = 1; UPDATE b SET y = 2; END;"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sqlDB, _, err := sqlmock.New()
			require.NoError(t, err)
			defer sqlDB.Close()
			e := NewExecutor(bun.NewDB(sqlDB, c.dialect))
			assert.Equal(t, c.want, e.Block(stmts))
		})
	}
}

func TestExecutor_ProcedureCall(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	pg := NewExecutor(bun.NewDB(sqlDB, pgdialect.New()))
	assert.Equal(t, "CALL refresh_totals(?, ?)", pg.ProcedureCall("refresh_totals", 2))
	assert.Equal(t, "CALL refresh_totals()", pg.ProcedureCall("refresh_totals", 0))

	ms := NewExecutor(bun.NewDB(sqlDB, mssqldialect.New()))
	assert.Equal(t, "EXEC refresh_totals ?, ?", ms.ProcedureCall("refresh_totals", 2))
	assert.Equal(t, "EXEC refresh_totals", ms.ProcedureCall("refresh_totals", 0))
}

func TestExecutor_ExecuteStoredProcedure(t *testing.T) {
	ctx := context.Background()

	t.Run("call", func(t *testing.T) {
		e, mock := newMockExecutor(t)
		mock.ExpectBegin()
		mock.ExpectExec("CALL close_day('2024-01-31')").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		status, err := e.ExecuteStoredProcedure(ctx, "close_day", "2024-01-31")
		require.NoError(t, err)
		assert.Equal(t, 1, status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty name", func(t *testing.T) {
		e, _ := newMockExecutor(t)
		status, err := e.ExecuteStoredProcedure(ctx, " ")
		assert.Equal(t, 0, status)
		assert.ErrorIs(t, err, command.ErrInvalidArgument)
	})
}

func TestExecutor_ExecuteCommandSet(t *testing.T) {
	ctx := context.Background()
	e, mock := newMockExecutor(t)

	set := command.NewSet()
	first := set.Add("UPDATE account SET name = :name WHERE code = :code;", false)
	require.NoError(t, first.SetParameter("name", "alice"))
	require.NoError(t, first.SetParameter("code", "c1"))
	second := set.Add("DELETE FROM audit WHERE code IN (:codes)", false)
	require.NoError(t, second.SetParameter("codes", []string{"c1", "c2"}, ""))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE account SET name = 'alice' WHERE code = 'c1'").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM audit WHERE code IN ('c1', 'c2')").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	rows, err := e.ExecuteCommandSet(ctx, set)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rows)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = e.ExecuteCommandSet(ctx, nil)
	assert.ErrorIs(t, err, command.ErrInvalidArgument)
}

func TestExecutor_ExecuteCommandUnbound(t *testing.T) {
	e, mock := newMockExecutor(t)
	_, err := e.ExecuteCommand(context.Background(), command.NewCommand("DELETE FROM t WHERE id = :id"))
	assert.ErrorIs(t, err, command.ErrUnboundParameter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_NotConnected(t *testing.T) {
	e := NewExecutor(nil)
	_, err := e.ExecuteForeach(context.Background(), []string{"SELECT 1"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, ConnClosed, e.State())
}

func TestExecutor_ExecuteBatch(t *testing.T) {
	ctx := context.Background()

	e, mock := newMockExecutor(t, WithDefaultPolicy(NoTransaction))
	mock.ExpectExec("DELETE FROM t").WillReturnResult(sqlmock.NewResult(0, 3))
	rows, err := e.Execute(ctx, []string{"DELETE FROM t"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM t;").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()
	rows, err = e.ExecuteBatch(ctx, ConcatenatedBlock, []string{"DELETE FROM t"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = e.ExecuteBatch(ctx, BatchPolicy(42), nil)
	assert.ErrorContains(t, err, "unknown batch policy")
}

func TestParseBatchPolicy(t *testing.T) {
	cases := []struct {
		name    string
		want    BatchPolicy
		wantErr bool
	}{
		{name: "", want: SingleTransaction},
		{name: "strict_row_count", want: StrictRowCount},
		{name: " No_Transaction ", want: NoTransaction},
		{name: "concatenated_block_no_transaction", want: ConcatenatedBlockNoTransaction},
		{name: "parallel", wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseBatchPolicy(c.name)
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
			assert.Equal(t, c.want, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, name string) BatchPolicy {
	t.Helper()
	p, err := ParseBatchPolicy(name)
	require.NoError(t, err)
	return p
}

func TestExecutor_WithExecutorConfig(t *testing.T) {
	e := NewExecutor(nil, WithExecutorConfig(ExecutorConfig{
		IsolationLevel:   "serializable",
		StatementTimeout: 5e9,
		DefaultPolicy:    "strict_row_count",
	}))
	require.NotNil(t, e.txOpts)
	assert.Equal(t, sql.LevelSerializable, e.txOpts.Isolation)
	assert.Equal(t, StrictRowCount, e.policy)
	assert.EqualValues(t, 5e9, e.timeout)

	ignored := NewExecutor(nil, WithExecutorConfig(ExecutorConfig{IsolationLevel: "bogus", DefaultPolicy: "bogus"}))
	assert.Nil(t, ignored.txOpts)
	assert.Equal(t, SingleTransaction, ignored.policy)
}

func TestExecutor_SQLiteTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("failure rolls back earlier statements", func(t *testing.T) {
		e := newSQLiteExecutor(t)
		_, err := e.ExecuteForeach(ctx, []string{
			"INSERT INTO account (name) VALUES ('alice')",
			"INSERT INTO account (name) VALUES ('alice')",
		})
		require.ErrorIs(t, err, ErrExecutionFailure)
		assert.Equal(t, 0, countAccounts(t, e))
	})

	t.Run("no transaction keeps earlier statements", func(t *testing.T) {
		e := newSQLiteExecutor(t)
		_, err := e.ExecuteForeachNoTransaction(ctx, []string{
			"INSERT INTO account (name) VALUES ('alice')",
			"INSERT INTO account (name) VALUES ('alice')",
		})
		require.Error(t, err)
		assert.Equal(t, 1, countAccounts(t, e))
	})

	t.Run("strict rolls back on row mismatch", func(t *testing.T) {
		e := newSQLiteExecutor(t)
		rows, err := e.ExecuteForeachStrict(ctx, []string{
			"INSERT INTO account (name) VALUES ('alice')",
			"UPDATE account SET balance = 10 WHERE name = 'nobody'",
		})
		assert.ErrorIs(t, err, ErrPartialSuccess)
		assert.Equal(t, int64(0), rows)
		assert.Equal(t, 0, countAccounts(t, e))

		status, msg := e.ForeachStrictStatus(ctx, []string{"UPDATE account SET balance = 10 WHERE name = 'nobody'"})
		assert.Equal(t, int64(types.DBStatusFailure), status)
		assert.NotEmpty(t, msg)
	})

	t.Run("concatenated block", func(t *testing.T) {
		e := newSQLiteExecutor(t)
		status, err := e.ExecuteConcatenated(ctx, []string{
			"INSERT INTO account (name) VALUES ('alice')",
			"INSERT INTO account (name) VALUES ('bob')",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, status)
		assert.Equal(t, 2, countAccounts(t, e))
	})
}

func TestExecutor_ExecuteDictionaryBatch(t *testing.T) {
	ctx := context.Background()
	insert := "INSERT INTO account (name, balance) VALUES (:name, :balance)"

	t.Run("all sets applied", func(t *testing.T) {
		e := newSQLiteExecutor(t)
		err := e.ExecuteDictionaryBatch(ctx, NewDictionaryBatch(map[string][]any{
			insert: {
				map[string]any{"name": "alice", "balance": 10},
				map[string]any{"name": "bob", "balance": 20},
			},
			"UPDATE account SET balance = balance + 1": nil,
		}))
		require.NoError(t, err)
		assert.Equal(t, 2, countAccounts(t, e))

		total, err := e.QueryString(ctx, "SELECT SUM(balance) FROM account")
		require.NoError(t, err)
		assert.Equal(t, "32", total)
	})

	t.Run("failure rolls back every entry", func(t *testing.T) {
		e := newSQLiteExecutor(t)
		err := e.ExecuteDictionaryBatch(ctx, []BatchEntry{
			{SQL: insert, ParamSets: []any{map[string]any{"name": "alice", "balance": 1}}},
			{SQL: insert, ParamSets: []any{map[string]any{"name": "alice", "balance": 2}}},
		})
		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, 1, execErr.Index)
		assert.Equal(t, 0, countAccounts(t, e))
	})

	t.Run("unbound parameter", func(t *testing.T) {
		e := newSQLiteExecutor(t)
		err := e.ExecuteDictionaryBatch(ctx, []BatchEntry{
			{SQL: insert, ParamSets: []any{map[string]any{"name": "alice"}}},
		})
		assert.ErrorIs(t, err, command.ErrUnboundParameter)
	})
}

func TestExecutor_Queries(t *testing.T) {
	ctx := context.Background()
	e := newSQLiteExecutor(t)
	_, err := e.ExecuteForeach(ctx, []string{
		"INSERT INTO account (name, balance) VALUES ('alice', 10)",
		"INSERT INTO account (name, balance) VALUES ('bob', 20)",
		"INSERT INTO account (name, balance) VALUES ('carol', 30)",
	})
	require.NoError(t, err)

	rows, err := e.Query(ctx, "SELECT name, balance FROM account WHERE balance > ?", 15)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	type filter struct {
		Names []string `db:"names"`
	}
	rows, err = e.QueryIn(ctx, "SELECT id FROM account WHERE name IN (:names)", &filter{Names: []string{"alice", "carol"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = e.QueryIn(ctx, "SELECT id FROM account WHERE name IN :names", filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	first, err := e.QueryFirstRow(ctx, "SELECT id FROM account WHERE name = 'nobody'")
	require.NoError(t, err)
	assert.Nil(t, first)

	name, err := e.QueryString(ctx, "SELECT name FROM account ORDER BY balance DESC")
	require.NoError(t, err)
	assert.Equal(t, "carol", name)

	name, err = e.QueryString(ctx, "SELECT name FROM account WHERE id < 0")
	require.NoError(t, err)
	assert.Equal(t, "", name)
}

func TestExecutor_Async(t *testing.T) {
	ctx := context.Background()
	e := newSQLiteExecutor(t)

	res := <-e.ExecuteForeachAsync(ctx, []string{
		"INSERT INTO account (name) VALUES ('alice')",
		"INSERT INTO account (name) VALUES ('bob')",
	})
	require.NoError(t, res.Err)
	assert.Equal(t, int64(2), res.Rows)

	res = <-e.ExecuteForeachStrictAsync(ctx, []string{"UPDATE account SET balance = 1 WHERE name = 'nobody'"})
	assert.ErrorIs(t, res.Err, ErrPartialSuccess)

	res = <-e.ExecuteCommandSetAsync(ctx, nil)
	assert.ErrorIs(t, res.Err, command.ErrInvalidArgument)
}

func TestExecutor_LegacyStatus(t *testing.T) {
	ctx := context.Background()
	e := newSQLiteExecutor(t)

	rows, msg := e.ForeachStatus(ctx, []string{"INSERT INTO account (name) VALUES ('alice')"})
	assert.Equal(t, int64(1), rows)
	assert.Empty(t, msg)

	rows, msg = e.ForeachStatus(ctx, []string{"INSERT INTO missing (name) VALUES ('alice')"})
	assert.Equal(t, int64(types.DBStatusAbnormal), rows)
	assert.NotEmpty(t, msg)

	status, msg := e.ConcatenatedStatus(ctx, []string{"INSERT INTO missing (name) VALUES ('x')"})
	assert.Equal(t, 0, status)
	assert.NotEmpty(t, msg)
}

func TestExecutor_CommandWithQuestionMarkLiteral(t *testing.T) {
	ctx := context.Background()
	e := newSQLiteExecutor(t)
	_, err := e.ExecuteSQL(ctx, "INSERT INTO account (name, balance) VALUES (?, ?)", "alice", 5)
	require.NoError(t, err)

	cmd := command.NewCommand("UPDATE account SET name = 'who?' WHERE id = :id")
	require.NoError(t, cmd.SetParameter("id", 1))
	n, err := e.ExecuteCommand(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	name, err := e.QueryString(ctx, "SELECT name FROM account WHERE id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t, "who?", name)

	query := command.NewCommand("SELECT id FROM account WHERE name = 'who?' AND balance = :balance")
	require.NoError(t, query.SetParameter("balance", 5))
	rows, err := e.QueryCommand(ctx, query)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExecutor_QueryStatementTimeout(t *testing.T) {
	ctx := context.Background()
	e, mock := newMockExecutor(t, WithStatementTimeout(10*time.Millisecond))
	mock.ExpectQuery("SELECT a FROM t").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(1))
	mock.ExpectQuery("SELECT b FROM t").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"b"}).AddRow("x"))

	_, err := e.Query(ctx, "SELECT a FROM t")
	assert.Error(t, err)
	_, err = e.QueryString(ctx, "SELECT b FROM t")
	assert.Error(t, err)
}
