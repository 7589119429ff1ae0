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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/dapper/types"
)

func TestBaseDatabaseFactory_CreateFromConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "sqlite", mutate: func(c *Config) { c.ConnectionConfig.Type = "sqlite3" }},
		{name: "mssql alias", mutate: func(c *Config) { c.ConnectionConfig.Type = "sqlserver" }},
		{name: "unsupported type", mutate: func(c *Config) { c.ConnectionConfig.Type = "oracle" }, wantErr: "unsupported database type"},
		{name: "bad policy", mutate: func(c *Config) {
			c.ConnectionConfig.Type = "postgres"
			c.ExecutorConfig.DefaultPolicy = "sometimes"
		}, wantErr: "unknown batch policy"},
		{name: "bad isolation", mutate: func(c *Config) {
			c.ConnectionConfig.Type = "mysql"
			c.ExecutorConfig.IsolationLevel = "loose"
		}, wantErr: "unknown isolation level"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.mutate(cfg)
			m, err := NewDatabaseFactory().CreateFromConfig(cfg)
			if c.wantErr != "" {
				assert.ErrorContains(t, err, c.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, m)
			assert.Nil(t, m.GetExecutor())
		})
	}

	_, err := NewDatabaseFactory().CreateFromConfig(nil)
	assert.Error(t, err)
}

func TestBaseDatabaseFactory_EnvOverrides(t *testing.T) {
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_DSN", "postgres://u:p@db/app")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_ENABLE_METRICS", "true")
	t.Setenv("DB_SLOW_QUERY_TIME", "250ms")

	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = "mysql"
	_, err := NewDatabaseFactory().CreateFromConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.ConnectionConfig.Type)
	assert.Equal(t, "postgres://u:p@db/app", cfg.ConnectionConfig.DSN)
	assert.Equal(t, 6543, cfg.ConnectionConfig.Port)
	assert.True(t, cfg.ConnectionConfig.EnableMetrics)
	assert.Equal(t, "250ms", cfg.ConnectionConfig.SlowQueryTime.String())
}

func TestBaseDatabaseFactory_SQLiteLifecycle(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "factory.db")

	f := NewDatabaseFactory()
	_, err := f.CreateFromProvider(MapSource{"main": dsn}, types.ProviderMain, "sqlite")
	require.NoError(t, err)
	require.NoError(t, f.InitializeDatabase(ctx, false))
	defer f.Close()

	executor := f.GetExecutor()
	require.NotNil(t, executor)
	rows, err := executor.ExecuteForeach(ctx, []string{
		"CREATE TABLE note (id INTEGER PRIMARY KEY, body TEXT)",
		"INSERT INTO note (body) VALUES ('hello')",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	status := f.GetHealthStatus(ctx)
	assert.True(t, status.Healthy)
	assert.GreaterOrEqual(t, f.GetStats().OpenConns, 1)

	require.NoError(t, f.Close())
	assert.Nil(t, f.GetManager().GetExecutor())
	assert.ErrorIs(t, f.GetManager().Ping(ctx), ErrNotConnected)
}

func TestBaseDatabaseFactory_CreateFromProviderErrors(t *testing.T) {
	f := NewDatabaseFactory()

	_, err := f.CreateFromProvider(MapSource{}, types.ProviderLog, "sqlite")
	assert.ErrorIs(t, err, ErrConnectionStringMissing)

	_, err = f.CreateFromProvider(nil, types.ProviderMain, "sqlite")
	assert.ErrorIs(t, err, ErrConnectionStringMissing)

	_, err = f.CreateFromProvider(MapSource{"main": "x"}, types.DBProvider(42), "sqlite")
	assert.ErrorContains(t, err, "unknown database provider")

	assert.Error(t, f.InitializeDatabase(context.Background(), false))
}

func TestInitDB_Globals(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeSQL(t, filepath.Join(root, "common", "001_schema.sql"), "CREATE TABLE flag (name TEXT PRIMARY KEY);\nINSERT INTO flag VALUES ('ready');")

	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = "sqlite"
	cfg.ConnectionConfig.DSN = filepath.Join(root, "global.db")
	cfg.DataInitConfig = DataInitConfig{AutoInitOnStartup: true, Filepath: root, Environment: "test"}

	db, err := InitDB(cfg)
	require.NoError(t, err)
	defer CloseDB()
	assert.Same(t, db, GetDB())
	require.NotNil(t, GetExecutor())

	name, err := GetExecutor().QueryString(ctx, "SELECT name FROM flag")
	require.NoError(t, err)
	assert.Equal(t, "ready", name)
	assert.True(t, GetHealthStatus(ctx).Healthy)
}
