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

package types

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

var (
	_ BaseEnum = DBType(0)
	_ BaseEnum = DBStatus(0)
	_ BaseEnum = DBProvider(0)
)

// DBType is a database engine the connection factory can open.
type DBType int

const (
	DBTypeMySQL DBType = iota + 1
	DBTypePostgres
	DBTypeSQLite
	DBTypeSQLServer
)

var dbTypeNames = map[DBType][2]string{
	DBTypeMySQL:     {"mysql", "MySQL"},
	DBTypePostgres:  {"postgres", "PostgreSQL"},
	DBTypeSQLite:    {"sqlite", "SQLite"},
	DBTypeSQLServer: {"mssql", "Microsoft SQL Server"},
}

var dbTypeAliases = map[string]DBType{
	"mysql":      DBTypeMySQL,
	"postgres":   DBTypePostgres,
	"postgresql": DBTypePostgres,
	"sqlite":     DBTypeSQLite,
	"sqlite3":    DBTypeSQLite,
	"mssql":      DBTypeSQLServer,
	"sqlserver":  DBTypeSQLServer,
}

// ParseDBType resolves a configured type name or alias. Unknown names
// return an invalid DBType.
func ParseDBType(name string) DBType {
	return dbTypeAliases[strings.ToLower(strings.TrimSpace(name))]
}

// SupportedDBTypes lists the canonical type names.
func SupportedDBTypes() []string {
	return []string{"mysql", "postgres", "sqlite", "mssql"}
}

func (t DBType) IsValid() bool { _, ok := dbTypeNames[t]; return ok }

func (t DBType) Number() int {
	if !t.IsValid() {
		return IllegalValue
	}
	return int(t)
}

func (t DBType) Name() string {
	if n, ok := dbTypeNames[t]; ok {
		return n[0]
	}
	return IllegalName
}

func (t DBType) Desc() string {
	if n, ok := dbTypeNames[t]; ok {
		return n[1]
	}
	return IllegalDesc
}

func (t DBType) String() string { return t.Name() }

// DBStatus is the integer outcome reported by the status-returning batch
// wrappers.
type DBStatus int

const (
	DBStatusSuccess  DBStatus = 1
	DBStatusAbnormal DBStatus = -1
	DBStatusFailure  DBStatus = -2
)

func (s DBStatus) IsValid() bool {
	return s == DBStatusSuccess || s == DBStatusAbnormal || s == DBStatusFailure
}

func (s DBStatus) Number() int { return int(s) }

func (s DBStatus) Name() string {
	switch s {
	case DBStatusSuccess:
		return "success"
	case DBStatusAbnormal:
		return "abnormal"
	case DBStatusFailure:
		return "failure"
	}
	return IllegalName
}

func (s DBStatus) Desc() string {
	switch s {
	case DBStatusSuccess:
		return "executed and committed"
	case DBStatusAbnormal:
		return "execution raised an error and was rolled back"
	case DBStatusFailure:
		return "affected rows did not match and was rolled back"
	}
	return IllegalDesc
}

func (s DBStatus) String() string { return s.Name() }

// DBProvider is a logical connection name looked up in a connection string
// source.
type DBProvider int

const (
	ProviderMain DBProvider = iota
	ProviderInterface
	ProviderLog
	ProviderOther
)

var providerNames = [...][2]string{
	ProviderMain:      {"main", "primary application database"},
	ProviderInterface: {"interface", "integration/interface database"},
	ProviderLog:       {"log", "logging database"},
	ProviderOther:     {"other", "auxiliary database"},
}

func (p DBProvider) IsValid() bool { return p >= ProviderMain && p <= ProviderOther }

func (p DBProvider) Number() int {
	if !p.IsValid() {
		return IllegalValue
	}
	return int(p)
}

// Name is the key the provider's connection string is stored under.
func (p DBProvider) Name() string {
	if !p.IsValid() {
		return IllegalName
	}
	return providerNames[p][0]
}

func (p DBProvider) Desc() string {
	if !p.IsValid() {
		return IllegalDesc
	}
	return providerNames[p][1]
}

func (p DBProvider) String() string { return p.Name() }
