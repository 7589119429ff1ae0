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

package command

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMarshal_Guard(t *testing.T) {
	cases := []struct {
		name    string
		sql     string
		params  []Parameter
		wantErr error
	}{
		{name: "no params no placeholders", sql: "SELECT 1"},
		{name: "unbound equality", sql: "SELECT * FROM t WHERE a = :a", wantErr: ErrUnboundParameter},
		{name: "unbound in", sql: "SELECT * FROM t WHERE a in :a", wantErr: ErrUnboundParameter},
		{name: "unbound in parens", sql: "SELECT * FROM t WHERE a IN ( :a )", wantErr: ErrUnboundParameter},
		{name: "bound", sql: "SELECT * FROM t WHERE a = :a", params: []Parameter{String("a", "x")}},
		{
			name:    "one of two bound",
			sql:     "SELECT * FROM t WHERE a = :a AND b = :b",
			params:  []Parameter{String("a", "x")},
			wantErr: ErrUnboundParameter,
		},
		{
			name:    "prefix of bound name is not bound",
			sql:     "SELECT * FROM t WHERE a = :a AND b = :ab",
			params:  []Parameter{String("a", "x")},
			wantErr: ErrUnboundParameter,
		},
		{name: "placeholder inside literal", sql: "SELECT * FROM t WHERE a = ':a'"},
		{name: "cast", sql: "SELECT a::text FROM t"},
		{
			name:   "literal followed by cast",
			sql:    "SELECT * FROM t WHERE d = '2020-01-01'::date AND id = :id",
			params: []Parameter{Numeric("id", 1)},
		},
		{
			name:    "literal cast does not hide unbound",
			sql:     "SELECT * FROM t WHERE d = '2020-01-01'::date AND id = :id",
			wantErr: ErrUnboundParameter,
		},
		{name: "unbound outside comparisons", sql: "SELECT :a FROM t"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Marshal(&Command{Text: c.sql, Params: c.params})
			if c.wantErr != nil {
				assert.ErrorIs(t, err, c.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMarshal_Coercion(t *testing.T) {
	cases := []struct {
		name      string
		param     Parameter
		wantValue any
		wantErr   error
	}{
		{name: "string", param: String("p", "abc"), wantValue: "abc"},
		{name: "empty string is null", param: String("p", ""), wantValue: nil},
		{name: "nil string", param: Null("p", KindString), wantValue: nil},
		{
			name:      "date",
			param:     Parameter{Name: "p", Kind: KindDate, Raw: strPtr("2024-05-06 07:08:09")},
			wantValue: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		},
		{name: "empty date is null", param: Parameter{Name: "p", Kind: KindDate, Raw: strPtr("")}, wantValue: nil},
		{name: "bad date", param: Parameter{Name: "p", Kind: KindDate, Raw: strPtr("yesterday")}, wantErr: ErrMarshal},
		{name: "numeric", param: Parameter{Name: "p", Kind: KindNumeric, Raw: strPtr("12.5")}, wantValue: 12.5},
		{name: "bad numeric", param: Parameter{Name: "p", Kind: KindNumeric, Raw: strPtr("12,5")}, wantErr: ErrMarshal},
		{name: "nil numeric", param: Null("p", KindNumeric), wantValue: nil},
		{
			name:      "string list",
			param:     Parameter{Name: "p", Kind: KindStringList, Raw: strPtr(`["a","b"]`)},
			wantValue: []string{"a", "b"},
		},
		{
			name:      "numeric list",
			param:     Parameter{Name: "p", Kind: KindNumericList, Raw: strPtr(`[1,2.5]`)},
			wantValue: []float64{1, 2.5},
		},
		{
			name:      "date list",
			param:     Parameter{Name: "p", Kind: KindDateList, Raw: strPtr(`["2024-01-02T00:00:00Z"]`)},
			wantValue: []time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		},
		{name: "nil list", param: Null("p", KindStringList), wantValue: []string(nil)},
		{name: "bad list", param: Parameter{Name: "p", Kind: KindNumericList, Raw: strPtr(`[1,`)}, wantErr: ErrMarshal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, err := Marshal(&Command{Text: "SELECT :p", Params: []Parameter{c.param}})
			if c.wantErr != nil {
				assert.ErrorIs(t, err, c.wantErr)
				var me *MarshalError
				require.True(t, errors.As(err, &me))
				assert.Equal(t, "p", me.Name)
				return
			}
			require.NoError(t, err)
			v, ok := m.Value("p")
			require.True(t, ok)
			assert.Equal(t, c.wantValue, v)
		})
	}
}

func TestMarshal_Nil(t *testing.T) {
	_, err := Marshal(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMarshaled_Positional(t *testing.T) {
	cases := []struct {
		name     string
		build    func() *Command
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "no params",
			build: func() *Command {
				return NewCommand("SELECT 1")
			},
			wantSQL: "SELECT 1",
		},
		{
			name: "scalars in order of appearance",
			build: func() *Command {
				c := NewCommand("UPDATE t SET a = :a, b = :b WHERE a <> :a")
				_ = c.Bind(String("b", "x"), Numeric("a", 1))
				return c
			},
			wantSQL:  "UPDATE t SET a = ?, b = ? WHERE a <> ?",
			wantArgs: []any{float64(1), "x", float64(1)},
		},
		{
			name: "list inside parentheses",
			build: func() *Command {
				c := NewCommand("SELECT * FROM t WHERE code IN ( :codes )")
				_ = c.SetParameter("codes", []string{"a", "b"}, "")
				return c
			},
			wantSQL:  "SELECT * FROM t WHERE code IN ( ?, ? )",
			wantArgs: []any{"a", "b"},
		},
		{
			name: "list without parentheses",
			build: func() *Command {
				c := NewCommand("SELECT * FROM t WHERE id IN :ids")
				_ = c.SetParameter("ids", []int{4}, 0)
				return c
			},
			wantSQL:  "SELECT * FROM t WHERE id IN (?)",
			wantArgs: []any{float64(4)},
		},
		{
			name: "nil list",
			build: func() *Command {
				c := NewCommand("SELECT * FROM t WHERE id IN (:ids)")
				_ = c.Bind(Null("ids", KindNumericList))
				return c
			},
			wantSQL: "SELECT * FROM t WHERE id IN (NULL)",
		},
		{
			name: "cast and literal untouched",
			build: func() *Command {
				c := NewCommand("SELECT ':a', :a::text")
				_ = c.Bind(String("a", "v"))
				return c
			},
			wantSQL:  "SELECT ':a', ?::text",
			wantArgs: []any{"v"},
		},
		{
			name: "question mark escaped",
			build: func() *Command {
				c := NewCommand("UPDATE t SET note = 'why?' WHERE id = :id")
				_ = c.Bind(Numeric("id", 2))
				return c
			},
			wantSQL:  `UPDATE t SET note = 'why\?' WHERE id = ?`,
			wantArgs: []any{float64(2)},
		},
		{
			name: "question mark kept without arguments",
			build: func() *Command {
				c := NewCommand("SELECT 'why?' FROM t WHERE id IN (:ids)")
				_ = c.Bind(Null("ids", KindNumericList))
				return c
			},
			wantSQL: "SELECT 'why?' FROM t WHERE id IN (NULL)",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, err := Marshal(c.build())
			require.NoError(t, err)
			sql, args := m.Positional()
			assert.Equal(t, c.wantSQL, sql)
			assert.Equal(t, c.wantArgs, args)
		})
	}
}

func TestPrepare(t *testing.T) {
	type filter struct {
		Status string
		IDs    []int64
	}
	f := filter{Status: "open"}

	m, err := Prepare("SELECT * FROM t WHERE status = :Status AND id IN :IDs", f)
	require.NoError(t, err)
	sql, args := m.Positional()
	assert.Equal(t, "SELECT * FROM t WHERE status = ? AND id IN (?)", sql)
	assert.Equal(t, []any{"open", float64(0)}, args)
	assert.Nil(t, f.IDs, "value argument is normalised on a copy")

	m, err = Prepare("SELECT * FROM t WHERE id IN (:ids)", map[string]any{"ids": []string{"a", "b"}})
	require.NoError(t, err)
	sql, args = m.Positional()
	assert.Equal(t, "SELECT * FROM t WHERE id IN (?, ?)", sql)
	assert.Equal(t, []any{"a", "b"}, args)

	_, err = Prepare("SELECT * FROM t WHERE id = :id", nil)
	assert.ErrorIs(t, err, ErrUnboundParameter)

	_, err = Prepare("SELECT 1", 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	type tagged struct {
		Code  string `db:"code"`
		Other string `db:"code"`
	}
	_, err = Prepare("SELECT * FROM t WHERE code = :code", tagged{Code: "a", Other: "b"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestScan(t *testing.T) {
	toks := scanTokens("SELECT :a, ':b', \":c\", a::int, :d_1 -- :e\n/* :f */ :g")
	var names []string
	for _, tok := range toks {
		names = append(names, tok.name)
	}
	assert.Equal(t, []string{"a", "d_1", "g"}, names)
	assert.Equal(t, toks, scanTokens("SELECT :a, ':b', \":c\", a::int, :d_1 -- :e\n/* :f */ :g"))
}
