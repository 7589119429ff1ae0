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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Native is a parameter converted to the value handed to the driver.
// Scalars are string, time.Time, float64 or nil; lists are []string,
// []time.Time or []float64.
type Native struct {
	Name  string
	Kind  Kind
	Value any
}

// Marshaled is a command ready for execution.
type Marshaled struct {
	Text   string
	Params []Native

	index map[string]int
}

// unboundMarkers are what an unbound placeholder looks like once bound
// placeholders are erased, whitespace removed and the text upper-cased.
var unboundMarkers = []string{"=:", "IN:", "IN(:"}

// Marshal checks that every placeholder the text compares against is
// bound and converts each parameter to its native value.
func Marshal(cmd *Command) (*Marshaled, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: command is nil", ErrInvalidArgument)
	}
	m := &Marshaled{
		Text:   cmd.Text,
		Params: make([]Native, 0, len(cmd.Params)),
		index:  make(map[string]int, len(cmd.Params)),
	}
	for _, p := range cmd.Params {
		m.index[p.Name] = len(m.Params)
		m.Params = append(m.Params, Native{Name: p.Name, Kind: p.Kind})
	}
	if err := checkBound(m.Text, m.index); err != nil {
		return nil, err
	}
	for i, p := range cmd.Params {
		v, err := nativeValue(p)
		if err != nil {
			return nil, err
		}
		m.Params[i].Value = v
	}
	return m, nil
}

func checkBound(text string, bound map[string]int) error {
	erased := rewriteTokens(stripLiterals(text), func(name string) (string, bool) {
		_, ok := bound[name]
		return name, ok
	})
	compact := strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, erased))
	for _, marker := range unboundMarkers {
		if strings.Contains(compact, marker) {
			return newErrUnboundParameter(firstUnbound(text, bound))
		}
	}
	return nil
}

func firstUnbound(text string, bound map[string]int) string {
	for _, t := range scanTokens(text) {
		if _, ok := bound[t.name]; !ok {
			return t.name
		}
	}
	return "?"
}

func nativeValue(p Parameter) (any, error) {
	if p.Kind.IsList() {
		return decodeList(p)
	}
	if p.Raw == nil || *p.Raw == "" {
		return nil, nil
	}
	raw := *p.Raw
	switch p.Kind {
	case KindString:
		return raw, nil
	case KindDate:
		t, err := parseTime(strings.TrimSpace(raw))
		if err != nil {
			return nil, &MarshalError{Name: p.Name, Kind: p.Kind, Raw: raw, Err: err}
		}
		return t, nil
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, &MarshalError{Name: p.Name, Kind: p.Kind, Raw: raw, Err: err}
		}
		return f, nil
	}
}

func decodeList(p Parameter) (any, error) {
	var (
		out any
		err error
	)
	switch p.Kind {
	case KindStringList:
		var v []string
		if p.Raw != nil && *p.Raw != "" {
			err = json.Unmarshal([]byte(*p.Raw), &v)
		}
		out = v
	case KindDateList:
		var v []time.Time
		if p.Raw != nil && *p.Raw != "" {
			err = json.Unmarshal([]byte(*p.Raw), &v)
		}
		out = v
	default:
		var v []float64
		if p.Raw != nil && *p.Raw != "" {
			err = json.Unmarshal([]byte(*p.Raw), &v)
		}
		out = v
	}
	if err != nil {
		return nil, &MarshalError{Name: p.Name, Kind: p.Kind, Raw: *p.Raw, Err: err}
	}
	return out, nil
}

// Value returns the native value bound under name.
func (m *Marshaled) Value(name string) (any, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.Params[i].Value, true
}

// Positional rewrites bound placeholders into `?` in order of appearance
// and returns the matching arguments. A list expands to one `?` per item,
// parenthesised unless the placeholder already sits inside parentheses;
// an empty list becomes NULL. When there are arguments, every `?` already
// in the text is escaped as `\?` so bun does not take it for a bind slot.
func (m *Marshaled) Positional() (string, []any) {
	toks := scanTokens(m.Text)
	if len(toks) == 0 || len(m.index) == 0 {
		return m.Text, nil
	}
	query, args := m.positional(toks, true)
	if len(args) == 0 {
		// bun leaves the text alone without arguments, escapes included.
		query, _ = m.positional(toks, false)
	}
	return query, args
}

func (m *Marshaled) positional(toks []token, escape bool) (string, []any) {
	var b strings.Builder
	b.Grow(len(m.Text) + 8)
	text := func(s string) {
		if escape {
			s = strings.ReplaceAll(s, "?", `\?`)
		}
		b.WriteString(s)
	}
	var args []any
	last := 0
	for _, t := range toks {
		i, ok := m.index[t.name]
		if !ok {
			continue
		}
		text(m.Text[last:t.start])
		last = t.end
		p := m.Params[i]
		if !p.Kind.IsList() {
			b.WriteByte('?')
			args = append(args, p.Value)
			continue
		}
		items := listItems(p.Value)
		wrapped := enclosed(m.Text, t)
		if !wrapped {
			b.WriteByte('(')
		}
		if len(items) == 0 {
			b.WriteString("NULL")
		}
		for j, item := range items {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('?')
			args = append(args, item)
		}
		if !wrapped {
			b.WriteByte(')')
		}
	}
	text(m.Text[last:])
	return b.String(), args
}

func listItems(v any) []any {
	var out []any
	switch list := v.(type) {
	case []string:
		for _, s := range list {
			out = append(out, s)
		}
	case []time.Time:
		for _, t := range list {
			out = append(out, t)
		}
	case []float64:
		for _, f := range list {
			out = append(out, f)
		}
	}
	return out
}

// enclosed reports whether t is the only thing between a pair of parentheses.
func enclosed(text string, t token) bool {
	before := strings.TrimRightFunc(text[:t.start], unicode.IsSpace)
	after := strings.TrimLeftFunc(text[t.end:], unicode.IsSpace)
	return strings.HasSuffix(before, "(") && strings.HasPrefix(after, ")")
}

// Prepare binds every field of obj by its own name, lists included, after
// running NormalizeListParameters on it, and marshals the result. A struct
// passed by value is normalised on a copy. obj may be nil for SQL without
// parameters.
func Prepare(sql string, obj any) (*Marshaled, error) {
	cmd := &Command{Text: strings.TrimSpace(sql)}
	if isNil(obj) {
		return Marshal(cmd)
	}
	if b, ok := obj.(Binder); ok {
		params, err := b.Parameters()
		if err != nil {
			return nil, err
		}
		for _, p := range params {
			if err := appendUnique(cmd, p); err != nil {
				return nil, err
			}
		}
		return Marshal(cmd)
	}
	target, err := normalizable(obj)
	if err != nil {
		return nil, err
	}
	if err := NormalizeListParameters(target); err != nil {
		return nil, err
	}
	fields, err := objectFields(target)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		p, err := newParameter(f.name, f.value, nil)
		if err != nil {
			return nil, err
		}
		if err := appendUnique(cmd, p); err != nil {
			return nil, err
		}
	}
	return Marshal(cmd)
}

// appendUnique adds p under its own name. Lists are not renamed, so Prepare
// may bind several of them.
func appendUnique(cmd *Command, p Parameter) error {
	if p.Name == "" {
		return fmt.Errorf("%w: parameter name is empty", ErrInvalidArgument)
	}
	for _, q := range cmd.Params {
		if q.Name == p.Name {
			return fmt.Errorf("%w: duplicate parameter %s", ErrInvalidArgument, p.Name)
		}
	}
	cmd.Params = append(cmd.Params, p)
	return nil
}
