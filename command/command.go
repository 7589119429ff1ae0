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
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ListParamName is the placeholder every list parameter is renamed to.
// A command carries at most one list, so the name is fixed.
const ListParamName = "ListValues"

// Binder is implemented by types that enumerate their own parameters
// instead of being inspected through reflection.
type Binder interface {
	Parameters() ([]Parameter, error)
}

// Command is a SQL text with named `:name` placeholders and the values
// bound to them.
type Command struct {
	Text   string
	Params []Parameter

	// listSource is the caller's name for the list parameter.
	listSource string
}

// NewCommand trims sql and strips one trailing statement terminator.
func NewCommand(sql string) *Command {
	return &Command{Text: TrimTerminator(sql)}
}

// NewCommandFromObject builds a command whose parameters are the fields of
// obj. obj may be a Binder, a struct or pointer to struct, or a
// map[string]any. Collection-typed fields are rejected; use SetParameter
// with a default for lists.
func NewCommandFromObject(sql string, obj any) (*Command, error) {
	if isNil(obj) {
		return nil, fmt.Errorf("%w: object is nil", ErrInvalidArgument)
	}
	cmd := NewCommand(sql)
	if b, ok := obj.(Binder); ok {
		params, err := b.Parameters()
		if err != nil {
			return nil, err
		}
		if err := cmd.Bind(params...); err != nil {
			return nil, err
		}
		return cmd, nil
	}
	fields, err := objectFields(obj)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.value != nil {
			if k, ok := kindOfType(reflect.TypeOf(f.value)); ok && k.IsList() {
				return nil, newErrUnsupportedType(f.name, f.value)
			}
		}
		p, err := newParameter(f.name, f.value, nil)
		if err != nil {
			return nil, err
		}
		if err := cmd.Bind(p); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// SetParameter binds value to name. Binding a name twice replaces the
// earlier value in place. A new list value needs a default item, used when
// the list is empty, and is renamed to ListParamName together with its
// placeholders in Text. Rebinding a bound list does not.
func (c *Command) SetParameter(name string, value any, defaultValue ...any) error {
	var def any
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	p, err := newParameter(name, value, def)
	if err != nil {
		return err
	}
	if p.IsList() && def == nil && c.indexOf(name) < 0 {
		return fmt.Errorf("%w: %s", ErrMissingDefault, name)
	}
	return c.Bind(p)
}

// Bind adds already-built parameters with the same rules as SetParameter.
func (c *Command) Bind(params ...Parameter) error {
	for _, p := range params {
		if err := c.bind(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Command) bind(p Parameter) error {
	if p.Name == "" {
		return fmt.Errorf("%w: parameter name is empty", ErrInvalidArgument)
	}
	if i := c.indexOf(p.Name); i >= 0 {
		if c.Params[i].IsList() != p.IsList() {
			return fmt.Errorf("%w: %s cannot change between list and scalar", ErrInvalidArgument, p.Name)
		}
		p.Name = c.Params[i].Name
		c.Params[i] = p
		return nil
	}
	if p.IsList() {
		if c.listSource != "" {
			return fmt.Errorf("%w: %s and %s", ErrMultipleListParameters, c.listSource, p.Name)
		}
		source := p.Name
		c.Text = rewriteTokens(c.Text, func(name string) (string, bool) {
			return ":" + ListParamName, name == source
		})
		c.listSource = source
		p.Name = ListParamName
	}
	c.Params = append(c.Params, p)
	return nil
}

// indexOf finds a parameter by its bound name or, for the list, by the
// caller's original name.
func (c *Command) indexOf(name string) int {
	for i, p := range c.Params {
		if p.Name == name || (p.IsList() && c.listSource == name) {
			return i
		}
	}
	return -1
}

// Parameter returns the parameter bound under name.
func (c *Command) Parameter(name string) (Parameter, bool) {
	if i := c.indexOf(name); i >= 0 {
		return c.Params[i], true
	}
	return Parameter{}, false
}

// HasList reports whether a list parameter is bound.
func (c *Command) HasList() bool { return c.listSource != "" }

func (c *Command) String() string { return c.Text }

// TrimTerminator trims sql and removes one trailing `;` or `；`.
func TrimTerminator(sql string) string {
	s := strings.TrimSpace(sql)
	if t, ok := strings.CutSuffix(s, ";"); ok {
		return strings.TrimSpace(t)
	}
	if t, ok := strings.CutSuffix(s, "；"); ok {
		return strings.TrimSpace(t)
	}
	return s
}

type field struct {
	name  string
	value any
}

// objectFields lists the bindable fields of a struct, pointer to struct or
// map with string keys. Map keys come back sorted.
func objectFields(obj any) ([]field, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: object is nil", ErrInvalidArgument)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		if rv.Type() == timeType {
			break
		}
		var out []field
		structFields(rv, &out)
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		out := make([]field, 0, len(keys))
		for _, k := range keys {
			v := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
			out = append(out, field{name: k, value: v.Interface()})
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T is not a struct or map", ErrInvalidArgument, obj)
}

func structFields(rv reflect.Value, out *[]field) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, skip := fieldName(sf)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if sf.Anonymous && sf.Tag.Get("db") == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			if ft.Kind() == reflect.Struct && ft != timeType {
				structFields(fv, out)
				continue
			}
		}
		*out = append(*out, field{name: name, value: fv.Interface()})
	}
}

func fieldName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("db")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return sf.Name, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
