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
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Parameter is one named value bound to a Command. The value is kept in
// its serialized text form; Raw is nil only when the source value was nil.
type Parameter struct {
	Name string
	Kind Kind
	Raw  *string
}

// IsList reports whether the parameter carries a sequence of scalars.
func (p Parameter) IsList() bool { return p.Kind.IsList() }

// String builds a character string parameter.
func String(name, value string) Parameter {
	return Parameter{Name: name, Kind: KindString, Raw: &value}
}

// Date builds a date/time parameter.
func Date(name string, value time.Time) Parameter {
	s := value.Format(time.RFC3339Nano)
	return Parameter{Name: name, Kind: KindDate, Raw: &s}
}

// Numeric builds a numeric parameter.
func Numeric(name string, value float64) Parameter {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	return Parameter{Name: name, Kind: KindNumeric, Raw: &s}
}

// Null builds a parameter of the given kind whose value is SQL NULL.
func Null(name string, kind Kind) Parameter {
	return Parameter{Name: name, Kind: kind}
}

// List builds a list parameter from a slice or array. def is used as the
// single item when values is empty and must not be nil.
func List(name string, values any, def any) (Parameter, error) {
	if def == nil {
		return Parameter{}, fmt.Errorf("%w: %s", ErrMissingDefault, name)
	}
	p, err := newParameter(name, values, def)
	if err != nil {
		return Parameter{}, err
	}
	if !p.IsList() {
		return Parameter{}, newErrUnsupportedType(name, values)
	}
	return p, nil
}

// NewParameter infers the kind of value and serializes it. Empty lists are
// kept empty; use List to supply a default item.
func NewParameter(name string, value any) (Parameter, error) {
	return newParameter(name, value, nil)
}

func newParameter(name string, value any, def any) (Parameter, error) {
	if value == nil {
		return Parameter{Name: name, Kind: KindString}, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		kind, ok := kindOfType(rv.Type())
		if !ok {
			kind = KindString
		}
		return Parameter{Name: name, Kind: kind}, nil
	}
	if valuer, ok := value.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return Parameter{}, fmt.Errorf("command: parameter %s: %w", name, err)
		}
		if b, ok := dv.([]byte); ok {
			dv = string(b)
		}
		return newParameter(name, dv, def)
	}

	kind, ok := kindOfType(rv.Type())
	if !ok {
		return Parameter{}, newErrUnsupportedType(name, value)
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Parameter{Name: name, Kind: kind}, nil
		}
		rv = rv.Elem()
	}

	p := Parameter{Name: name, Kind: kind}
	if !kind.IsList() {
		s := formatScalar(rv)
		p.Raw = &s
		return p, nil
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() && def == nil {
		return p, nil
	}

	items := make([]any, 0, rv.Len()+1)
	for i := 0; i < rv.Len(); i++ {
		item, err := listItem(kind.Elem(), rv.Index(i))
		if err != nil {
			return Parameter{}, fmt.Errorf("%w: %s[%d]: %v", ErrUnsupportedType, name, i, err)
		}
		items = append(items, item)
	}
	if len(items) == 0 && def != nil {
		item, err := listItem(kind.Elem(), reflect.ValueOf(def))
		if err != nil {
			return Parameter{}, fmt.Errorf("%w: default for %s: %v", ErrUnsupportedType, name, err)
		}
		items = append(items, item)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return Parameter{}, fmt.Errorf("command: parameter %s: %w", name, err)
	}
	s := string(b)
	p.Raw = &s
	return p, nil
}

func formatScalar(rv reflect.Value) string {
	if rv.Type() == timeType {
		return rv.Interface().(time.Time).Format(time.RFC3339Nano)
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		if rv.Bool() {
			return "1"
		}
		return "0"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	default:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	}
}

// listItem converts one list element to the value written into the JSON array.
func listItem(elem Kind, rv reflect.Value) (any, error) {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, nil
	}
	switch elem {
	case KindString:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case KindDate:
		if rv.Type() == timeType {
			return rv.Interface().(time.Time), nil
		}
		if rv.Kind() == reflect.String {
			return parseTime(rv.String())
		}
	case KindNumeric:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), nil
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Bool:
			if rv.Bool() {
				return float64(1), nil
			}
			return float64(0), nil
		}
	}
	return nil, fmt.Errorf("%s cannot hold %s", elem, rv.Type())
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

func parseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
