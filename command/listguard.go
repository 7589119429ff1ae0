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
)

// NormalizeListParameters gives every empty list field of obj a single
// sentinel item so that `IN (...)` never receives an empty list. String
// lists get "" and integer lists get 0. Empty lists of structs, pointers,
// maps, interfaces or nested collections fail with
// ErrUnsupportedCollectionType. Other lists are left as they are.
//
// obj must be a pointer to a struct or a map with string keys.
func NormalizeListParameters(obj any) error {
	if isNil(obj) {
		return ErrNullArgument
	}
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Map:
		return normalizeMap(rv)
	case reflect.Pointer:
		elem := rv.Elem()
		switch elem.Kind() {
		case reflect.Struct:
			return normalizeStruct(elem)
		case reflect.Map:
			if elem.IsNil() {
				return ErrNullArgument
			}
			return normalizeMap(elem)
		}
	case reflect.Struct:
		return fmt.Errorf("%w: %T must be passed by pointer", ErrInvalidArgument, obj)
	}
	return fmt.Errorf("%w: %T is not a struct or map", ErrInvalidArgument, obj)
}

func normalizeStruct(rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if sf.Anonymous {
			if fv.Kind() == reflect.Pointer && !fv.IsNil() && fv.Elem().Kind() == reflect.Struct {
				if err := normalizeStruct(fv.Elem()); err != nil {
					return err
				}
				continue
			}
			if fv.Kind() == reflect.Struct && fv.Type() != timeType {
				if err := normalizeStruct(fv); err != nil {
					return err
				}
				continue
			}
		}
		if fv.Kind() != reflect.Slice || !fv.CanSet() {
			continue
		}
		repl, changed, err := normalizeSlice(sf.Name, fv)
		if err != nil {
			return err
		}
		if changed {
			fv.Set(repl)
		}
	}
	return nil
}

func normalizeMap(rv reflect.Value) error {
	if rv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("%w: map keys must be strings", ErrInvalidArgument)
	}
	for _, k := range rv.MapKeys() {
		v := rv.MapIndex(k)
		for v.Kind() == reflect.Interface && !v.IsNil() {
			v = v.Elem()
		}
		if v.Kind() != reflect.Slice {
			continue
		}
		repl, changed, err := normalizeSlice(k.String(), v)
		if err != nil {
			return err
		}
		if changed {
			rv.SetMapIndex(k, repl)
		}
	}
	return nil
}

// normalizeSlice returns the replacement for an empty slice, if any.
func normalizeSlice(name string, s reflect.Value) (reflect.Value, bool, error) {
	if s.Len() > 0 {
		return s, false, nil
	}
	elem := s.Type().Elem()
	switch elem.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out := reflect.MakeSlice(s.Type(), 0, 1)
		return reflect.Append(out, reflect.Zero(elem)), true, nil
	case reflect.Struct:
		if elem == timeType {
			return s, false, nil
		}
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice, reflect.Array, reflect.Chan, reflect.Func:
	default:
		return s, false, nil
	}
	return s, false, fmt.Errorf("%w: %s is an empty %s", ErrUnsupportedCollectionType, name, s.Type())
}

// normalizable returns obj in a form NormalizeListParameters accepts,
// copying structs passed by value so the caller's value is not modified.
func normalizable(obj any) (any, error) {
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Struct:
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		return ptr.Interface(), nil
	case reflect.Map:
		return obj, nil
	case reflect.Pointer:
		if k := rv.Elem().Kind(); k == reflect.Struct || k == reflect.Map {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%w: %T is not a struct or map", ErrInvalidArgument, obj)
}
