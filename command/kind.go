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
	"reflect"
	"time"
)

// Kind is the closed set of parameter kinds understood by the marshaller.
type Kind int

const (
	KindString Kind = iota
	KindDate
	KindNumeric
	KindStringList
	KindDateList
	KindNumericList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindNumeric:
		return "numeric"
	case KindStringList:
		return "string list"
	case KindDateList:
		return "date list"
	case KindNumericList:
		return "numeric list"
	default:
		return "unknown"
	}
}

// IsList reports whether k describes an ordered sequence of scalars.
func (k Kind) IsList() bool {
	return k == KindStringList || k == KindDateList || k == KindNumericList
}

// Elem returns the element kind of a list kind, or k itself for scalars.
func (k Kind) Elem() Kind {
	switch k {
	case KindStringList:
		return KindString
	case KindDateList:
		return KindDate
	case KindNumericList:
		return KindNumeric
	default:
		return k
	}
}

func (k Kind) listOf() Kind {
	switch k {
	case KindString:
		return KindStringList
	case KindDate:
		return KindDateList
	default:
		return KindNumericList
	}
}

var timeType = reflect.TypeOf(time.Time{})

// kindOfType maps a Go type to a parameter kind. ok is false for types the
// marshaller cannot carry (maps, structs, channels, nested collections, []byte).
func kindOfType(t reflect.Type) (Kind, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return KindDate, true
	}
	if k, ok := scalarKind(t); ok {
		return k, true
	}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		elem := t.Elem()
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if t.Kind() == reflect.Slice && elem.Kind() == reflect.Uint8 {
			return 0, false
		}
		if elem == timeType {
			return KindDateList, true
		}
		if k, ok := scalarKind(elem); ok {
			return k.listOf(), true
		}
	}
	return 0, false
}

func scalarKind(t reflect.Type) (Kind, bool) {
	switch t.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumeric, true
	}
	return 0, false
}
