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
	"fmt"
)

var (
	// ErrInvalidArgument is returned for a nil command or an object that cannot act as a parameter source.
	ErrInvalidArgument = errors.New("command: invalid argument")
	// ErrNullArgument is returned by NormalizeListParameters for a nil object.
	ErrNullArgument = errors.New("command: null argument")
	// ErrUnsupportedType is returned when a value has no parameter kind.
	ErrUnsupportedType = errors.New("command: unsupported parameter type")
	// ErrUnsupportedCollectionType is returned for empty lists whose element type has no sentinel.
	ErrUnsupportedCollectionType = errors.New("command: unsupported collection type")
	// ErrMissingDefault is returned when a list parameter is bound without a default item.
	ErrMissingDefault = errors.New("command: list parameter requires a default value")
	// ErrMultipleListParameters is returned when a second list is bound to one command.
	ErrMultipleListParameters = errors.New("command: only one list parameter is allowed per command")
	// ErrUnboundParameter is returned when the SQL text references a parameter nobody bound.
	ErrUnboundParameter = errors.New("command: unbound parameter")
	// ErrMarshal matches every *MarshalError.
	ErrMarshal = errors.New("command: marshal failure")
)

// MarshalError reports a raw parameter text that could not be converted
// to its declared kind.
type MarshalError struct {
	Name string
	Kind Kind
	Raw  string
	Err  error
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("command: cannot convert parameter %q (%s) from %q: %v", e.Name, e.Kind, e.Raw, e.Err)
}

func (e *MarshalError) Unwrap() error { return e.Err }

func (e *MarshalError) Is(target error) bool { return target == ErrMarshal }

func newErrUnsupportedType(name string, v any) error {
	return fmt.Errorf("%w: %s is %T", ErrUnsupportedType, name, v)
}

func newErrUnboundParameter(name string) error {
	return fmt.Errorf("%w: :%s", ErrUnboundParameter, name)
}
