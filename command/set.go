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
	"iter"
	"strings"
)

// Set is an ordered batch of commands executed together.
type Set struct {
	commands []*Command
}

// NewSet returns a set holding cmds in order.
func NewSet(cmds ...*Command) *Set {
	s := &Set{}
	for _, c := range cmds {
		if c != nil {
			s.commands = append(s.commands, c)
		}
	}
	return s
}

// Add appends a parameterless command. The trailing terminator is stripped
// unless keepSemicolon is set.
func (s *Set) Add(sql string, keepSemicolon bool) *Command {
	cmd := &Command{Text: strings.TrimSpace(sql)}
	if !keepSemicolon {
		cmd.Text = TrimTerminator(cmd.Text)
	}
	s.commands = append(s.commands, cmd)
	return cmd
}

// AddCommand appends cmd, stripping its trailing terminator unless
// keepSemicolon is set.
func (s *Set) AddCommand(cmd *Command, keepSemicolon bool) error {
	if cmd == nil {
		return fmt.Errorf("%w: command is nil", ErrInvalidArgument)
	}
	if !keepSemicolon {
		cmd.Text = TrimTerminator(cmd.Text)
	}
	s.commands = append(s.commands, cmd)
	return nil
}

// AddRange appends every command of other.
func (s *Set) AddRange(other *Set) {
	if other == nil {
		return
	}
	s.commands = append(s.commands, other.commands...)
}

// Len returns the number of commands.
func (s *Set) Len() int { return len(s.commands) }

// Commands returns the commands in insertion order.
func (s *Set) Commands() []*Command { return s.commands }

// All iterates the commands in insertion order.
func (s *Set) All() iter.Seq2[int, *Command] {
	return func(yield func(int, *Command) bool) {
		for i, c := range s.commands {
			if !yield(i, c) {
				return
			}
		}
	}
}

// Clear removes every command.
func (s *Set) Clear() { s.commands = nil }

// String concatenates every command text, each followed by a terminator.
func (s *Set) String() string {
	var b strings.Builder
	for _, c := range s.commands {
		b.WriteString(TrimTerminator(c.Text))
		b.WriteString(";")
	}
	return b.String()
}
