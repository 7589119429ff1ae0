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
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConnectionStringSource resolves a logical connection name to a
// connection string. Implementations return an error wrapping
// ErrConnectionStringMissing when the name is unknown.
type ConnectionStringSource interface {
	GetConnectionString(name string) (string, error)
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrConnectionStringMissing, name)
}

// MapSource serves connection strings from memory.
type MapSource map[string]string

func (m MapSource) GetConnectionString(name string) (string, error) {
	if s, ok := m[name]; ok && strings.TrimSpace(s) != "" {
		return s, nil
	}
	return "", missing(name)
}

// EnvSource reads DB_CONN_<NAME> environment variables, or
// <Prefix><NAME> when Prefix is set. NAME is upper-cased.
type EnvSource struct {
	Prefix string
}

func (s EnvSource) key(name string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "DB_CONN_"
	}
	return prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func (s EnvSource) GetConnectionString(name string) (string, error) {
	if v, ok := os.LookupEnv(s.key(name)); ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	return "", missing(name)
}

// YAMLSource serves the `connection_strings` map of a YAML file:
//
//	connection_strings:
//	  main: "postgres://..."
//	  log: "sqlserver://..."
type YAMLSource struct {
	strings MapSource
}

// NewYAMLSource reads path once.
func NewYAMLSource(path string) (*YAMLSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read connection strings file: %w", err)
	}
	var doc struct {
		ConnectionStrings map[string]string `yaml:"connection_strings"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse connection strings file: %w", err)
	}
	return &YAMLSource{strings: doc.ConnectionStrings}, nil
}

func (s *YAMLSource) GetConnectionString(name string) (string, error) {
	return s.strings.GetConnectionString(name)
}

// ChainSource asks each source in order and returns the first hit. Errors
// other than a missing entry stop the lookup.
type ChainSource []ConnectionStringSource

func (c ChainSource) GetConnectionString(name string) (string, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		s, err := src.GetConnectionString(name)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrConnectionStringMissing) {
			return "", err
		}
	}
	return "", missing(name)
}
