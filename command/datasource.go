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
	"io/fs"

	"gopkg.in/yaml.v3"
)

// FallbackSuffix is appended to the type name to locate a fallback resource.
const FallbackSuffix = ".datamap.yaml"

// For is a named predicate-driven query.
type For struct {
	Name    string  `yaml:"name"`
	Command Command `yaml:"command"`
}

// DataSourceMap bundles the compiled commands of one mapped type.
type DataSourceMap struct {
	Type      string   `yaml:"type"`
	Insert    *Command `yaml:"insert,omitempty"`
	Update    *Command `yaml:"update,omitempty"`
	Delete    *Command `yaml:"delete,omitempty"`
	SelectAll *Command `yaml:"select_all,omitempty"`
	SelectOne *Command `yaml:"select_one,omitempty"`
	SelectNot *Command `yaml:"select_not,omitempty"`
	SelectFor []For    `yaml:"select_for,omitempty"`
}

// For looks up a named SelectFor command.
func (m *DataSourceMap) For(name string) (*Command, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.SelectFor {
		if m.SelectFor[i].Name == name {
			return &m.SelectFor[i].Command, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of m.
func (m *DataSourceMap) Clone() *DataSourceMap {
	if m == nil {
		return nil
	}
	out := &DataSourceMap{
		Type:      m.Type,
		Insert:    m.Insert.Clone(),
		Update:    m.Update.Clone(),
		Delete:    m.Delete.Clone(),
		SelectAll: m.SelectAll.Clone(),
		SelectOne: m.SelectOne.Clone(),
		SelectNot: m.SelectNot.Clone(),
	}
	if m.SelectFor != nil {
		out.SelectFor = make([]For, len(m.SelectFor))
		for i, f := range m.SelectFor {
			out.SelectFor[i] = For{Name: f.Name, Command: *f.Command.Clone()}
		}
	}
	return out
}

// Merge adds the SelectFor entries of fallback whose names are not already
// present. Compiled entries take precedence.
func (m *DataSourceMap) Merge(fallback *DataSourceMap) {
	if m == nil || fallback == nil {
		return
	}
	for _, f := range fallback.SelectFor {
		if _, ok := m.For(f.Name); ok {
			continue
		}
		m.SelectFor = append(m.SelectFor, f)
	}
}

// LoadFallback reads the packaged fallback map of typeName from fsys. A
// missing resource is not an error and yields nil.
func LoadFallback(fsys fs.FS, typeName string) (*DataSourceMap, error) {
	if fsys == nil {
		return nil, nil
	}
	data, err := fs.ReadFile(fsys, typeName+FallbackSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read fallback map for %s: %w", typeName, err)
	}
	var m DataSourceMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse fallback map for %s: %w", typeName, err)
	}
	if m.Type == "" {
		m.Type = typeName
	}
	return &m, nil
}

// Marshal serializes the map in the fallback resource format.
func (m *DataSourceMap) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}
