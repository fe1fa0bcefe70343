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

package mapping

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tomoncle/datamap/fault"
)

// TableMapping describes the table or view a type is stored in.
type TableMapping struct {
	Name   string
	Schema string
	IsView bool
	// Type is the mapped Go struct type. It may be nil for mappings that are
	// only used to compile commands.
	Type reflect.Type
}

// TypeName returns the name of the mapped type, or the table name when no
// type is bound.
func (t TableMapping) TypeName() string {
	if t.Type == nil {
		return t.Name
	}
	return t.Type.String()
}

// ColumnMapping describes how one property is stored in one column.
type ColumnMapping struct {
	Name      string
	Ordinal   int
	DbType    DbType
	Size      int
	Precision int
	Scale     int
	Nullable  bool

	PrimaryKey      bool
	ForeignKey      bool
	ForeignType     reflect.Type
	ForeignSelector string

	// ReadOnly marks identity or otherwise generated columns.
	ReadOnly bool
	// ConcurrencyCheck marks optimistic-concurrency token columns.
	ConcurrencyCheck bool
	// PreviousVersionPath prefixes Property to locate the previously observed
	// value of a concurrency column.
	PreviousVersionPath string

	// Property is the dotted path of the bound struct field. Defaults to Name.
	Property string
}

// PreviousProperty returns the property path holding the pre-mutation value.
func (c ColumnMapping) PreviousProperty() string {
	return c.PreviousVersionPath + c.Property
}

// Identity reports whether the column is the scope-identity column.
func (c ColumnMapping) Identity() bool {
	return c.PrimaryKey && c.ReadOnly
}

// Mapping is the complete mapping of one type: exactly one table and its
// columns ordered by (Ordinal, Name).
type Mapping struct {
	Table   TableMapping
	Columns []ColumnMapping
}

// New builds and validates a mapping. v may be a struct value, a pointer to
// one, a reflect.Type or nil.
func New(v any, table TableMapping, columns ...ColumnMapping) (*Mapping, error) {
	if table.Type == nil && v != nil {
		table.Type = structType(v)
	}
	m := &Mapping{Table: table, Columns: make([]ColumnMapping, len(columns))}
	copy(m.Columns, columns)
	for i := range m.Columns {
		if m.Columns[i].Property == "" {
			m.Columns[i].Property = m.Columns[i].Name
		}
	}
	SortColumns(m.Columns)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is like New but panics on error. It is intended for package-level
// mapping declarations.
func MustNew(v any, table TableMapping, columns ...ColumnMapping) *Mapping {
	m, err := New(v, table, columns...)
	if err != nil {
		panic(err)
	}
	return m
}

func structType(v any) reflect.Type {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// SortColumns orders columns by ordinal, then name.
func SortColumns(cols []ColumnMapping) {
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Ordinal != cols[j].Ordinal {
			return cols[i].Ordinal < cols[j].Ordinal
		}
		return cols[i].Name < cols[j].Name
	})
}

// Validate checks the mapping invariants: a table name, named columns, at
// least one primary key and at most one scope-identity column. When a type
// is bound, every property path must resolve to a field.
func (m *Mapping) Validate() error {
	if m == nil {
		return fault.Precondition("mapping")
	}
	if strings.TrimSpace(m.Table.Name) == "" {
		return fault.Precondition("table name")
	}
	typ := m.Table.TypeName()
	seen := make(map[string]struct{}, len(m.Columns))
	keys, identities := 0, 0
	for _, c := range m.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fault.Precondition("column name")
		}
		if _, dup := seen[c.Name]; dup {
			return fault.NewMappingError(typ, c.Name, "column mapped more than once")
		}
		seen[c.Name] = struct{}{}
		if c.PrimaryKey {
			keys++
		}
		if c.Identity() {
			identities++
		}
		if m.Table.Type == nil {
			continue
		}
		prop := c.Property
		if prop == "" {
			prop = c.Name
		}
		if !HasPath(m.Table.Type, prop) {
			return fault.NewMappingError(typ, prop, "no such property")
		}
		if c.ConcurrencyCheck && c.PreviousVersionPath != "" && !HasPath(m.Table.Type, c.PreviousVersionPath+prop) {
			return fault.NewMappingError(typ, c.PreviousVersionPath+prop, "no such previous-version property")
		}
	}
	if keys == 0 {
		return fault.NewMappingError(typ, "", "no mapped primary key")
	}
	if identities > 1 {
		return fault.NewMappingError(typ, "", fmt.Sprintf("%d scope-identity columns, at most one is allowed", identities))
	}
	return nil
}

// PrimaryKeys returns the primary-key columns in column order.
func (m *Mapping) PrimaryKeys() []ColumnMapping {
	return m.filter(func(c ColumnMapping) bool { return c.PrimaryKey })
}

// NonKeys returns the columns that are not part of the primary key.
func (m *Mapping) NonKeys() []ColumnMapping {
	return m.filter(func(c ColumnMapping) bool { return !c.PrimaryKey })
}

// Writable returns the columns that are not read-only.
func (m *Mapping) Writable() []ColumnMapping {
	return m.filter(func(c ColumnMapping) bool { return !c.ReadOnly })
}

// ConcurrencyColumns returns the concurrency-check columns.
func (m *Mapping) ConcurrencyColumns() []ColumnMapping {
	return m.filter(func(c ColumnMapping) bool { return c.ConcurrencyCheck })
}

// Identity returns the scope-identity column. It reports false when the
// table has none and fails when more than one is declared.
func (m *Mapping) Identity() (ColumnMapping, bool, error) {
	ids := m.filter(ColumnMapping.Identity)
	switch len(ids) {
	case 0:
		return ColumnMapping{}, false, nil
	case 1:
		return ids[0], true, nil
	default:
		return ColumnMapping{}, false, fault.NewMappingError(m.Table.TypeName(), ids[1].Name, "duplicate scope-identity column")
	}
}

// Column resolves a property name, falling back to a column name.
func (m *Mapping) Column(name string) (ColumnMapping, bool) {
	for _, c := range m.Columns {
		if c.Property == name {
			return c, true
		}
	}
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMapping{}, false
}

func (m *Mapping) filter(keep func(ColumnMapping) bool) []ColumnMapping {
	out := make([]ColumnMapping, 0, len(m.Columns))
	for _, c := range m.Columns {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// HasPath reports whether the dotted field path resolves on struct type t.
func HasPath(t reflect.Type, path string) bool {
	for _, name := range strings.Split(path, ".") {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return false
		}
		f, ok := t.FieldByName(name)
		if !ok || !f.IsExported() {
			return false
		}
		t = f.Type
	}
	return true
}
