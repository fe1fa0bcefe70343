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

package compiler

import (
	"fmt"
	"strings"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/fault"
	"github.com/tomoncle/datamap/mapping"
	"github.com/tomoncle/datamap/query"
)

// projection lists primary keys first, then the remaining columns, all
// qualified by the single table alias.
func projection(m *mapping.Mapping, alias string) (string, []command.Field) {
	cols := append(m.PrimaryKeys(), m.NonKeys()...)
	terms := make([]string, 0, len(cols))
	fields := make([]command.Field, 0, len(cols))
	for _, col := range cols {
		terms = append(terms, alias+"."+Quote(col.Name))
		fields = append(fields, command.Field{Name: col.Name, Property: col.Property})
	}
	return strings.Join(terms, ", "), fields
}

func keySort(m *mapping.Mapping, alias string) string {
	keys := m.PrimaryKeys()
	terms := make([]string, 0, len(keys))
	for _, col := range keys {
		terms = append(terms, alias+"."+Quote(col.Name)+" ASC")
	}
	return strings.Join(terms, ", ")
}

func selectText(top, cols string, m *mapping.Mapping, alias string) string {
	return fmt.Sprintf("SELECT %s %s FROM %s %s", top, cols, TableName(m.Table), alias)
}

// SelectAll compiles the unfiltered select sorted by primary key.
func (c *Compiler) SelectAll(m *mapping.Mapping) (*command.Command, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	alias := Alias(0)
	cols, fields := projection(m, alias)
	return &command.Command{
		Kind:   command.Text,
		Text:   selectText("", cols, m, alias) + " ORDER BY " + keySort(m, alias),
		Fields: fields,
	}, nil
}

// SelectOne compiles the select by primary key.
func (c *Compiler) SelectOne(m *mapping.Mapping) (*command.Command, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	alias := Alias(0)
	cols, fields := projection(m, alias)

	var ps parameters
	var terms []string
	for _, col := range m.PrimaryKeys() {
		terms = append(terms, fmt.Sprintf("%s.%s = %s", alias, Quote(col.Name), ps.add(col, command.Input, col.Property)))
	}
	return &command.Command{
		Kind: command.Text,
		Text: selectText("", cols, m, alias) +
			" WHERE " + strings.Join(terms, " AND ") +
			" ORDER BY " + keySort(m, alias),
		Parameters: ps.list,
		Fields:     fields,
	}, nil
}

// SelectNot compiles an unsatisfiable select used to read the result shape
// without touching data.
func (c *Compiler) SelectNot(m *mapping.Mapping) (*command.Command, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	alias := Alias(0)
	cols, fields := projection(m, alias)
	return &command.Command{
		Kind:   command.Text,
		Text:   selectText("", cols, m, alias) + " WHERE -1 = 1",
		Fields: fields,
	}, nil
}

// SelectFor compiles one named command per query. No queries yield no
// commands. Literal values are bound into each query's value bag under
// their generated parameter names.
func (c *Compiler) SelectFor(m *mapping.Mapping, queries ...*query.Query) ([]command.For, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := make([]command.For, 0, len(queries))
	for _, q := range queries {
		if q == nil {
			continue
		}
		cmd, err := c.Select(m, q)
		if err != nil {
			return nil, err
		}
		out = append(out, command.For{Name: q.Name, Command: *cmd})
	}
	return out, nil
}

// Select compiles a single predicate-driven query.
func (c *Compiler) Select(m *mapping.Mapping, q *query.Query) (*command.Command, error) {
	if q == nil {
		return nil, fault.Precondition("query")
	}
	alias := Alias(0)
	pred, err := CompilePredicate(m, alias, q)
	if err != nil {
		return nil, err
	}
	cols, fields := projection(m, alias)
	return &command.Command{
		Kind: command.Text,
		Text: selectText(pred.Top, cols, m, alias) +
			" WHERE (1 = 1) AND " + pred.Text +
			" ORDER BY " + pred.Sort,
		Parameters: pred.Parameters,
		Fields:     fields,
	}, nil
}
