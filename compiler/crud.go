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
)

// Insert compiles the insert command. Read-only columns are not inserted.
// A scope-identity column is read back either through an output parameter
// or, in batch identity fetch mode, through Command.IdentityQuery.
func (c *Compiler) Insert(m *mapping.Mapping) (*command.Command, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	identity, hasIdentity, err := m.Identity()
	if err != nil {
		return nil, err
	}

	var ps parameters
	var columns, values []string
	for _, col := range m.Writable() {
		columns = append(columns, Quote(col.Name))
		values = append(values, ps.add(col, command.Input, col.Property))
	}

	var text string
	if len(columns) == 0 {
		text = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", TableName(m.Table))
	} else {
		text = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			TableName(m.Table), strings.Join(columns, ", "), strings.Join(values, ", "))
	}

	cmd := &command.Command{Kind: command.Text}
	if hasIdentity {
		if c.opts.BatchIdentityFetch {
			cmd.IdentityQuery = fmt.Sprintf("SELECT @@IDENTITY AS %s", Quote(identity.Name))
			cmd.Fields = []command.Field{{Name: identity.Name, Property: identity.Property}}
		} else {
			out := ps.add(identity, command.Output, identity.Property)
			text += fmt.Sprintf("; SET %s = SCOPE_IDENTITY()", out)
		}
	}
	cmd.Text = text
	cmd.Parameters = ps.list
	return cmd, nil
}

// Update compiles the update command. The SET list covers writable columns
// that are not concurrency tokens; the WHERE clause matches every primary
// key and every concurrency column against its previously observed value.
func (c *Compiler) Update(m *mapping.Mapping) (*command.Command, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	alias := Quote(Alias(0))

	var ps parameters
	var sets []string
	for _, col := range m.Columns {
		if col.ReadOnly || col.ConcurrencyCheck {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", Quote(col.Name), ps.add(col, command.Input, col.Property)))
	}
	if len(sets) == 0 {
		return nil, fault.NewMappingError(m.Table.TypeName(), "", "no updatable columns")
	}
	where := c.keyPredicate(m, alias, &ps)

	return &command.Command{
		Kind: command.Text,
		Text: fmt.Sprintf("UPDATE %s SET %s FROM %s %s WHERE %s",
			alias, strings.Join(sets, ", "), TableName(m.Table), alias, where),
		Parameters: ps.list,
	}, nil
}

// updatable reports whether m has a column an update can SET.
func updatable(m *mapping.Mapping) bool {
	for _, col := range m.Columns {
		if !col.ReadOnly && !col.ConcurrencyCheck {
			return true
		}
	}
	return false
}

// Delete compiles the delete command with the same WHERE clause as Update.
func (c *Compiler) Delete(m *mapping.Mapping) (*command.Command, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	alias := Quote(Alias(0))

	var ps parameters
	where := c.keyPredicate(m, alias, &ps)
	return &command.Command{
		Kind:       command.Text,
		Text:       fmt.Sprintf("DELETE %s FROM %s %s WHERE %s", alias, TableName(m.Table), alias, where),
		Parameters: ps.list,
	}, nil
}

// keyPredicate matches primary keys, then concurrency columns bound to
// their previous-version property.
func (c *Compiler) keyPredicate(m *mapping.Mapping, alias string, ps *parameters) string {
	var terms []string
	for _, col := range m.PrimaryKeys() {
		terms = append(terms, fmt.Sprintf("%s.%s = %s", alias, Quote(col.Name), ps.add(col, command.Input, col.Property)))
	}
	for _, col := range m.ConcurrencyColumns() {
		if col.PrimaryKey {
			continue
		}
		terms = append(terms, fmt.Sprintf("%s.%s = %s", alias, Quote(col.Name), ps.add(col, command.Input, col.PreviousProperty())))
	}
	return strings.Join(terms, " AND ")
}
