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

// Options controls the shape of generated SQL.
type Options struct {
	// BatchIdentityFetch stores a separate last-identity query on insert
	// commands instead of appending an output parameter to the insert text.
	BatchIdentityFetch bool
}

// Compiler turns mappings and queries into commands. It is stateless and
// deterministic: compiling the same input twice yields equal commands.
type Compiler struct {
	opts Options
}

// New returns a compiler with the given options.
func New(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

// Options returns the compiler options.
func (c *Compiler) Options() Options {
	return c.opts
}

// Compile builds the data source map of m. Views get no insert, update or
// delete commands, and tables with nothing to SET get no update command.
// Each query becomes a named SelectFor entry.
func (c *Compiler) Compile(m *mapping.Mapping, queries ...*query.Query) (*command.DataSourceMap, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var err error
	dsm := &command.DataSourceMap{Type: m.Table.TypeName()}
	if !m.Table.IsView {
		if dsm.Insert, err = c.Insert(m); err != nil {
			return nil, err
		}
		if updatable(m) {
			if dsm.Update, err = c.Update(m); err != nil {
				return nil, err
			}
		}
		if dsm.Delete, err = c.Delete(m); err != nil {
			return nil, err
		}
	}
	if dsm.SelectAll, err = c.SelectAll(m); err != nil {
		return nil, err
	}
	if dsm.SelectOne, err = c.SelectOne(m); err != nil {
		return nil, err
	}
	if dsm.SelectNot, err = c.SelectNot(m); err != nil {
		return nil, err
	}
	if dsm.SelectFor, err = c.SelectFor(m, queries...); err != nil {
		return nil, err
	}
	return dsm, nil
}

// Quote brackets an identifier.
func Quote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// TableName returns the quoted, schema-qualified table name.
func TableName(t mapping.TableMapping) string {
	if t.Schema != "" {
		return Quote(t.Schema) + "." + Quote(t.Name)
	}
	return Quote(t.Name)
}

// Alias returns the positional table alias.
func Alias(i int) string {
	return fmt.Sprintf("t%03d", i)
}

// ParameterName returns the positional parameter name.
func ParameterName(i int) string {
	return fmt.Sprintf("@p%03d", i)
}

// parameters allocates positional names in append order.
type parameters struct {
	list []command.Parameter
}

func (p *parameters) add(col mapping.ColumnMapping, dir command.Direction, property string) string {
	name := ParameterName(len(p.list))
	p.list = append(p.list, command.Parameter{
		Name:      name,
		Direction: dir,
		DbType:    col.DbType,
		Size:      col.Size,
		Precision: col.Precision,
		Scale:     col.Scale,
		Nullable:  col.Nullable,
		Property:  property,
	})
	return name
}

func (p *parameters) literal(v any) string {
	name := ParameterName(len(p.list))
	p.list = append(p.list, command.Parameter{
		Name:      name,
		Direction: command.Input,
		DbType:    mapping.InferDbType(v),
		Nullable:  v == nil,
		Property:  name,
	})
	return name
}

func unknownMember(m *mapping.Mapping, name, what string) error {
	return fault.NewMappingError(m.Table.TypeName(), name, what+" does not resolve to a mapped column")
}
