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

package marshal

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/mapping"
)

// BackendParameter is a parameter instance bound for one execution.
type BackendParameter struct {
	Name      string
	Direction command.Direction
	DbType    mapping.DbType
	Size      int
	Precision int
	Scale     int
	Nullable  bool
	Value     any

	// dest receives the value written back by the backend.
	dest reflect.Value
}

// NewBackendParameter declares a parameter instance shaped like p.
func NewBackendParameter(p command.Parameter) *BackendParameter {
	bp := &BackendParameter{
		Name:      p.Name,
		Direction: p.Direction,
		DbType:    p.DbType,
		Size:      p.Size,
		Precision: p.Precision,
		Scale:     p.Scale,
		Nullable:  p.Nullable,
	}
	if p.Direction.IsOutput() {
		bp.dest = reflect.New(holderType(p.DbType))
	}
	return bp
}

// holderType picks the Go type that receives an output value of t.
func holderType(t mapping.DbType) reflect.Type {
	var v any
	switch t {
	case mapping.BigInt, mapping.Int, mapping.SmallInt, mapping.TinyInt:
		v = sql.NullInt64{}
	case mapping.Bit:
		v = sql.NullBool{}
	case mapping.Float, mapping.Real:
		v = sql.NullFloat64{}
	case mapping.NVarChar, mapping.VarChar, mapping.NChar, mapping.Char, mapping.NText, mapping.Text,
		mapping.Xml, mapping.Decimal, mapping.Money:
		v = sql.NullString{}
	case mapping.Date, mapping.Time, mapping.DateTime, mapping.DateTime2, mapping.DateTimeOffset:
		v = sql.NullTime{}
	case mapping.VarBinary, mapping.Binary, mapping.Timestamp, mapping.UniqueIdentifier:
		v = []byte(nil)
	default:
		return reflect.TypeOf((*any)(nil)).Elem()
	}
	return reflect.TypeOf(v)
}

// Bind sets the value sent to the backend.
func (p *BackendParameter) Bind(v any) error {
	p.Value = v
	if p.dest.IsValid() && p.Direction == command.InputOutput {
		return p.SetResult(v)
	}
	return nil
}

// SetResult stores a value as if the backend had written it back.
func (p *BackendParameter) SetResult(v any) error {
	if !p.dest.IsValid() {
		return fmt.Errorf("parameter %s is not an output parameter", p.Name)
	}
	if v == nil {
		p.dest.Elem().Set(reflect.Zero(p.dest.Elem().Type()))
		return nil
	}
	return assign(p.dest.Elem(), v)
}

// Result returns the value written back by the backend, or the bound value
// for input-only parameters.
func (p *BackendParameter) Result() any {
	if !p.dest.IsValid() {
		return p.Value
	}
	switch v := p.dest.Elem().Interface().(type) {
	case sql.NullInt64:
		return nullable(v.Valid, v.Int64)
	case sql.NullBool:
		return nullable(v.Valid, v.Bool)
	case sql.NullFloat64:
		return nullable(v.Valid, v.Float64)
	case sql.NullString:
		return nullable(v.Valid, v.String)
	case sql.NullTime:
		return nullable[time.Time](v.Valid, v.Time)
	default:
		return v
	}
}

func nullable[T any](valid bool, v T) any {
	if !valid {
		return nil
	}
	return v
}

// Arg returns the database/sql argument for this parameter. Output
// parameters are passed as sql.Out pointing at the result holder.
func (p *BackendParameter) Arg() any {
	name := strings.TrimPrefix(p.Name, "@")
	if p.dest.IsValid() {
		return sql.Named(name, sql.Out{Dest: p.dest.Interface(), In: p.Direction == command.InputOutput})
	}
	return sql.Named(name, p.Value)
}

// ParameterSet is the ordered parameter collection of one execution.
type ParameterSet struct {
	list []*BackendParameter
}

// NewParameterSet returns an empty set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{}
}

// Add appends parameters.
func (s *ParameterSet) Add(params ...*BackendParameter) {
	s.list = append(s.list, params...)
}

// Len returns the number of parameters.
func (s *ParameterSet) Len() int {
	return len(s.list)
}

// All returns the parameters in order.
func (s *ParameterSet) All() []*BackendParameter {
	return s.list
}

// Lookup returns every parameter named name.
func (s *ParameterSet) Lookup(name string) []*BackendParameter {
	var out []*BackendParameter
	for _, p := range s.list {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// Args returns the database/sql arguments in parameter order.
func (s *ParameterSet) Args() []any {
	out := make([]any, 0, len(s.list))
	for _, p := range s.list {
		out = append(out, p.Arg())
	}
	return out
}
