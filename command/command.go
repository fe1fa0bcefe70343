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
	"strings"
	"time"

	"github.com/tomoncle/datamap/mapping"
)

// Kind selects how the command text is interpreted.
type Kind int

const (
	Text Kind = iota
	StoredProcedure
)

func (k Kind) String() string {
	if k == StoredProcedure {
		return "stored_procedure"
	}
	return "text"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	if strings.EqualFold(string(b), "stored_procedure") {
		*k = StoredProcedure
	} else {
		*k = Text
	}
	return nil
}

// Direction is the data flow of a parameter.
type Direction int

const (
	Input Direction = iota
	Output
	InputOutput
)

func (d Direction) String() string {
	switch d {
	case Output:
		return "out"
	case InputOutput:
		return "inout"
	default:
		return "in"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "out", "output":
		*d = Output
	case "inout", "inputoutput":
		*d = InputOutput
	default:
		*d = Input
	}
	return nil
}

// IsInput reports whether the parameter carries a value to the backend.
func (d Direction) IsInput() bool { return d == Input || d == InputOutput }

// IsOutput reports whether the backend writes the parameter back.
func (d Direction) IsOutput() bool { return d == Output || d == InputOutput }

// Parameter describes one command parameter and the property it binds to.
type Parameter struct {
	Name      string         `yaml:"name"`
	Direction Direction      `yaml:"direction,omitempty"`
	DbType    mapping.DbType `yaml:"type"`
	Size      int            `yaml:"size,omitempty"`
	Precision int            `yaml:"precision,omitempty"`
	Scale     int            `yaml:"scale,omitempty"`
	Nullable  bool           `yaml:"nullable,omitempty"`
	Property  string         `yaml:"property"`
}

// Field binds a result column to a property.
type Field struct {
	Name     string `yaml:"name"`
	Property string `yaml:"property"`
}

// Command is a backend-neutral SQL command. Commands are built once by the
// compiler and must not be modified afterwards.
type Command struct {
	Kind       Kind          `yaml:"kind,omitempty"`
	Text       string        `yaml:"text"`
	Prepare    bool          `yaml:"prepare,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	Parameters []Parameter   `yaml:"parameters,omitempty"`
	Fields     []Field       `yaml:"fields,omitempty"`
	// IdentityQuery is run on the same connection right after the command
	// to read back the generated identity value.
	IdentityQuery string `yaml:"identity_query,omitempty"`
}

// Clone returns a deep copy of c.
func (c *Command) Clone() *Command {
	if c == nil {
		return nil
	}
	out := *c
	out.Parameters = append([]Parameter(nil), c.Parameters...)
	out.Fields = append([]Field(nil), c.Fields...)
	return &out
}

// Inputs returns the parameters that carry values to the backend.
func (c *Command) Inputs() []Parameter {
	return c.params(Direction.IsInput)
}

// Outputs returns the parameters written back by the backend.
func (c *Command) Outputs() []Parameter {
	return c.params(Direction.IsOutput)
}

func (c *Command) params(keep func(Direction) bool) []Parameter {
	out := make([]Parameter, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		if keep(p.Direction) {
			out = append(out, p)
		}
	}
	return out
}

// Parameter looks a parameter up by name.
func (c *Command) Parameter(name string) (Parameter, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// String returns the command text.
func (c *Command) String() string {
	if c == nil {
		return ""
	}
	return c.Text
}
