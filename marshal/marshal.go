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
	"fmt"
	"reflect"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/fault"
)

// Record is one result row addressed by column name. Value fails for
// column names the row does not carry.
type Record interface {
	Value(name string) (any, error)
}

// RecordToObject copies each command field from rec into the bound
// property of target.
func RecordToObject(rec Record, cmd *command.Command, target any) error {
	if isNil(rec) {
		return fault.Precondition("record")
	}
	if cmd == nil {
		return fault.Precondition("command")
	}
	if isNil(target) {
		return fault.Precondition("target")
	}
	for _, f := range cmd.Fields {
		v, err := rec.Value(f.Name)
		if err != nil {
			return &fault.MappingError{Type: typeName(target), Member: f.Name, Reason: "result has no such column", Err: err}
		}
		if err := SetProperty(target, f.Property, v); err != nil {
			return &fault.MappingError{Type: typeName(target), Member: f.Property, Reason: "property cannot be set", Err: err}
		}
	}
	return nil
}

// ObjectToInputParameters binds every input parameter of cmd to the bound
// property of source and appends it to set. A nil source declares the
// parameters without values.
func ObjectToInputParameters(cmd *command.Command, source any, set *ParameterSet) error {
	if cmd == nil {
		return fault.Precondition("command")
	}
	if set == nil {
		return fault.Precondition("parameter set")
	}
	for _, param := range cmd.Inputs() {
		bp := NewBackendParameter(param)
		if !isNil(source) {
			v, err := GetProperty(source, param.Property)
			if err != nil {
				return &fault.MappingError{Type: typeName(source), Member: param.Property, Reason: "property cannot be read", Err: err}
			}
			if err := bp.Bind(v); err != nil {
				return &fault.MappingError{Type: typeName(source), Member: param.Property, Reason: "value cannot be bound", Err: err}
			}
		}
		set.Add(bp)
	}
	return nil
}

// DeclareOutputParameters appends the output-only parameters of cmd to set.
// Input-output parameters are declared by ObjectToInputParameters.
func DeclareOutputParameters(cmd *command.Command, set *ParameterSet) error {
	if cmd == nil {
		return fault.Precondition("command")
	}
	if set == nil {
		return fault.Precondition("parameter set")
	}
	for _, param := range cmd.Parameters {
		if param.Direction == command.Output {
			set.Add(NewBackendParameter(param))
		}
	}
	return nil
}

// OutputParametersToObject copies the output parameters of an executed set
// into target. Each output parameter must match exactly one executed
// parameter by name. A nil target only checks the matches.
func OutputParametersToObject(cmd *command.Command, executed *ParameterSet, target any) error {
	if cmd == nil {
		return fault.Precondition("command")
	}
	if executed == nil {
		return fault.Precondition("executed parameters")
	}
	for _, param := range cmd.Outputs() {
		matches := executed.Lookup(param.Name)
		if len(matches) != 1 {
			return fault.NewMappingError(typeName(target), param.Name,
				fmt.Sprintf("expected exactly one executed parameter, found %d", len(matches)))
		}
		if isNil(target) {
			continue
		}
		if err := SetProperty(target, param.Property, matches[0].Result()); err != nil {
			return &fault.MappingError{Type: typeName(target), Member: param.Property, Reason: "property cannot be set", Err: err}
		}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
