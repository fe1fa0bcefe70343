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
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// GetProperty reads the dotted property path of source. source may be a
// struct, a pointer to one or a map[string]any keyed by path. A nil pointer
// along the path yields a nil value.
func GetProperty(source any, path string) (any, error) {
	if m, ok := source.(map[string]any); ok {
		v, ok := m[path]
		if !ok {
			return nil, fmt.Errorf("property %q not found", path)
		}
		return v, nil
	}
	v := reflect.ValueOf(source)
	for _, name := range strings.Split(path, ".") {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, nil
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return nil, fmt.Errorf("property %q: %s is not a struct", path, v.Type())
		}
		f := v.FieldByName(name)
		if !f.IsValid() || !f.CanInterface() {
			return nil, fmt.Errorf("property %q not found on %s", path, v.Type())
		}
		v = f
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil, nil
	}
	return v.Interface(), nil
}

// SetProperty assigns value to the dotted property path of target, which
// must be a non-nil pointer to a struct or a map[string]any. Nil pointers
// along the path are allocated.
func SetProperty(target any, path string, value any) error {
	if m, ok := target.(map[string]any); ok {
		m[path] = value
		return nil
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("property %q: target must be a non-nil pointer, got %T", path, target)
	}
	for _, name := range strings.Split(path, ".") {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return fmt.Errorf("property %q: %s is not a struct", path, v.Type())
		}
		f := v.FieldByName(name)
		if !f.IsValid() || !f.CanSet() {
			return fmt.Errorf("property %q not found on %s", path, v.Type())
		}
		v = f
	}
	if err := assign(v, value); err != nil {
		return fmt.Errorf("property %q: %w", path, err)
	}
	return nil
}

// assign converts src to the type of dst. Scanners receive values that are
// not directly assignable.
func assign(dst reflect.Value, src any) error {
	if src != nil {
		if sv := reflect.ValueOf(src); sv.Type().AssignableTo(dst.Type()) {
			dst.Set(sv)
			return nil
		}
	}
	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	sv := reflect.ValueOf(src)
	for sv.Kind() == reflect.Pointer {
		if sv.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		sv = sv.Elem()
	}
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	if sv.Type().Implements(valuerType) {
		raw, err := sv.Interface().(driver.Valuer).Value()
		if err != nil {
			return err
		}
		return assign(dst, raw)
	}

	switch dst.Kind() {
	case reflect.String:
		switch s := sv.Interface().(type) {
		case []byte:
			dst.SetString(string(s))
			return nil
		case fmt.Stringer:
			dst.SetString(s.String())
			return nil
		}
		if isNumber(sv.Kind()) || sv.Kind() == reflect.Bool {
			dst.SetString(fmt.Sprint(sv.Interface()))
			return nil
		}
	case reflect.Bool:
		switch {
		case isNumber(sv.Kind()):
			dst.SetBool(!sv.IsZero())
			return nil
		case sv.Kind() == reflect.String || isBytes(sv):
			b, err := strconv.ParseBool(text(sv))
			if err != nil {
				return err
			}
			dst.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		switch {
		case isNumber(sv.Kind()):
			dst.Set(sv.Convert(dst.Type()))
			return nil
		case sv.Kind() == reflect.Bool:
			n := 0
			if sv.Bool() {
				n = 1
			}
			dst.Set(reflect.ValueOf(n).Convert(dst.Type()))
			return nil
		case sv.Kind() == reflect.String || isBytes(sv):
			return parseNumber(dst, text(sv))
		}
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 && sv.Kind() == reflect.String {
			dst.SetBytes([]byte(sv.String()))
			return nil
		}
	case reflect.Struct:
		if dst.Type() == timeType && (sv.Kind() == reflect.String || isBytes(sv)) {
			t, err := time.Parse(time.RFC3339Nano, text(sv))
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		}
	}
	if sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() == dst.Kind() {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", sv.Type(), dst.Type())
}

func isNumber(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}

func isBytes(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func text(v reflect.Value) string {
	if isBytes(v) {
		return string(v.Bytes())
	}
	return v.String()
}

func parseNumber(dst reflect.Value, s string) error {
	s = strings.TrimSpace(s)
	switch dst.Kind() {
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetUint(n)
	default:
		n, err := strconv.ParseInt(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	}
	return nil
}
