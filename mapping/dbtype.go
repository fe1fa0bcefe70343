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
	"database/sql/driver"
	"reflect"
	"strings"
	"time"
)

// DbType is the backend column type of a mapped column or parameter.
type DbType int

const (
	Variant DbType = iota
	BigInt
	Int
	SmallInt
	TinyInt
	Bit
	Decimal
	Money
	Float
	Real
	NVarChar
	VarChar
	NChar
	Char
	NText
	Text
	Date
	Time
	DateTime
	DateTime2
	DateTimeOffset
	UniqueIdentifier
	VarBinary
	Binary
	Timestamp
	Xml
)

var dbTypeNames = map[DbType]string{
	Variant:          "sql_variant",
	BigInt:           "bigint",
	Int:              "int",
	SmallInt:         "smallint",
	TinyInt:          "tinyint",
	Bit:              "bit",
	Decimal:          "decimal",
	Money:            "money",
	Float:            "float",
	Real:             "real",
	NVarChar:         "nvarchar",
	VarChar:          "varchar",
	NChar:            "nchar",
	Char:             "char",
	NText:            "ntext",
	Text:             "text",
	Date:             "date",
	Time:             "time",
	DateTime:         "datetime",
	DateTime2:        "datetime2",
	DateTimeOffset:   "datetimeoffset",
	UniqueIdentifier: "uniqueidentifier",
	VarBinary:        "varbinary",
	Binary:           "binary",
	Timestamp:        "timestamp",
	Xml:              "xml",
}

// String returns the T-SQL name of the type.
func (t DbType) String() string {
	if s, ok := dbTypeNames[t]; ok {
		return s
	}
	return dbTypeNames[Variant]
}

// ParseDbType resolves a T-SQL type name. Unknown names report false.
func ParseDbType(s string) (DbType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "rowversion" {
		return Timestamp, true
	}
	for t, name := range dbTypeNames {
		if name == s {
			return t, true
		}
	}
	return Variant, false
}

// MarshalText implements encoding.TextMarshaler.
func (t DbType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DbType) UnmarshalText(b []byte) error {
	v, _ := ParseDbType(string(b))
	*t = v
	return nil
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	bytesType  = reflect.TypeOf([]byte(nil))
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// InferDbType infers the backend type of a literal from its runtime type.
func InferDbType(v any) DbType {
	if v == nil {
		return Variant
	}
	return InferDbTypeOf(reflect.TypeOf(v))
}

// InferDbTypeOf infers the backend type for values of a Go type.
func InferDbTypeOf(t reflect.Type) DbType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return DateTime2
	case t == bytesType:
		return VarBinary
	case t.Kind() == reflect.Array && t.Len() == 16 && t.Elem().Kind() == reflect.Uint8:
		return UniqueIdentifier
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bit
	case reflect.Int8, reflect.Uint8:
		return TinyInt
	case reflect.Int16, reflect.Uint16:
		return SmallInt
	case reflect.Int32, reflect.Uint32:
		return Int
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return BigInt
	case reflect.Float32:
		return Real
	case reflect.Float64:
		return Float
	case reflect.String:
		return NVarChar
	}
	if t.Implements(valuerType) || reflect.PointerTo(t).Implements(valuerType) {
		return NVarChar
	}
	return Variant
}
