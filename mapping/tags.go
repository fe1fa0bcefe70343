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
	"strconv"
	"strings"

	"github.com/tomoncle/datamap/fault"
)

// TagName is the struct tag read by FromStruct.
const TagName = "datamap"

// Tabler lets a mapped type name its table.
type Tabler interface {
	TableName() string
}

// Schemer lets a mapped type name its schema.
type Schemer interface {
	TableSchema() string
}

// Viewer marks a mapped type as backed by a view.
type Viewer interface {
	IsView() bool
}

// FromStruct derives a mapping from `datamap` struct tags, e.g.
//
//	ID         int64     `datamap:"Id,pk,readonly,type:bigint"`
//	Name       string    `datamap:"Name,type:nvarchar,size:100"`
//	ModifiedAt time.Time `datamap:"ModifiedAt,concurrency,prev:Previous"`
//
// Only tagged fields are mapped. Untagged ordinals follow field order.
func FromStruct(v any) (*Mapping, error) {
	if v == nil {
		return nil, fault.Precondition("v")
	}
	t := structType(v)
	if t.Kind() != reflect.Struct {
		return nil, fault.NewMappingError(t.String(), "", "not a struct type")
	}

	table := TableMapping{Name: t.Name(), Type: t}
	zero := reflect.New(t).Interface()
	if tn, ok := zero.(Tabler); ok {
		table.Name = tn.TableName()
	}
	if sn, ok := zero.(Schemer); ok {
		table.Schema = sn.TableSchema()
	}
	if vw, ok := zero.(Viewer); ok {
		table.IsView = vw.IsView()
	}

	var columns []ColumnMapping
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup(TagName)
		if !ok || tag == "-" || !f.IsExported() {
			continue
		}
		col, err := parseColumnTag(f, tag, len(columns))
		if err != nil {
			return nil, fault.NewMappingError(t.String(), f.Name, err.Error())
		}
		columns = append(columns, col)
	}
	return New(nil, table, columns...)
}

func parseColumnTag(f reflect.StructField, tag string, ordinal int) (ColumnMapping, error) {
	parts := strings.Split(tag, ",")
	col := ColumnMapping{
		Name:     strings.TrimSpace(parts[0]),
		Ordinal:  ordinal,
		DbType:   InferDbTypeOf(f.Type),
		Property: f.Name,
	}
	if col.Name == "" {
		col.Name = f.Name
	}
	for _, opt := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(opt), ":")
		switch key {
		case "":
		case "pk":
			col.PrimaryKey = true
		case "readonly", "identity":
			col.ReadOnly = true
		case "nullable":
			col.Nullable = true
		case "concurrency":
			col.ConcurrencyCheck = true
		case "prev":
			col.PreviousVersionPath = value
		case "fk":
			col.ForeignKey = true
			col.ForeignSelector = value
		case "type":
			dt, ok := ParseDbType(value)
			if !ok {
				return col, fmt.Errorf("unknown column type %q", value)
			}
			col.DbType = dt
		case "size", "precision", "scale", "ordinal":
			n, err := strconv.Atoi(value)
			if err != nil {
				return col, fmt.Errorf("invalid %s %q", key, value)
			}
			switch key {
			case "size":
				col.Size = n
			case "precision":
				col.Precision = n
			case "scale":
				col.Scale = n
			default:
				col.Ordinal = n
			}
		default:
			return col, fmt.Errorf("unknown tag option %q", key)
		}
	}
	if f.Type.Kind() == reflect.Pointer {
		col.Nullable = true
	}
	return col, nil
}
