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
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datamap/fault"
)

type account struct {
	ID                 int64     `datamap:"Id,pk,readonly,type:bigint"`
	Name               string    `datamap:"Name,type:nvarchar,size:100"`
	Email              *string   `datamap:"Email,ordinal:5"`
	ModifiedAt         time.Time `datamap:"ModifiedAt,concurrency,prev:Previous"`
	PreviousModifiedAt time.Time
	Ignored            string `datamap:"-"`
}

func (account) TableName() string   { return "Account" }
func (account) TableSchema() string { return "crm" }

func TestFromStruct(t *testing.T) {
	m, err := FromStruct(&account{})
	require.NoError(t, err)

	assert.Equal(t, "Account", m.Table.Name)
	assert.Equal(t, "crm", m.Table.Schema)
	assert.Equal(t, reflect.TypeOf(account{}), m.Table.Type)
	require.Len(t, m.Columns, 4)

	names := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Id", "Name", "ModifiedAt", "Email"}, names)

	id, ok, err := m.Identity()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ID", id.Property)
	assert.Equal(t, BigInt, id.DbType)

	email, ok := m.Column("Email")
	require.True(t, ok)
	assert.True(t, email.Nullable)
	assert.Equal(t, 5, email.Ordinal)

	mod, ok := m.Column("ModifiedAt")
	require.True(t, ok)
	assert.True(t, mod.ConcurrencyCheck)
	assert.Equal(t, "PreviousModifiedAt", mod.PreviousProperty())
	assert.Equal(t, DateTime2, mod.DbType)
}

func TestFromStructRejectsUnknownOption(t *testing.T) {
	type bad struct {
		ID int `datamap:"Id,pk,sparkly"`
	}
	_, err := FromStruct(bad{})
	assert.True(t, fault.IsMappingError(err))
}

func TestNewOrdersColumnsByOrdinalThenName(t *testing.T) {
	m, err := New(nil, TableMapping{Name: "T"},
		ColumnMapping{Name: "b", Ordinal: 1},
		ColumnMapping{Name: "a", Ordinal: 1},
		ColumnMapping{Name: "z", Ordinal: 0, PrimaryKey: true},
	)
	require.NoError(t, err)
	assert.Equal(t, "z", m.Columns[0].Name)
	assert.Equal(t, "a", m.Columns[1].Name)
	assert.Equal(t, "b", m.Columns[2].Name)
	assert.Equal(t, "a", m.Columns[1].Property)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   TableMapping
		columns []ColumnMapping
		want    error
	}{
		{
			name:    "blank table",
			table:   TableMapping{},
			columns: []ColumnMapping{{Name: "Id", PrimaryKey: true}},
			want:    fault.ErrPrecondition,
		},
		{
			name:    "no primary key",
			table:   TableMapping{Name: "T"},
			columns: []ColumnMapping{{Name: "Name"}},
			want:    fault.ErrMappingIntegrity,
		},
		{
			name:  "two identity columns",
			table: TableMapping{Name: "T"},
			columns: []ColumnMapping{
				{Name: "A", PrimaryKey: true, ReadOnly: true},
				{Name: "B", PrimaryKey: true, ReadOnly: true},
			},
			want: fault.ErrMappingIntegrity,
		},
		{
			name:    "duplicate column",
			table:   TableMapping{Name: "T"},
			columns: []ColumnMapping{{Name: "A", PrimaryKey: true}, {Name: "A"}},
			want:    fault.ErrMappingIntegrity,
		},
		{
			name:    "unknown property",
			table:   TableMapping{Name: "T", Type: reflect.TypeOf(account{})},
			columns: []ColumnMapping{{Name: "Id", Property: "Nope", PrimaryKey: true}},
			want:    fault.ErrMappingIntegrity,
		},
		{
			name:    "composite key with one identity",
			table:   TableMapping{Name: "T"},
			columns: []ColumnMapping{{Name: "A", PrimaryKey: true, ReadOnly: true}, {Name: "B", PrimaryKey: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, tt.table, tt.columns...)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInferDbType(t *testing.T) {
	assert.Equal(t, BigInt, InferDbType(18))
	assert.Equal(t, Int, InferDbType(int32(1)))
	assert.Equal(t, NVarChar, InferDbType("x"))
	assert.Equal(t, Bit, InferDbType(true))
	assert.Equal(t, Float, InferDbType(1.5))
	assert.Equal(t, DateTime2, InferDbType(time.Now()))
	assert.Equal(t, VarBinary, InferDbType([]byte("x")))
	assert.Equal(t, UniqueIdentifier, InferDbType(uuid.New()))
	assert.Equal(t, Variant, InferDbType(nil))
}

func TestParseDbType(t *testing.T) {
	dt, ok := ParseDbType(" NVarChar ")
	assert.True(t, ok)
	assert.Equal(t, NVarChar, dt)

	dt, ok = ParseDbType("rowversion")
	assert.True(t, ok)
	assert.Equal(t, Timestamp, dt)

	_, ok = ParseDbType("jsonb")
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	m, err := FromStruct(account{})
	require.NoError(t, err)

	require.NoError(t, r.Register(m))
	assert.ErrorIs(t, r.Register(m), fault.ErrMappingIntegrity)

	got, ok := r.Lookup(&account{})
	assert.True(t, ok)
	assert.Same(t, m, got)
	assert.Len(t, r.Mappings(), 1)
}

func TestForDerivesOnce(t *testing.T) {
	first, err := For(account{})
	require.NoError(t, err)
	second, err := For(&account{})
	require.NoError(t, err)
	assert.Same(t, first, second)
}
