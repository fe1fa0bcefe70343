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
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datamap/mapping"
)

const personFallback = `
type: Person
select_for:
  - name: ByEmail
    command:
      text: "SELECT t000.[Id] FROM [Person] t000 WHERE t000.[Email] = @p000"
      timeout: 5s
      parameters:
        - name: "@p000"
          type: nvarchar
          size: 200
          property: Email
      fields:
        - name: Id
          property: ID
  - name: Adults
    command:
      text: "SELECT 1"
`

func TestLoadFallback(t *testing.T) {
	fsys := fstest.MapFS{"Person.datamap.yaml": {Data: []byte(personFallback)}}

	m, err := LoadFallback(fsys, "Person")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Len(t, m.SelectFor, 2)

	cmd, ok := m.For("ByEmail")
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, cmd.Timeout)
	require.Len(t, cmd.Parameters, 1)
	assert.Equal(t, mapping.NVarChar, cmd.Parameters[0].DbType)
	assert.Equal(t, Input, cmd.Parameters[0].Direction)
	assert.Equal(t, "ID", cmd.Fields[0].Property)
}

func TestLoadFallbackMissingIsNotAnError(t *testing.T) {
	m, err := LoadFallback(fstest.MapFS{}, "Person")
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = LoadFallback(nil, "Person")
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestLoadFallbackInvalid(t *testing.T) {
	fsys := fstest.MapFS{"Person.datamap.yaml": {Data: []byte("select_for: [")}}
	_, err := LoadFallback(fsys, "Person")
	assert.Error(t, err)
}

func TestMergeKeepsCompiledEntries(t *testing.T) {
	compiled := &DataSourceMap{SelectFor: []For{{Name: "Adults", Command: Command{Text: "compiled"}}}}
	fallback, err := LoadFallback(fstest.MapFS{"Person.datamap.yaml": {Data: []byte(personFallback)}}, "Person")
	require.NoError(t, err)

	compiled.Merge(fallback)
	require.Len(t, compiled.SelectFor, 2)

	adults, _ := compiled.For("Adults")
	assert.Equal(t, "compiled", adults.Text)
	_, ok := compiled.For("ByEmail")
	assert.True(t, ok)

	compiled.Merge(nil)
	assert.Len(t, compiled.SelectFor, 2)
}

func TestMarshalRoundTripsDirection(t *testing.T) {
	m := &DataSourceMap{
		Type: "Person",
		Insert: &Command{
			Text:       "INSERT",
			Parameters: []Parameter{{Name: "@p001", Direction: Output, DbType: mapping.BigInt, Property: "ID"}},
		},
	}
	data, err := m.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "direction: out")
	assert.Contains(t, string(data), "type: bigint")
}

func TestCommandDirections(t *testing.T) {
	cmd := &Command{Parameters: []Parameter{
		{Name: "@p000", Direction: Input},
		{Name: "@p001", Direction: Output},
		{Name: "@p002", Direction: InputOutput},
	}}
	assert.Len(t, cmd.Inputs(), 2)
	assert.Len(t, cmd.Outputs(), 2)

	p, ok := cmd.Parameter("@p001")
	assert.True(t, ok)
	assert.Equal(t, Output, p.Direction)
	_, ok = cmd.Parameter("@p009")
	assert.False(t, ok)
}

func TestDataSourceMapCloneIsIndependent(t *testing.T) {
	m := &DataSourceMap{
		Type:      "Person",
		SelectAll: &Command{Text: "SELECT 1", Fields: []Field{{Name: "Id", Property: "ID"}}},
		SelectFor: []For{{Name: "ByEmail", Command: Command{
			Text:       "SELECT 2",
			Parameters: []Parameter{{Name: "@p000", Property: "Email"}},
		}}},
	}

	c := m.Clone()
	require.NotNil(t, c)
	assert.Equal(t, m, c)

	c.SelectAll.Text = "changed"
	c.SelectAll.Fields[0].Property = "Other"
	c.SelectFor[0].Command.Parameters[0].Property = "Other"
	c.SelectFor = append(c.SelectFor, For{Name: "Extra"})

	assert.Equal(t, "SELECT 1", m.SelectAll.Text)
	assert.Equal(t, "ID", m.SelectAll.Fields[0].Property)
	assert.Equal(t, "Email", m.SelectFor[0].Command.Parameters[0].Property)
	assert.Len(t, m.SelectFor, 1)
	assert.Nil(t, m.Insert.Clone())
}
