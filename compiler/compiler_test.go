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
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/fault"
	"github.com/tomoncle/datamap/mapping"
	"github.com/tomoncle/datamap/query"
)

type person struct {
	ID                 int64     `datamap:"Id,pk,readonly"`
	Name               string    `datamap:"Name,size:100"`
	Age                int       `datamap:"Age"`
	ModifiedAt         time.Time `datamap:"ModifiedAt,concurrency,prev:Previous"`
	PreviousModifiedAt time.Time
}

func (person) TableName() string { return "Person" }

type document struct {
	ID                 int64     `datamap:"Id,pk,readonly"`
	Name               string    `datamap:"Name"`
	ModifiedAt         time.Time `datamap:"ModifiedAt,concurrency,prev:Previous"`
	PreviousModifiedAt time.Time
}

type adult struct {
	ID   int64  `datamap:"Id,pk"`
	Name string `datamap:"Name"`
}

func (adult) TableName() string { return "Adults" }
func (adult) IsView() bool      { return true }

const personColumns = "t000.[Id], t000.[Name], t000.[Age], t000.[ModifiedAt]"

func personMapping(t *testing.T) *mapping.Mapping {
	t.Helper()
	m, err := mapping.FromStruct(person{})
	require.NoError(t, err)
	return m
}

func names(params []command.Parameter) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, p.Name+"="+p.Property)
	}
	return out
}

func TestUpdateWithConcurrencyCheck(t *testing.T) {
	m, err := mapping.FromStruct(document{})
	require.NoError(t, err)

	cmd, err := New(Options{}).Update(m)
	require.NoError(t, err)

	assert.Equal(t, []string{"@p000=Name", "@p001=ID", "@p002=PreviousModifiedAt"}, names(cmd.Parameters))
	assert.Equal(t,
		"UPDATE [t000] SET [Name] = @p000 FROM [document] [t000] WHERE [t000].[Id] = @p001 AND [t000].[ModifiedAt] = @p002",
		cmd.Text)
}

func TestDelete(t *testing.T) {
	cmd, err := New(Options{}).Delete(personMapping(t))
	require.NoError(t, err)

	assert.Equal(t,
		"DELETE [t000] FROM [Person] [t000] WHERE [t000].[Id] = @p000 AND [t000].[ModifiedAt] = @p001",
		cmd.Text)
	assert.Equal(t, []string{"@p000=ID", "@p001=PreviousModifiedAt"}, names(cmd.Parameters))
}

func TestInsertInlineIdentity(t *testing.T) {
	cmd, err := New(Options{}).Insert(personMapping(t))
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO [Person] ([Name], [Age], [ModifiedAt]) VALUES (@p000, @p001, @p002); SET @p003 = SCOPE_IDENTITY()",
		cmd.Text)
	require.Len(t, cmd.Parameters, 4)
	out := cmd.Parameters[3]
	assert.Equal(t, command.Output, out.Direction)
	assert.Equal(t, "ID", out.Property)
	assert.Empty(t, cmd.IdentityQuery)
	assert.Len(t, cmd.Outputs(), 1)
}

func TestInsertBatchIdentity(t *testing.T) {
	cmd, err := New(Options{BatchIdentityFetch: true}).Insert(personMapping(t))
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO [Person] ([Name], [Age], [ModifiedAt]) VALUES (@p000, @p001, @p002)", cmd.Text)
	assert.Equal(t, "SELECT @@IDENTITY AS [Id]", cmd.IdentityQuery)
	assert.Equal(t, []command.Field{{Name: "Id", Property: "ID"}}, cmd.Fields)
	assert.Empty(t, cmd.Outputs())
}

func TestInsertDefaultValues(t *testing.T) {
	m := mapping.MustNew(nil, mapping.TableMapping{Name: "Ticket", Schema: "ops"},
		mapping.ColumnMapping{Name: "Id", PrimaryKey: true, ReadOnly: true, DbType: mapping.BigInt})

	cmd, err := New(Options{}).Insert(m)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO [ops].[Ticket] DEFAULT VALUES; SET @p000 = SCOPE_IDENTITY()", cmd.Text)
}

func TestSelectForPredicate(t *testing.T) {
	m := personMapping(t)
	q := query.New("Adults", query.Gt("Age", 18)).OrderBy(query.Asc("Name"))

	fors, err := New(Options{}).SelectFor(m, q)
	require.NoError(t, err)
	require.Len(t, fors, 1)
	assert.Equal(t, "Adults", fors[0].Name)

	cmd := fors[0].Command
	assert.Equal(t,
		"SELECT  "+personColumns+" FROM [Person] t000 WHERE (1 = 1) AND (t000.[Age] > @p000) ORDER BY t000.[Name] ASC",
		cmd.Text)
	require.Len(t, cmd.Parameters, 1)
	assert.Equal(t, "@p000", cmd.Parameters[0].Name)
	assert.Equal(t, mapping.BigInt, cmd.Parameters[0].DbType)

	v, ok := q.Value("@p000")
	require.True(t, ok)
	assert.Equal(t, 18, v)
	assert.Len(t, cmd.Fields, 4)
}

func TestSelectForShapes(t *testing.T) {
	m := personMapping(t)
	tests := []struct {
		name  string
		query *query.Query
		text  string
	}{
		{
			name:  "nullary with default sort",
			query: query.New("All", query.True()),
			text:  "SELECT  " + personColumns + " FROM [Person] t000 WHERE (1 = 1) AND (1 = 1) ORDER BY t000.[Id] ASC",
		},
		{
			name:  "nil expression",
			query: query.New("Nil", nil),
			text:  "SELECT  " + personColumns + " FROM [Person] t000 WHERE (1 = 1) AND (1 = 1) ORDER BY t000.[Id] ASC",
		},
		{
			name:  "paged",
			query: query.New("Page", query.True()).OrderBy(query.Desc("Age")).Paged(10, 3),
			text:  "SELECT TOP 30 " + personColumns + " FROM [Person] t000 WHERE (1 = 1) AND (1 = 1) ORDER BY t000.[Age] DESC",
		},
		{
			name: "composite",
			query: query.New("Mix", query.All(
				query.Like("Name", "A%"),
				query.NotExpr(query.IsNull("ModifiedAt")),
				query.Any(query.Le("Age", 30), query.Ne("Age", 40)),
			)),
			text: "SELECT  " + personColumns + " FROM [Person] t000 WHERE (1 = 1) AND " +
				"(((t000.[Name] LIKE @p000) AND NOT ((t000.[ModifiedAt]) IS NULL)) AND ((t000.[Age] <= @p001) OR (t000.[Age] <> @p002)))" +
				" ORDER BY t000.[Id] ASC",
		},
		{
			name:  "not null by column name",
			query: query.New("Named", query.IsNotNull("ModifiedAt")).OrderBy(query.Asc("Id")),
			text:  "SELECT  " + personColumns + " FROM [Person] t000 WHERE (1 = 1) AND (t000.[ModifiedAt]) IS NOT NULL ORDER BY t000.[Id] ASC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := New(Options{}).Select(m, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.text, cmd.Text)
			for _, p := range cmd.Parameters {
				_, ok := tt.query.Value(p.Name)
				assert.True(t, ok, p.Name)
			}
		})
	}
}

func TestSelectForNoQueries(t *testing.T) {
	fors, err := New(Options{}).SelectFor(personMapping(t))
	require.NoError(t, err)
	assert.Empty(t, fors)
}

func TestSelectForUnresolved(t *testing.T) {
	m := personMapping(t)
	c := New(Options{})

	_, err := c.Select(m, query.New("Bad", query.Eq("Shoe", 42)))
	var me *fault.MappingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Shoe", me.Member)
	assert.Contains(t, err.Error(), "compiler.person")

	_, err = c.Select(m, query.New("BadSort", query.True()).OrderBy(query.Asc("Height")))
	assert.True(t, fault.IsMappingError(err))
}

func TestSelectForUnsupportedOperator(t *testing.T) {
	m := personMapping(t)
	c := New(Options{})

	_, err := c.Select(m, query.New("Op", query.Binary{Op: query.BinaryOp(99), Left: query.F("Age"), Right: query.V(1)}))
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)

	_, err = c.Select(m, query.New("Unary", query.Unary{Op: query.UnaryOp(99), Operand: query.F("Age")}))
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)

	_, err = c.Select(m, query.New("Nil", query.And(query.F("Age"), nil)))
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)
}

func TestSelectOneAllNot(t *testing.T) {
	m := personMapping(t)
	c := New(Options{})

	one, err := c.SelectOne(m)
	require.NoError(t, err)
	assert.Equal(t, "SELECT  "+personColumns+" FROM [Person] t000 WHERE t000.[Id] = @p000 ORDER BY t000.[Id] ASC", one.Text)
	assert.Equal(t, []string{"@p000=ID"}, names(one.Parameters))

	all, err := c.SelectAll(m)
	require.NoError(t, err)
	assert.Equal(t, "SELECT  "+personColumns+" FROM [Person] t000 ORDER BY t000.[Id] ASC", all.Text)
	assert.Empty(t, all.Parameters)

	not, err := c.SelectNot(m)
	require.NoError(t, err)
	assert.Equal(t, "SELECT  "+personColumns+" FROM [Person] t000 WHERE -1 = 1", not.Text)
}

func TestCompileView(t *testing.T) {
	m, err := mapping.FromStruct(adult{})
	require.NoError(t, err)

	dsm, err := New(Options{}).Compile(m)
	require.NoError(t, err)
	assert.Nil(t, dsm.Insert)
	assert.Nil(t, dsm.Update)
	assert.Nil(t, dsm.Delete)
	assert.NotNil(t, dsm.SelectAll)
	assert.NotNil(t, dsm.SelectOne)
	assert.NotNil(t, dsm.SelectNot)
}

func TestCompileIsDeterministic(t *testing.T) {
	m := personMapping(t)
	c := New(Options{})

	first, err := c.Compile(m, query.New("Adults", query.Ge("Age", 18)))
	require.NoError(t, err)
	second, err := c.Compile(m, query.New("Adults", query.Ge("Age", 18)))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileRejectsDuplicateIdentity(t *testing.T) {
	m := &mapping.Mapping{
		Table: mapping.TableMapping{Name: "Twin"},
		Columns: []mapping.ColumnMapping{
			{Name: "A", Property: "A", PrimaryKey: true, ReadOnly: true},
			{Name: "B", Property: "B", PrimaryKey: true, ReadOnly: true},
		},
	}
	_, err := New(Options{}).Compile(m)
	assert.True(t, fault.IsMappingError(err))
}

func TestUpdateWithoutUpdatableColumns(t *testing.T) {
	m := mapping.MustNew(nil, mapping.TableMapping{Name: "Log"},
		mapping.ColumnMapping{Name: "Id", PrimaryKey: true, ReadOnly: true})
	_, err := New(Options{}).Update(m)
	assert.True(t, fault.IsMappingError(err))
}

func TestCompileIdentityOnlyTable(t *testing.T) {
	m := mapping.MustNew(nil, mapping.TableMapping{Name: "Log"},
		mapping.ColumnMapping{Name: "Id", PrimaryKey: true, ReadOnly: true, DbType: mapping.BigInt},
		mapping.ColumnMapping{Name: "Version", ConcurrencyCheck: true, ReadOnly: true, DbType: mapping.BigInt})

	dsm, err := New(Options{BatchIdentityFetch: true}).Compile(m)
	require.NoError(t, err)
	assert.Nil(t, dsm.Update)
	require.NotNil(t, dsm.Insert)
	assert.Equal(t, "INSERT INTO [Log] DEFAULT VALUES", dsm.Insert.Text)
	assert.Equal(t, "SELECT @@IDENTITY AS [Id]", dsm.Insert.IdentityQuery)
	require.NotNil(t, dsm.Delete)
	assert.Contains(t, dsm.Delete.Text, "[t000].[Version] = @p001")
}

func TestFactoryMergesFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"person.datamap.yaml": {Data: []byte(`
type: person
select_for:
  - name: Adults
    command:
      text: "SELECT 1"
  - name: ByName
    command:
      text: "SELECT t000.[Id] FROM [Person] t000 WHERE t000.[Name] = @p000"
      parameters:
        - name: "@p000"
          type: nvarchar
          property: Name
`)},
	}
	f := NewFactory(New(Options{}), fsys)
	m := personMapping(t)

	dsm, err := f.Build(m, query.New("Adults", query.Gt("Age", 18)))
	require.NoError(t, err)
	require.Len(t, dsm.SelectFor, 2)

	adults, ok := dsm.For("Adults")
	require.True(t, ok)
	assert.Contains(t, adults.Text, "(t000.[Age] > @p000)")

	byName, ok := dsm.For("ByName")
	require.True(t, ok)
	assert.Equal(t, mapping.NVarChar, byName.Parameters[0].DbType)

	cached, err := f.Build(m)
	require.NoError(t, err)
	again, err := f.Build(m)
	require.NoError(t, err)
	assert.Equal(t, cached, again)
	assert.NotSame(t, cached, again)

	cached.SelectAll.Text = "SELECT 0"
	again, err = f.Build(m)
	require.NoError(t, err)
	assert.Contains(t, again.SelectAll.Text, "FROM [Person] t000")
}

func TestFactoryKeepsSameNamedTypesApart(t *testing.T) {
	type person struct {
		ID    int64
		Label string
	}
	archived := mapping.MustNew(person{}, mapping.TableMapping{Name: "ArchivedPerson"},
		mapping.ColumnMapping{Name: "Id", Property: "ID", PrimaryKey: true, ReadOnly: true, DbType: mapping.BigInt},
		mapping.ColumnMapping{Name: "Label", DbType: mapping.NVarChar})
	require.Equal(t, "person", archived.Table.Type.Name())

	f := NewFactory(New(Options{}), nil)
	first, err := f.Build(personMapping(t))
	require.NoError(t, err)
	second, err := f.Build(archived)
	require.NoError(t, err)

	assert.Contains(t, first.SelectAll.Text, "FROM [Person] t000")
	assert.Equal(t, "SELECT  t000.[Id], t000.[Label] FROM [ArchivedPerson] t000 ORDER BY t000.[Id] ASC",
		second.SelectAll.Text)
	assert.Contains(t, second.Insert.Text, "INSERT INTO [ArchivedPerson]")
}

func TestCompilePredicateValues(t *testing.T) {
	q := query.New("Range", query.And(query.Ge("Age", 18), query.Lt("Age", 65))).Paged(20, 1)

	pred, err := CompilePredicate(personMapping(t), Alias(0), q)
	require.NoError(t, err)
	assert.Equal(t, "TOP 20", pred.Top)
	assert.Equal(t, "t000.[Id] ASC", pred.Sort)
	assert.Equal(t, "((t000.[Age] >= @p000) AND (t000.[Age] < @p001))", pred.Text)
	assert.Equal(t, []any{18, 65}, pred.Values)
	assert.Equal(t, map[string]any{"@p000": 18, "@p001": 65}, q.Values())
}
