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

package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/compiler"
	"github.com/tomoncle/datamap/executor"
	"github.com/tomoncle/datamap/fault"
	"github.com/tomoncle/datamap/mapping"
	"github.com/tomoncle/datamap/marshal"
	"github.com/tomoncle/datamap/query"
	"github.com/tomoncle/datamap/types"
	"github.com/tomoncle/datamap/uow"
)

type baseRepositoryImpl[T any] struct {
	mapping  *mapping.Mapping
	factory  *compiler.Factory
	executor *executor.Executor
	source   *command.DataSourceMap
}

// NewRepository returns a repository for T, deriving its mapping from the
// struct tags of T unless one is registered.
func NewRepository[T any](f *compiler.Factory, e *executor.Executor) (Repository[T], error) {
	var zero T
	m, err := mapping.For(&zero)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFor[T](m, f, e)
}

// NewRepositoryFor returns a repository for T over an explicit mapping.
// The data source map is compiled once, here.
func NewRepositoryFor[T any](m *mapping.Mapping, f *compiler.Factory, e *executor.Executor) (Repository[T], error) {
	if m == nil {
		return nil, fault.Precondition("mapping")
	}
	if f == nil {
		f = compiler.NewFactory(nil, nil)
	}
	if e == nil {
		e = executor.New()
	}
	source, err := f.Build(m)
	if err != nil {
		return nil, err
	}
	return &baseRepositoryImpl[T]{mapping: m, factory: f, executor: e, source: source}, nil
}

func (r *baseRepositoryImpl[T]) Mapping() *mapping.Mapping { return r.mapping }

func (r *baseRepositoryImpl[T]) DataSource() *command.DataSourceMap { return r.source }

func (r *baseRepositoryImpl[T]) Session(ctx context.Context) (bun.IDB, error) {
	u := uow.Current(ctx)
	if u == nil {
		return nil, fault.InvalidOperation("no ambient unit of work")
	}
	return u.Session()
}

func (r *baseRepositoryImpl[T]) NewSelect(ctx context.Context) (*bun.SelectQuery, error) {
	session, err := r.Session(ctx)
	if err != nil {
		return nil, err
	}
	return session.NewSelect().ModelTableExpr(compiler.TableName(r.mapping.Table) + " AS t000"), nil
}

func (r *baseRepositoryImpl[T]) NewRaw(ctx context.Context, query string, args ...interface{}) (*bun.RawQuery, error) {
	session, err := r.Session(ctx)
	if err != nil {
		return nil, err
	}
	return session.NewRaw(query, args...), nil
}

func (r *baseRepositoryImpl[T]) command(cmd *command.Command, what string) (*command.Command, error) {
	if cmd == nil {
		return nil, fault.InvalidOperation("%s has no %s command", r.mapping.Table.TypeName(), what)
	}
	return cmd, nil
}

// bind builds the input and output parameters of cmd from source.
func bind(cmd *command.Command, source any) (*marshal.ParameterSet, error) {
	set := marshal.NewParameterSet()
	if err := marshal.ObjectToInputParameters(cmd, source, set); err != nil {
		return nil, err
	}
	if err := marshal.DeclareOutputParameters(cmd, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, keys ...any) (*T, error) {
	cmd, err := r.command(r.source.SelectOne, "select one")
	if err != nil {
		return nil, err
	}
	inputs := cmd.Inputs()
	if len(keys) != len(inputs) {
		return nil, fault.NewMappingError(r.mapping.Table.TypeName(), "",
			fmt.Sprintf("expected %d primary key values, got %d", len(inputs), len(keys)))
	}
	set := marshal.NewParameterSet()
	for i, p := range inputs {
		bp := marshal.NewBackendParameter(p)
		if err := bp.Bind(keys[i]); err != nil {
			return nil, err
		}
		set.Add(bp)
	}
	items, err := executor.Fetch[T](ctx, r.executor, cmd, set, executor.Exactly(1))
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context) ([]*T, error) {
	cmd, err := r.command(r.source.SelectAll, "select all")
	if err != nil {
		return nil, err
	}
	return executor.Fetch[T](ctx, r.executor, cmd, nil, executor.Unbounded())
}

// List compiles q and runs it. Rows preceding the requested page are
// dropped here, since the generated select only caps the leading rows.
func (r *baseRepositoryImpl[T]) List(ctx context.Context, q *query.Query) ([]*T, error) {
	if q == nil {
		return nil, fault.Precondition("query")
	}
	cmd, err := r.factory.Compiler().Select(r.mapping, q)
	if err != nil {
		return nil, err
	}
	set, err := bind(cmd, q.Values())
	if err != nil {
		return nil, err
	}
	items, err := executor.Fetch[T](ctx, r.executor, cmd, set, executor.Unbounded())
	if err != nil {
		return nil, err
	}
	if skip := q.Page.Skip(); skip > 0 {
		if skip >= len(items) {
			return []*T{}, nil
		}
		items = items[skip:]
	}
	return items, nil
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, q *query.Query) (*types.Pagination[T], error) {
	if q == nil {
		return nil, fault.Precondition("query")
	}
	if !q.Page.Restricted() {
		return nil, fault.InvalidOperation("query %q has no page", q.Name)
	}
	items, err := r.List(ctx, q)
	if err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[T](q.Page.Number, q.Page.Size)
	pagination.Items = append(pagination.Items, items...)
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) Named(ctx context.Context, name string, source any) ([]*T, error) {
	cmd, ok := r.source.For(name)
	if !ok {
		return nil, fault.NewMappingError(r.mapping.Table.TypeName(), name, "no such named query")
	}
	set, err := bind(cmd, source)
	if err != nil {
		return nil, err
	}
	return executor.Fetch[T](ctx, r.executor, cmd, set, executor.Unbounded())
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	cmd, err := r.command(r.source.Insert, "insert")
	if err != nil {
		return err
	}
	for _, e := range entity {
		if e == nil {
			return fault.Precondition("entity")
		}
		set, err := bind(cmd, e)
		if err != nil {
			return err
		}
		if err := executor.MustPersist(ctx, r.executor, cmd, set, 0, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) (bool, error) {
	return r.persist(ctx, r.source.Update, "update", entity)
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, entity *T) (bool, error) {
	return r.persist(ctx, r.source.Delete, "delete", entity)
}

func (r *baseRepositoryImpl[T]) persist(ctx context.Context, cmd *command.Command, what string, entity *T) (bool, error) {
	if entity == nil {
		return false, fault.Precondition("entity")
	}
	cmd, err := r.command(cmd, what)
	if err != nil {
		return false, err
	}
	set, err := bind(cmd, entity)
	if err != nil {
		return false, err
	}
	return executor.Persist(ctx, r.executor, cmd, set, 0, entity)
}

func (r *baseRepositoryImpl[T]) Describe(ctx context.Context) ([]executor.Column, error) {
	cmd, err := r.command(r.source.SelectNot, "select not")
	if err != nil {
		return nil, err
	}
	return r.executor.Describe(ctx, cmd)
}
