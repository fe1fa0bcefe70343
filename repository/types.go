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

	"github.com/uptrace/bun"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/executor"
	"github.com/tomoncle/datamap/mapping"
	"github.com/tomoncle/datamap/query"
	"github.com/tomoncle/datamap/types"
)

// CrudRepository defines the compiled CRUD operations of a mapped type.
// Every operation runs on the ambient unit of work of ctx.
type CrudRepository[T any] interface {
	// GetOne reads the entity with the given primary key values, in key
	// order. Anything but exactly one row is an idempotency failure.
	GetOne(ctx context.Context, keys ...any) (*T, error)

	GetAll(ctx context.Context) ([]*T, error)

	List(ctx context.Context, q *query.Query) ([]*T, error)

	// Named runs a named select, compiled or loaded from the fallback
	// resource, binding its parameters from source.
	Named(ctx context.Context, name string, source any) ([]*T, error)

	Create(ctx context.Context, entity ...*T) error

	// Update and Delete report false when no row matched the key and the
	// previously observed concurrency values.
	Update(ctx context.Context, entity *T) (bool, error)

	Delete(ctx context.Context, entity *T) (bool, error)
}

// PageQueryRepository defines pagination over predicate queries.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, q *query.Query) (*types.Pagination[T], error)
}

// Repository combines CRUD and pagination with access to the compiled
// commands and to Bun query builders bound to the ambient unit of work.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]
	Mapping() *mapping.Mapping
	DataSource() *command.DataSourceMap
	Describe(ctx context.Context) ([]executor.Column, error)
	Session(ctx context.Context) (bun.IDB, error)
	NewSelect(ctx context.Context) (*bun.SelectQuery, error)
	NewRaw(ctx context.Context, query string, args ...interface{}) (*bun.RawQuery, error)
}
