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

package datamap

import (
	"context"
	"sync"

	"github.com/tomoncle/datamap/compiler"
	"github.com/tomoncle/datamap/database"
	"github.com/tomoncle/datamap/executor"
	"github.com/tomoncle/datamap/fault"
	"github.com/tomoncle/datamap/query"
	"github.com/tomoncle/datamap/repository"
	"github.com/tomoncle/datamap/types"
	"github.com/tomoncle/datamap/uow"
)

// Service runs repository operations inside a unit of work. A call joins
// the ambient unit of work of ctx when there is one and leaves its outcome
// to the owner, except that failures mark it divergent. Otherwise the call
// opens its own unit of work, completing it on success.
type Service[T any] interface {
	// Get returns a single entity by its primary key values.
	Get(ctx context.Context, keys ...any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the query.
	List(ctx context.Context, q *query.Query) ([]*T, error)

	// Page returns one page of entities that match the query.
	Page(ctx context.Context, q *query.Query) (*types.Pagination[T], error)

	// Named runs a named query with parameters read from source.
	Named(ctx context.Context, name string, source any) ([]*T, error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// Update modifies an existing entity. It reports false when the row was
	// changed or removed concurrently.
	Update(ctx context.Context, model *T) (bool, error)

	// Delete removes an entity. It reports false when the row was changed or
	// removed concurrently.
	Delete(ctx context.Context, model *T) (bool, error)

	// Repository returns the underlying repository.
	Repository() repository.Repository[T]
}

// Options wires a service.
type Options struct {
	Factory  *uow.Factory
	Settings uow.Settings
	Compiler *compiler.Factory
	Executor *executor.Executor
}

// SettingsFromConfig selects the named connection, or the default one, and
// the unit of work settings of cfg.
func SettingsFromConfig(cfg *database.Config, name string) (uow.Settings, error) {
	if cfg == nil {
		return uow.Settings{}, fault.Precondition("config")
	}
	cc, err := cfg.Connection(name)
	if err != nil {
		return uow.Settings{}, err
	}
	level, err := cfg.UnitOfWork.Isolation()
	if err != nil {
		return uow.Settings{}, err
	}
	return uow.Settings{
		Kind:             cc.Kind,
		ConnectionString: cc.ConnectionString,
		Transactional:    cfg.UnitOfWork.Transactional,
		IsolationLevel:   level,
	}, nil
}

// DefaultOptions builds options from the database initialized by
// database.InitDB.
func DefaultOptions() (Options, error) {
	f := database.GetDatabaseFactory()
	cfg := database.GetConfig()
	if f == nil || cfg == nil {
		return Options{}, fault.InvalidOperation("database is not initialized")
	}
	settings, err := SettingsFromConfig(cfg, "")
	if err != nil {
		return Options{}, err
	}
	c := compiler.New(compiler.Options{BatchIdentityFetch: cfg.Compiler.BatchIdentityFetch})
	return Options{
		Factory:  uow.NewFactory(f),
		Settings: settings,
		Compiler: compiler.NewFactory(c, nil),
		Executor: executor.New(executor.NewLogObserver(executor.WithEnabled(false))),
	}, nil
}

type baseServiceImpl[T any] struct {
	opts Options
	repo repository.Repository[T]
	once sync.Once
	err  error
}

// NewService returns a Service over opts.
func NewService[T any](opts Options) (Service[T], error) {
	s := &baseServiceImpl[T]{opts: opts}
	if _, err := s.baseRepo(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewDefaultService returns a Service over the database initialized by
// database.InitDB.
func NewDefaultService[T any]() (Service[T], error) {
	opts, err := DefaultOptions()
	if err != nil {
		return nil, err
	}
	return NewService[T](opts)
}

func (s *baseServiceImpl[T]) baseRepo() (repository.Repository[T], error) {
	s.once.Do(func() {
		s.repo, s.err = repository.NewRepository[T](s.opts.Compiler, s.opts.Executor)
	})
	return s.repo, s.err
}

func (s *baseServiceImpl[T]) Repository() repository.Repository[T] {
	return s.repo
}

// within runs fn in a unit of work. ok=false from fn is a lost race: it
// marks the unit of work divergent without being an error.
func (s *baseServiceImpl[T]) within(ctx context.Context, fn func(ctx context.Context) (bool, error)) (bool, error) {
	if u := uow.Current(ctx); u != nil {
		ok, err := fn(ctx)
		if err != nil {
			u.Divergent()
		}
		return ok, err
	}

	scope, err := uow.NewAmbientScope(ctx, s.opts.Factory, s.opts.Settings)
	if err != nil {
		return false, err
	}
	ok, err := fn(scope.Context())
	if err != nil || !ok {
		scope.UnitOfWork().Divergent()
	} else {
		err = scope.Complete()
	}
	if cerr := scope.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return ok, err
}

func (s *baseServiceImpl[T]) read(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := s.within(ctx, func(ctx context.Context) (bool, error) {
		return true, fn(ctx)
	})
	return err
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, keys ...any) (out *T, err error) {
	err = s.read(ctx, func(ctx context.Context) (err error) {
		out, err = s.repo.GetOne(ctx, keys...)
		return err
	})
	return out, err
}

func (s *baseServiceImpl[T]) All(ctx context.Context) (out []*T, err error) {
	err = s.read(ctx, func(ctx context.Context) (err error) {
		out, err = s.repo.GetAll(ctx)
		return err
	})
	return out, err
}

func (s *baseServiceImpl[T]) List(ctx context.Context, q *query.Query) (out []*T, err error) {
	err = s.read(ctx, func(ctx context.Context) (err error) {
		out, err = s.repo.List(ctx, q)
		return err
	})
	return out, err
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, q *query.Query) (out *types.Pagination[T], err error) {
	err = s.read(ctx, func(ctx context.Context) (err error) {
		out, err = s.repo.Page(ctx, q)
		return err
	})
	return out, err
}

func (s *baseServiceImpl[T]) Named(ctx context.Context, name string, source any) (out []*T, err error) {
	err = s.read(ctx, func(ctx context.Context) (err error) {
		out, err = s.repo.Named(ctx, name, source)
		return err
	})
	return out, err
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	return s.read(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, model...)
	})
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) (bool, error) {
	return s.within(ctx, func(ctx context.Context) (bool, error) {
		return s.repo.Update(ctx, model)
	})
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, model *T) (bool, error) {
	return s.within(ctx, func(ctx context.Context) (bool, error) {
		return s.repo.Delete(ctx, model)
	})
}
