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

package uow

import (
	"context"
	"io"
	"sync"
)

// Wrapper guards a context shared with the ambient unit of work. Closing
// forwards to the wrapped value only when the ambient unit of work of the
// closing flow is not the one that created the wrapper; otherwise the value
// is closed by that unit of work. The value is closed at most once.
type Wrapper[T io.Closer] struct {
	value   T
	ctx     context.Context
	creator *UnitOfWork
	once    sync.Once
	err     error
}

// Wrap binds v to the ambient unit of work of ctx, if any.
func Wrap[T io.Closer](ctx context.Context, v T) (*Wrapper[T], error) {
	w := &Wrapper[T]{value: v, ctx: ctx, creator: Current(ctx)}
	if w.creator != nil {
		if err := w.creator.Attach(closerFunc(w.release)); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Value returns the wrapped value.
func (w *Wrapper[T]) Value() T { return w.value }

// Close closes the wrapper from the flow it was created in.
func (w *Wrapper[T]) Close() error {
	return w.CloseIn(w.ctx)
}

// CloseIn closes the wrapper from the flow of ctx, such as a nested
// RequiresNew or Suppress scope.
func (w *Wrapper[T]) CloseIn(ctx context.Context) error {
	if w.creator != nil && Current(ctx) == w.creator && !w.creator.Disposed() {
		return nil
	}
	return w.release()
}

func (w *Wrapper[T]) release() error {
	w.once.Do(func() { w.err = w.value.Close() })
	return w.err
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
