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
	"sync"

	"github.com/tomoncle/datamap/fault"
)

// Policy selects how a ContextScope relates to the ambient unit of work.
type Policy int

const (
	// Required joins the ambient unit of work and fails without one.
	Required Policy = iota
	// RequiresNew always opens a fresh unit of work.
	RequiresNew
	// RequiresNone opens a fresh unit of work and fails if one is ambient.
	RequiresNone
	// Suppress hides the ambient unit of work for the scope's lifetime.
	Suppress
)

func (p Policy) String() string {
	switch p {
	case Required:
		return "required"
	case RequiresNew:
		return "requires_new"
	case RequiresNone:
		return "requires_none"
	case Suppress:
		return "suppress"
	default:
		return "unknown"
	}
}

type slotKey struct{}

// slot holds the ambient unit of work of one logical flow.
type slot struct {
	mutex   sync.RWMutex
	current *UnitOfWork
}

func (s *slot) get() *UnitOfWork {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current
}

func (s *slot) clear() {
	s.mutex.Lock()
	s.current = nil
	s.mutex.Unlock()
}

// install derives a flow from ctx whose ambient unit of work is u.
func install(ctx context.Context, u *UnitOfWork) (context.Context, *slot) {
	s := &slot{current: u}
	return context.WithValue(ctx, slotKey{}, s), s
}

// Current returns the ambient unit of work of ctx, or nil.
func Current(ctx context.Context) *UnitOfWork {
	if ctx == nil {
		return nil
	}
	s, ok := ctx.Value(slotKey{}).(*slot)
	if !ok {
		return nil
	}
	return s.get()
}

// AmbientScope opens a unit of work and installs it as the ambient one.
// Closing the scope closes the unit of work and clears the slot.
type AmbientScope struct {
	ctx  context.Context
	slot *slot
	uow  *UnitOfWork
	once sync.Once
	err  error
}

// NewAmbientScope fails when ctx already carries an ambient unit of work.
func NewAmbientScope(ctx context.Context, f *Factory, s Settings) (*AmbientScope, error) {
	if ctx == nil {
		return nil, fault.Precondition("context")
	}
	if Current(ctx) != nil {
		return nil, fault.InvalidOperation("an ambient unit of work is already installed")
	}
	u, err := f.CreateWith(ctx, s)
	if err != nil {
		return nil, err
	}
	scoped, sl := install(ctx, u)
	return &AmbientScope{ctx: scoped, slot: sl, uow: u}, nil
}

// Context returns the flow carrying the ambient unit of work.
func (s *AmbientScope) Context() context.Context { return s.ctx }

// UnitOfWork returns the ambient unit of work.
func (s *AmbientScope) UnitOfWork() *UnitOfWork { return s.uow }

// Complete completes the ambient unit of work.
func (s *AmbientScope) Complete() error { return s.uow.Complete() }

func (s *AmbientScope) Close() error {
	s.once.Do(func() {
		s.err = s.uow.Close()
		s.slot.clear()
	})
	return s.err
}

// ContextScope applies a nesting Policy. Closing it closes the unit of work
// it opened, if any; the enclosing flow keeps its own ambient instance.
type ContextScope struct {
	policy Policy
	ctx    context.Context
	slot   *slot
	uow    *UnitOfWork
	owned  bool
	once   sync.Once
	err    error
}

// NewContextScope opens a scope under policy. f and s are only used by the
// policies that open a fresh unit of work.
func NewContextScope(ctx context.Context, policy Policy, f *Factory, s Settings) (*ContextScope, error) {
	if ctx == nil {
		return nil, fault.Precondition("context")
	}
	current := Current(ctx)
	scope := &ContextScope{policy: policy}

	switch policy {
	case Required:
		if current == nil {
			return nil, fault.InvalidOperation("policy %s needs an ambient unit of work", policy)
		}
		scope.uow = current
	case RequiresNone:
		if current != nil {
			return nil, fault.InvalidOperation("policy %s forbids an ambient unit of work", policy)
		}
		fallthrough
	case RequiresNew:
		u, err := f.CreateWith(ctx, s)
		if err != nil {
			return nil, err
		}
		scope.uow = u
		scope.owned = true
	case Suppress:
	default:
		return nil, fault.InvalidOperation("unknown scope policy %d", int(policy))
	}
	scope.ctx, scope.slot = install(ctx, scope.uow)
	return scope, nil
}

func (s *ContextScope) Policy() Policy { return s.policy }

// Context returns the flow of the scope.
func (s *ContextScope) Context() context.Context { return s.ctx }

// UnitOfWork returns the scope's unit of work, or nil under Suppress.
func (s *ContextScope) UnitOfWork() *UnitOfWork { return s.uow }

func (s *ContextScope) Close() error {
	s.once.Do(func() {
		if s.owned {
			s.err = s.uow.Close()
		}
		s.slot.clear()
	})
	return s.err
}
