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
	"sort"
	"sync"

	"github.com/tomoncle/datamap/fault"
)

var defaultRegistry = NewRegistry()

// Registry stores validated mappings keyed by their Go type.
type Registry interface {
	Register(m *Mapping) error
	Lookup(v any) (*Mapping, bool)
	Mappings() []*Mapping
}

type mappingRegistry struct {
	mappings map[reflect.Type]*Mapping
	mutex    sync.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry() Registry {
	return &mappingRegistry{
		mappings: make(map[reflect.Type]*Mapping),
	}
}

func (r *mappingRegistry) Register(m *Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Table.Type == nil {
		return fault.NewMappingError(m.Table.Name, "", "mapping has no bound type")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.mappings[m.Table.Type]; ok {
		return fault.NewMappingError(m.Table.TypeName(), "", "type already has a table mapping")
	}
	r.mappings[m.Table.Type] = m
	return nil
}

func (r *mappingRegistry) Lookup(v any) (*Mapping, bool) {
	t := structType(v)
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	m, ok := r.mappings[t]
	return m, ok
}

func (r *mappingRegistry) Mappings() []*Mapping {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Mapping, 0, len(r.mappings))
	for _, m := range r.mappings {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Table.TypeName() < result[j].Table.TypeName()
	})
	return result
}

// Register adds a mapping to the default registry.
func Register(m *Mapping) error {
	return defaultRegistry.Register(m)
}

// Lookup finds the mapping of v's type in the default registry.
func Lookup(v any) (*Mapping, bool) {
	return defaultRegistry.Lookup(v)
}

// For returns the registered mapping of v's type, deriving and registering
// it from struct tags on first use.
func For(v any) (*Mapping, error) {
	if m, ok := Lookup(v); ok {
		return m, nil
	}
	m, err := FromStruct(v)
	if err != nil {
		return nil, err
	}
	if err := Register(m); err != nil {
		if existing, ok := Lookup(v); ok {
			return existing, nil
		}
		return nil, err
	}
	return m, nil
}

// Mappings returns all mappings of the default registry ordered by type name.
func Mappings() []*Mapping {
	return defaultRegistry.Mappings()
}
