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
	"fmt"
	"io/fs"
	"sync"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/mapping"
	"github.com/tomoncle/datamap/query"
)

// Factory compiles data source maps and completes them with the packaged
// fallback resources found in its file system. Maps compiled without
// queries are cached per mapping, and callers receive their own copy.
type Factory struct {
	compiler *Compiler
	fallback fs.FS

	mutex sync.RWMutex
	cache map[*mapping.Mapping]*command.DataSourceMap
}

// NewFactory returns a factory over c. fallback may be nil.
func NewFactory(c *Compiler, fallback fs.FS) *Factory {
	if c == nil {
		c = New(Options{})
	}
	return &Factory{
		compiler: c,
		fallback: fallback,
		cache:    make(map[*mapping.Mapping]*command.DataSourceMap),
	}
}

// Compiler returns the underlying compiler.
func (f *Factory) Compiler() *Compiler {
	return f.compiler
}

// Build compiles m with queries and merges the fallback resource of its
// type. Compiled entries take precedence over fallback entries.
func (f *Factory) Build(m *mapping.Mapping, queries ...*query.Query) (*command.DataSourceMap, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		f.mutex.RLock()
		cached, ok := f.cache[m]
		f.mutex.RUnlock()
		if ok {
			return cached.Clone(), nil
		}
	}

	dsm, err := f.compiler.Compile(m, queries...)
	if err != nil {
		return nil, err
	}
	fallback, err := command.LoadFallback(f.fallback, resourceName(m))
	if err != nil {
		return nil, fmt.Errorf("failed to build data source map for %s: %w", m.Table.TypeName(), err)
	}
	dsm.Merge(fallback)

	if len(queries) == 0 {
		f.mutex.Lock()
		f.cache[m] = dsm
		f.mutex.Unlock()
		return dsm.Clone(), nil
	}
	return dsm, nil
}

// resourceName is the bare type name, or the table name for unbound mappings.
func resourceName(m *mapping.Mapping) string {
	if m.Table.Type != nil && m.Table.Type.Name() != "" {
		return m.Table.Type.Name()
	}
	return m.Table.Name
}
