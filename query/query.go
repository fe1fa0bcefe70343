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

package query

import "sync"

// Order sorts by one mapped property.
type Order struct {
	Facet     Facet
	Ascending bool
}

// Asc sorts ascending by the property name.
func Asc(name string) Order { return Order{Facet: F(name), Ascending: true} }

// Desc sorts descending by the property name.
func Desc(name string) Order { return Order{Facet: F(name)} }

// Page restricts the result to a 1-based page. Zero values mean no
// restriction.
type Page struct {
	Size   int
	Number int
}

// Restricted reports whether both size and number are set.
func (p Page) Restricted() bool {
	return p.Size > 0 && p.Number > 0
}

// Limit returns the leading-row cap covering every row up to the end of the
// page, or 0 when unrestricted.
func (p Page) Limit() int {
	if !p.Restricted() {
		return 0
	}
	return p.Size * p.Number
}

// Skip returns the number of leading rows that precede the page.
func (p Page) Skip() int {
	if !p.Restricted() {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Query carries filter, sort and paging intent plus a value bag that the
// compiler fills with the literals of the predicate, keyed by generated
// parameter name.
type Query struct {
	Name       string
	Expression Expression
	Orders     []Order
	Page       Page

	mu     sync.RWMutex
	values map[string]any
}

// New returns a named query over the predicate e.
func New(name string, e Expression) *Query {
	return &Query{Name: name, Expression: e}
}

// OrderBy appends sort orders.
func (q *Query) OrderBy(orders ...Order) *Query {
	q.Orders = append(q.Orders, orders...)
	return q
}

// Paged sets the page.
func (q *Query) Paged(size, number int) *Query {
	q.Page = Page{Size: size, Number: number}
	return q
}

// Bind stores a value in the value bag.
func (q *Query) Bind(name string, v any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.values == nil {
		q.values = make(map[string]any)
	}
	q.values[name] = v
}

// Value reads a value from the value bag.
func (q *Query) Value(name string) (any, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	v, ok := q.values[name]
	return v, ok
}

// Values returns a copy of the value bag.
func (q *Query) Values() map[string]any {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make(map[string]any, len(q.values))
	for k, v := range q.values {
		out[k] = v
	}
	return out
}
