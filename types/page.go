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

package types

// Pagination is one page of a paged list. Number is 1-based.
type Pagination[T any] struct {
	Number int
	Size   int
	Items  []*T
}

// NewDefaultPagination constructs an empty page.
func NewDefaultPagination[T any](number int, size int) *Pagination[T] {
	return &Pagination[T]{Number: number, Size: size, Items: make([]*T, 0, size)}
}

// Offset is the number of rows that precede this page.
func (p *Pagination[T]) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// HasMore reports whether the page is full, so a following page may exist.
func (p *Pagination[T]) HasMore() bool {
	return p.Size > 0 && len(p.Items) == p.Size
}

// Next returns the position of the following page, or 0 when this page
// was not full.
func (p *Pagination[T]) Next() int {
	if !p.HasMore() {
		return 0
	}
	return p.Number + 1
}
