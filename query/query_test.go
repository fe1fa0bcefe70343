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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage(t *testing.T) {
	tests := []struct {
		page       Page
		restricted bool
		limit      int
		skip       int
	}{
		{Page{}, false, 0, 0},
		{Page{Size: 10}, false, 0, 0},
		{Page{Number: 3}, false, 0, 0},
		{Page{Size: 10, Number: 1}, true, 10, 0},
		{Page{Size: 10, Number: 3}, true, 30, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.restricted, tt.page.Restricted(), "%+v", tt.page)
		assert.Equal(t, tt.limit, tt.page.Limit(), "%+v", tt.page)
		assert.Equal(t, tt.skip, tt.page.Skip(), "%+v", tt.page)
	}
}

func TestAllAndAny(t *testing.T) {
	assert.Equal(t, Nullary{}, All())
	assert.Equal(t, Eq("A", 1), All(Eq("A", 1)))

	got := Any(Eq("A", 1), Eq("B", 2), Eq("C", 3))
	want := Binary{Op: OrOp, Left: Binary{Op: OrOp, Left: Eq("A", 1), Right: Eq("B", 2)}, Right: Eq("C", 3)}
	assert.Equal(t, want, got)
}

func TestValueBag(t *testing.T) {
	q := New("Adults", Gt("Age", 18)).OrderBy(Asc("Name"), Desc("Age")).Paged(20, 2)

	_, ok := q.Value("@p000")
	assert.False(t, ok)

	q.Bind("@p000", 18)
	v, ok := q.Value("@p000")
	assert.True(t, ok)
	assert.Equal(t, 18, v)

	values := q.Values()
	values["@p000"] = 99
	v, _ = q.Value("@p000")
	assert.Equal(t, 18, v)

	assert.Len(t, q.Orders, 2)
	assert.True(t, q.Orders[0].Ascending)
	assert.False(t, q.Orders[1].Ascending)
	assert.Equal(t, Page{Size: 20, Number: 2}, q.Page)
}
