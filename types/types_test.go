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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONValueAndScan(t *testing.T) {
	j := NewJSON(map[string]int{"a": 1})
	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	var out JSON[map[string]int]
	require.NoError(t, out.Scan(`{"b":2}`))
	assert.Equal(t, map[string]int{"b": 2}, out.Data)
	require.NoError(t, out.Scan([]byte(`{"c":3}`)))
	assert.Equal(t, map[string]int{"c": 3}, out.Data)
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out.Data)
	assert.Error(t, out.Scan(42))
}

func TestPaginationHasMore(t *testing.T) {
	p := NewDefaultPagination[int](1, 2)
	assert.False(t, p.HasMore())
	assert.Equal(t, 0, p.Next())
	one, two := 1, 2
	p.Items = append(p.Items, &one, &two)
	assert.True(t, p.HasMore())
	assert.Equal(t, 2, p.Next())
}

func TestPaginationOffset(t *testing.T) {
	assert.Equal(t, 0, NewDefaultPagination[int](1, 10).Offset())
	assert.Equal(t, 20, NewDefaultPagination[int](3, 10).Offset())
	assert.Equal(t, 0, NewDefaultPagination[int](0, 10).Offset())
}
