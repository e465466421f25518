// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	tr := newTestTracker(t)
	s, err := NewStack[point](0, WithAllocator(tr))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Pop()
	require.ErrorIs(t, err, ErrEmptyCollection)
	_, err = s.Peek()
	require.ErrorIs(t, err, ErrEmptyCollection)

	for i := int32(0); i < 10; i++ {
		require.NoError(t, s.Push(point{i, i, i}))
	}
	require.Equal(t, 10, s.Len())
	require.Equal(t, 16, s.Cap())

	top, err := s.Peek()
	require.NoError(t, err)
	require.Equal(t, point{9, 9, 9}, top)

	var order []int32
	for p := range s.All() {
		order = append(order, p.X)
	}
	require.Equal(t, []int32{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, order)

	ok, err := s.Contains(point{4, 4, 4})
	require.NoError(t, err)
	require.True(t, ok)

	dst := make([]point, 10)
	require.NoError(t, s.CopyTo(dst, 0))
	require.Equal(t, point{0, 0, 0}, dst[0])

	for i := int32(9); i >= 0; i-- {
		p, err := s.Pop()
		require.NoError(t, err)
		require.Equal(t, i, p.X)
	}
	require.Equal(t, 0, s.Len())
	require.Equal(t, 16, s.Cap())

	require.NoError(t, s.Push(point{}))
	require.NoError(t, s.Clear())
	require.NoError(t, s.TrimExcess())
	require.Equal(t, 0, s.Cap())
	require.EqualValues(t, 0, tr.Stats().BytesInUse)

	s.Close()
	require.False(t, s.IsAllocated())
	require.ErrorIs(t, s.Push(point{}), ErrUseAfterFree)
	_, err = s.Pop()
	require.ErrorIs(t, err, ErrUseAfterFree)
}
