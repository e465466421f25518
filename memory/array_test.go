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

func TestArray(t *testing.T) {
	tr := newTestTracker(t)
	_, err := NewArray[int](0, true, WithAllocator(tr))
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewArrayFrom([]int{}, WithAllocator(tr))
	require.ErrorIs(t, err, ErrInvalidArgument)

	a, err := NewArray[uint16](8, true, WithAllocator(tr))
	require.NoError(t, err)
	defer a.Close()
	require.Equal(t, 8, a.Len())
	for _, v := range a.All() {
		require.Zero(t, v)
	}

	require.NoError(t, a.Set(7, 42))
	v, err := a.Get(7)
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
	i, err := a.IndexOf(42)
	require.NoError(t, err)
	require.Equal(t, 7, i)
	ok, err := a.Contains(43)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = a.Get(8)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	require.ErrorIs(t, a.Set(-1, 0), ErrIndexOutOfRange)

	require.NoError(t, a.Fill(3))
	require.Equal(t, []uint16{3, 3, 3, 3, 3, 3, 3, 3}, a.Slice())
	require.NoError(t, a.Clear())
	require.Equal(t, make([]uint16, 8), a.Slice())

	b, err := NewArrayFrom([]uint16{1, 2, 3}, WithAllocator(tr))
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.CopyToArray(a, 5))
	require.Equal(t, []uint16{0, 0, 0, 0, 0, 1, 2, 3}, a.Slice())
	require.ErrorIs(t, b.CopyToArray(a, 6), ErrCapacityViolation)
	require.ErrorIs(t, b.CopyToArray(a, 8), ErrIndexOutOfRange)

	var sum uint16
	for v := range a.Values() {
		sum += v
	}
	require.EqualValues(t, 6, sum)

	a.Close()
	require.False(t, a.IsAllocated())
	require.Equal(t, 0, a.Len())
	_, err = a.Get(0)
	require.ErrorIs(t, err, ErrUseAfterFree)
	require.ErrorIs(t, a.Fill(1), ErrUseAfterFree)
	require.ErrorIs(t, b.CopyToArray(a, 0), ErrUseAfterFree)
}
