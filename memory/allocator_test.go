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
	"fmt"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y, Z int32
}

type withPointer struct {
	N int
	P *int
}

func TestLayout(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"int", checkLayout[int]()},
		{"uint8", checkLayout[uint8]()},
		{"point", checkLayout[point]()},
		{"array", checkLayout[[4]float64]()},
		{"string", checkLayout[string]()},
		{"slice", checkLayout[[]int]()},
		{"pointer", checkLayout[*int]()},
		{"withPointer", checkLayout[withPointer]()},
		{"interface", checkLayout[any]()},
		{"empty", checkLayout[struct{}]()},
	}
	valid := map[string]bool{"int": true, "uint8": true, "point": true, "array": true}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			if valid[c.name] {
				require.NoError(t, c.err)
			} else {
				require.ErrorIs(t, c.err, ErrInvalidArgument)
			}
		})
	}
}

func TestAllocate(t *testing.T) {
	tr := newTestTracker(t)

	_, err := Allocate[int](tr, 0, false)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Allocate[int](tr, -1, false)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Allocate[string](tr, 4, false)
	require.ErrorIs(t, err, ErrInvalidArgument)

	block, err := Allocate[point](tr, 10, true)
	require.NoError(t, err)
	require.Len(t, block, 10)
	require.EqualValues(t, 10*unsafe.Sizeof(point{}), tr.Stats().BytesInUse)
	for _, p := range block {
		require.Equal(t, point{}, p)
	}
	require.Zero(t, addressOf(block)%8)

	require.NoError(t, Free(tr, &block))
	require.Nil(t, block)
	require.ErrorIs(t, Free(tr, &block), ErrInvalidArgument)
	require.EqualValues(t, 0, tr.Stats().BytesInUse)
}

func TestReallocate(t *testing.T) {
	tr := newTestTracker(t)

	block, err := Allocate[int64](tr, 4, false)
	require.NoError(t, err)
	for i := range block {
		block[i] = int64(i + 1)
	}

	// Grow.
	block, err = Reallocate(tr, block, 16)
	require.NoError(t, err)
	require.Len(t, block, 16)
	require.Equal(t, []int64{1, 2, 3, 4}, block[:4])
	require.EqualValues(t, 16*8, tr.Stats().BytesInUse)

	// Shrink.
	block, err = Reallocate(tr, block, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, block)
	require.EqualValues(t, 2*8, tr.Stats().BytesInUse)

	_, err = Reallocate(tr, block, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Reallocate[int64](tr, nil, 4)
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, Free(tr, &block))
	require.EqualValues(t, 2, tr.Stats().Reallocations)
}

func TestAllocateOverflow(t *testing.T) {
	tr := newTestTracker(t)

	// count*8 wraps around to 8 bytes.
	_, err := Allocate[int64](GoAllocator{}, 1<<61+1, false)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Allocate[point](tr, math.MaxInt/2, false)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = GoAllocator{}.Alloc(math.MaxInt)
	require.ErrorIs(t, err, ErrInvalidArgument)

	block, err := Allocate[int64](tr, 4, false)
	require.NoError(t, err)
	_, err = Reallocate(tr, block, 1<<61+1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.EqualValues(t, 0, tr.Stats().Reallocations)
	require.NoError(t, Free(tr, &block))
	require.EqualValues(t, 1, tr.Stats().Allocations)
}

func TestFill(t *testing.T) {
	for _, n := range []int{1, 3, 8, 17, 64, 1001} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			b8, err := Allocate[uint8](GoAllocator{}, n, false)
			require.NoError(t, err)
			Fill(b8, 0xAB)
			for i := range b8 {
				require.EqualValues(t, 0xAB, b8[i])
			}

			b16, err := Allocate[int16](GoAllocator{}, n, false)
			require.NoError(t, err)
			Fill(b16, -2)
			for i := range b16 {
				require.EqualValues(t, -2, b16[i])
			}

			b32, err := Allocate[float32](GoAllocator{}, n, false)
			require.NoError(t, err)
			Fill(b32, 1.5)
			for i := range b32 {
				require.EqualValues(t, 1.5, b32[i])
			}

			b64, err := Allocate[uint64](GoAllocator{}, n, false)
			require.NoError(t, err)
			Fill(b64, 0xDEADBEEF)
			for i := range b64 {
				require.EqualValues(t, 0xDEADBEEF, b64[i])
			}

			pts, err := Allocate[point](GoAllocator{}, n, false)
			require.NoError(t, err)
			Fill(pts, point{1, 2, 3})
			for i := range pts {
				require.Equal(t, point{1, 2, 3}, pts[i])
			}

			// Unaligned sub-slices fall back to element stores.
			if n > 1 {
				Fill(b8[1:], 0x11)
				require.EqualValues(t, 0xAB, b8[0])
				for i := 1; i < n; i++ {
					require.EqualValues(t, 0x11, b8[i])
				}
			}

			Zero(pts)
			for i := range pts {
				require.Equal(t, point{}, pts[i])
			}
		})
	}
}

func TestCopy(t *testing.T) {
	src := []int{1, 2, 3, 4, 5}
	dst := make([]int, 3)

	require.NoError(t, Copy(src, dst, 3))
	require.Equal(t, []int{1, 2, 3}, dst)

	require.ErrorIs(t, Copy(src, dst, 4), ErrCapacityViolation)
	require.ErrorIs(t, Copy(src, dst, -1), ErrInvalidArgument)
	require.ErrorIs(t, Copy(src, dst, 6), ErrInvalidArgument)

	// Overlapping ranges behave like memmove.
	require.NoError(t, Copy(src[:4], src[1:], 4))
	require.Equal(t, []int{1, 1, 2, 3, 4}, src)
}

func TestGoAllocator(t *testing.T) {
	var a GoAllocator
	_, err := a.Alloc(0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	b, err := a.Alloc(13)
	require.NoError(t, err)
	require.Len(t, b, 13)
	require.Zero(t, addressOf(b)%8)
	for i := range b {
		b[i] = byte(i)
	}

	b, err = a.Realloc(b, 100)
	require.NoError(t, err)
	require.Len(t, b, 100)
	for i := 0; i < 13; i++ {
		require.EqualValues(t, i, b[i])
	}

	require.NoError(t, a.Free(b))
	require.ErrorIs(t, a.Free(nil), ErrInvalidArgument)
}
