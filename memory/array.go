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
	"iter"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Array is a fixed-length array whose elements live in one block obtained
// from an Allocator. Its length is set at construction and never changes.
// Unlike a raw block, an Array knows when it has been closed: every access
// after Close fails with ErrUseAfterFree.
//
// An Array is NOT goroutine-safe.
type Array[T comparable] struct {
	st      *arrayState[T]
	cleanup runtime.Cleanup
}

type arrayState[T any] struct {
	allocator Allocator
	logger    *slog.Logger
	block     []T
}

func (st *arrayState[T]) release(logger *slog.Logger) int {
	return freeBlock(st.allocator, logger, "array", &st.block)
}

// NewArray constructs an Array of length elements. If zero is false the
// initial contents are unspecified.
func NewArray[T comparable](length int, zero bool, options ...Option) (*Array[T], error) {
	c := makeConfig(options)
	if length <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "array length %d", length)
	}
	block, err := Allocate[T](c.allocator, length, zero)
	if err != nil {
		return nil, err
	}
	return newArray(block, c), nil
}

// NewArrayFrom constructs an Array holding a copy of src.
func NewArrayFrom[T comparable](src []T, options ...Option) (*Array[T], error) {
	c := makeConfig(options)
	if len(src) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "array from an empty slice")
	}
	block, err := Allocate[T](c.allocator, len(src), false)
	if err != nil {
		return nil, err
	}
	copy(block, src)
	return newArray(block, c), nil
}

func newArray[T comparable](block []T, c config) *Array[T] {
	st := &arrayState[T]{allocator: c.allocator, logger: c.logger, block: block}
	a := &Array[T]{st: st}
	a.cleanup = attachCleanup(a, "array", st, c)
	return a
}

// Close releases the array's memory. Close is idempotent.
func (a *Array[T]) Close() {
	if a.st.block == nil {
		return
	}
	a.cleanup.Stop()
	a.st.release(a.st.logger)
}

// IsAllocated returns false once the array has been closed.
func (a *Array[T]) IsAllocated() bool {
	return a.st.block != nil
}

func (a *Array[T]) check() error {
	if a.st.block == nil {
		return closedError("array")
	}
	return nil
}

// Len returns the length of the array. It is zero once the array has been
// closed.
func (a *Array[T]) Len() int {
	return len(a.st.block)
}

// Get returns the element at index i.
func (a *Array[T]) Get(i int) (T, error) {
	var zero T
	if err := a.check(); err != nil {
		return zero, err
	}
	defer runtime.KeepAlive(a)
	if i < 0 || i >= len(a.st.block) {
		return zero, indexError(i, len(a.st.block))
	}
	return a.st.block[i], nil
}

// Set replaces the element at index i.
func (a *Array[T]) Set(i int, x T) error {
	if err := a.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(a)
	if i < 0 || i >= len(a.st.block) {
		return indexError(i, len(a.st.block))
	}
	a.st.block[i] = x
	return nil
}

// IndexOf returns the index of the first occurrence of x, or -1.
func (a *Array[T]) IndexOf(x T) (int, error) {
	if err := a.check(); err != nil {
		return -1, err
	}
	defer runtime.KeepAlive(a)
	for i, y := range a.st.block {
		if x == y {
			return i, nil
		}
	}
	return -1, nil
}

// Contains reports whether x is in the array.
func (a *Array[T]) Contains(x T) (bool, error) {
	i, err := a.IndexOf(x)
	return i >= 0, err
}

// Clear sets every element to the zero value of T.
func (a *Array[T]) Clear() error {
	if err := a.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(a)
	Zero(a.st.block)
	return nil
}

// Fill sets every element to x.
func (a *Array[T]) Fill(x T) error {
	if err := a.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(a)
	Fill(a.st.block, x)
	return nil
}

// CopyTo copies the whole array into dst starting at dstIndex.
func (a *Array[T]) CopyTo(dst []T, dstIndex int) error {
	if err := a.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(a)
	if dstIndex < 0 || dstIndex >= len(dst) {
		return indexError(dstIndex, len(dst))
	}
	return Copy(a.st.block, dst[dstIndex:], len(a.st.block))
}

// CopyToArray copies the whole array into dst starting at dstIndex.
func (a *Array[T]) CopyToArray(dst *Array[T], dstIndex int) error {
	if err := dst.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(dst)
	return a.CopyTo(dst.st.block, dstIndex)
}

// Slice returns the elements as a slice aliasing the array's memory. It is
// invalidated by Close.
func (a *Array[T]) Slice() []T {
	return a.st.block
}

// All returns an iterator over the index and value of every element.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		defer runtime.KeepAlive(a)
		for i := 0; i < len(a.st.block); i++ {
			if !yield(i, a.st.block[i]) {
				return
			}
		}
	}
}

// Values returns an iterator over the elements.
func (a *Array[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		defer runtime.KeepAlive(a)
		for i := 0; i < len(a.st.block); i++ {
			if !yield(a.st.block[i]) {
				return
			}
		}
	}
}
