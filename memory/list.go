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
)

// List is a growable list whose elements live in a single block obtained
// from an Allocator. When the block is full it doubles in size, which may
// move it: a slice returned by Slice is only valid until the next Add,
// Insert, SetCapacity, TrimExcess or Close.
//
// A List is NOT goroutine-safe.
type List[T comparable] struct {
	v       *vector[T]
	cleanup runtime.Cleanup
}

// NewList constructs a List with room for capacity elements. A capacity of
// zero defers the first allocation to the first insertion. T must not
// contain pointers.
func NewList[T comparable](capacity int, options ...Option) (*List[T], error) {
	c := makeConfig(options)
	v, err := newVector[T]("list", capacity, c)
	if err != nil {
		return nil, err
	}
	l := &List[T]{v: v}
	l.cleanup = attachCleanup(l, "list", v, c)
	return l, nil
}

// Close releases the list's memory back to its allocator. It is invalid to
// use a List after it has been closed, though Close itself is idempotent.
func (l *List[T]) Close() {
	if l.v.closed {
		return
	}
	l.cleanup.Stop()
	l.v.release(l.v.logger)
}

// IsAllocated returns false once the list has been closed.
func (l *List[T]) IsAllocated() bool {
	return !l.v.closed
}

// Len returns the number of elements in the list.
func (l *List[T]) Len() int {
	return l.v.count
}

// Cap returns the number of elements the list can hold before it grows.
func (l *List[T]) Cap() int {
	return l.v.capacity()
}

// SetCapacity reallocates the list to hold exactly n elements. n may not be
// less than Len.
func (l *List[T]) SetCapacity(n int) error {
	if err := l.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(l)
	return l.v.setCapacity(n)
}

// Get returns the element at index i.
func (l *List[T]) Get(i int) (T, error) {
	var zero T
	if err := l.v.check(); err != nil {
		return zero, err
	}
	defer runtime.KeepAlive(l)
	if i < 0 || i >= l.v.count {
		return zero, indexError(i, l.v.count)
	}
	return l.v.block[i], nil
}

// Set replaces the element at index i.
func (l *List[T]) Set(i int, x T) error {
	if err := l.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(l)
	if i < 0 || i >= l.v.count {
		return indexError(i, l.v.count)
	}
	l.v.block[i] = x
	return nil
}

// Add appends x to the end of the list.
func (l *List[T]) Add(x T) error {
	if err := l.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(l)
	return l.v.insert(l.v.count, x)
}

// Insert places x at index i, moving the elements at and after i up by one.
// i may equal Len.
func (l *List[T]) Insert(i int, x T) error {
	if err := l.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(l)
	if i < 0 || i > l.v.count {
		return indexError(i, l.v.count)
	}
	return l.v.insert(i, x)
}

// Remove removes the first occurrence of x, returning false if x is not in
// the list. Capacity is preserved.
func (l *List[T]) Remove(x T) (bool, error) {
	defer runtime.KeepAlive(l)
	i, err := l.IndexOf(x)
	if err != nil || i < 0 {
		return false, err
	}
	l.v.removeAt(i)
	return true, nil
}

// RemoveAt removes the element at index i. Capacity is preserved.
func (l *List[T]) RemoveAt(i int) error {
	if err := l.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(l)
	if i < 0 || i >= l.v.count {
		return indexError(i, l.v.count)
	}
	l.v.removeAt(i)
	return nil
}

// Clear removes every element. Capacity is preserved.
func (l *List[T]) Clear() error {
	if err := l.v.check(); err != nil {
		return err
	}
	l.v.count = 0
	return nil
}

// TrimExcess shrinks the capacity to Len unless the list is more than 90%
// full.
func (l *List[T]) TrimExcess() error {
	if err := l.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(l)
	return l.v.trimExcess()
}

// IndexOf returns the index of the first occurrence of x, or -1.
func (l *List[T]) IndexOf(x T) (int, error) {
	if err := l.v.check(); err != nil {
		return -1, err
	}
	defer runtime.KeepAlive(l)
	for i := 0; i < l.v.count; i++ {
		if l.v.block[i] == x {
			return i, nil
		}
	}
	return -1, nil
}

// Contains reports whether x is in the list.
func (l *List[T]) Contains(x T) (bool, error) {
	i, err := l.IndexOf(x)
	return i >= 0, err
}

// CopyTo copies the elements of the list into dst starting at dstIndex.
func (l *List[T]) CopyTo(dst []T, dstIndex int) error {
	if err := l.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(l)
	return l.v.copyTo(dst, dstIndex)
}

// Slice returns the live elements as a slice aliasing the list's memory.
// The slice is invalidated by any operation that can grow, shrink or release
// the list.
func (l *List[T]) Slice() []T {
	return l.v.block[:l.v.count:l.v.count]
}

// All returns an iterator over the index and value of every element in
// storage order. The iterator may be restarted.
func (l *List[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		defer runtime.KeepAlive(l)
		for i := 0; i < l.v.count; i++ {
			if !yield(i, l.v.block[i]) {
				return
			}
		}
	}
}

// Values returns an iterator over the elements in storage order.
func (l *List[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		defer runtime.KeepAlive(l)
		for i := 0; i < l.v.count; i++ {
			if !yield(l.v.block[i]) {
				return
			}
		}
	}
}
