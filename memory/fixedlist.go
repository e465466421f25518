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

	"github.com/cockroachdb/errors"
)

// FixedList uses storage it does not own as a list that never grows, for
// example a buffer handed out by a BufferPool. It has no Close: the storage
// is released by whoever owns it, after which the FixedList must not be used.
type FixedList[T comparable] struct {
	storage []T
	count   int
}

// NewFixedList returns a FixedList over storage whose first count elements
// are live.
func NewFixedList[T comparable](storage []T, count int) (FixedList[T], error) {
	if count < 0 || count > len(storage) {
		return FixedList[T]{}, errors.Wrapf(ErrInvalidArgument, "count %d, capacity %d", count, len(storage))
	}
	return FixedList[T]{storage: storage, count: count}, nil
}

// Len returns the number of elements in the list.
func (l *FixedList[T]) Len() int { return l.count }

// Cap returns the length of the storage.
func (l *FixedList[T]) Cap() int { return len(l.storage) }

// Get returns the element at index i.
func (l *FixedList[T]) Get(i int) (T, error) {
	if i < 0 || i >= l.count {
		var zero T
		return zero, indexError(i, l.count)
	}
	return l.storage[i], nil
}

// Set replaces the element at index i.
func (l *FixedList[T]) Set(i int, x T) error {
	if i < 0 || i >= l.count {
		return indexError(i, l.count)
	}
	l.storage[i] = x
	return nil
}

// Add appends x, failing with ErrCapacityViolation when the storage is full.
func (l *FixedList[T]) Add(x T) error {
	return l.Insert(l.count, x)
}

// Insert places x at index i, moving the elements at and after i up by one.
func (l *FixedList[T]) Insert(i int, x T) error {
	if i < 0 || i > l.count {
		return indexError(i, l.count)
	}
	if l.count == len(l.storage) {
		return errors.Wrapf(ErrCapacityViolation, "fixed list is full (%d)", l.count)
	}
	copy(l.storage[i+1:l.count+1], l.storage[i:l.count])
	l.storage[i] = x
	l.count++
	return nil
}

// Remove removes the first occurrence of x, returning false if it is absent.
func (l *FixedList[T]) Remove(x T) bool {
	i := l.IndexOf(x)
	if i < 0 {
		return false
	}
	_ = l.RemoveAt(i)
	return true
}

// RemoveAt removes the element at index i.
func (l *FixedList[T]) RemoveAt(i int) error {
	if i < 0 || i >= l.count {
		return indexError(i, l.count)
	}
	copy(l.storage[i:l.count-1], l.storage[i+1:l.count])
	l.count--
	return nil
}

// Clear removes every element.
func (l *FixedList[T]) Clear() { l.count = 0 }

// IndexOf returns the index of the first occurrence of x, or -1.
func (l *FixedList[T]) IndexOf(x T) int {
	for i := 0; i < l.count; i++ {
		if l.storage[i] == x {
			return i
		}
	}
	return -1
}

// Contains reports whether x is in the list.
func (l *FixedList[T]) Contains(x T) bool { return l.IndexOf(x) >= 0 }

// CopyTo copies the elements into dst starting at dstIndex.
func (l *FixedList[T]) CopyTo(dst []T, dstIndex int) error {
	if dstIndex < 0 || dstIndex > len(dst) {
		return indexError(dstIndex, len(dst))
	}
	return Copy(l.storage[:l.count], dst[dstIndex:], l.count)
}

// All returns an iterator over the index and value of every element.
func (l *FixedList[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < l.count; i++ {
			if !yield(i, l.storage[i]) {
				return
			}
		}
	}
}
