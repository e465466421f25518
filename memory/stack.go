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
)

// Stack is a LIFO stack stored the same way as a List: one block from an
// Allocator that doubles when full.
//
// A Stack is NOT goroutine-safe.
type Stack[T comparable] struct {
	v       *vector[T]
	cleanup runtime.Cleanup
}

// NewStack constructs a Stack with room for capacity elements.
func NewStack[T comparable](capacity int, options ...Option) (*Stack[T], error) {
	c := makeConfig(options)
	v, err := newVector[T]("stack", capacity, c)
	if err != nil {
		return nil, err
	}
	s := &Stack[T]{v: v}
	s.cleanup = attachCleanup(s, "stack", v, c)
	return s, nil
}

// Close releases the stack's memory. Close is idempotent.
func (s *Stack[T]) Close() {
	if s.v.closed {
		return
	}
	s.cleanup.Stop()
	s.v.release(s.v.logger)
}

// IsAllocated returns false once the stack has been closed.
func (s *Stack[T]) IsAllocated() bool {
	return !s.v.closed
}

// Len returns the number of elements on the stack.
func (s *Stack[T]) Len() int {
	return s.v.count
}

// Cap returns the number of elements the stack can hold before it grows.
func (s *Stack[T]) Cap() int {
	return s.v.capacity()
}

// Push pushes x onto the stack.
func (s *Stack[T]) Push(x T) error {
	if err := s.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(s)
	return s.v.insert(s.v.count, x)
}

// Pop removes and returns the top of the stack. Capacity is preserved.
func (s *Stack[T]) Pop() (T, error) {
	x, err := s.Peek()
	if err != nil {
		return x, err
	}
	s.v.count--
	return x, nil
}

// Peek returns the top of the stack without removing it.
func (s *Stack[T]) Peek() (T, error) {
	var zero T
	if err := s.v.check(); err != nil {
		return zero, err
	}
	defer runtime.KeepAlive(s)
	if s.v.count == 0 {
		return zero, errors.Wrap(ErrEmptyCollection, "stack")
	}
	return s.v.block[s.v.count-1], nil
}

// Clear removes every element. Capacity is preserved.
func (s *Stack[T]) Clear() error {
	if err := s.v.check(); err != nil {
		return err
	}
	s.v.count = 0
	return nil
}

// TrimExcess shrinks the capacity to Len unless the stack is more than 90%
// full.
func (s *Stack[T]) TrimExcess() error {
	if err := s.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(s)
	return s.v.trimExcess()
}

// Contains reports whether x is on the stack.
func (s *Stack[T]) Contains(x T) (bool, error) {
	if err := s.v.check(); err != nil {
		return false, err
	}
	defer runtime.KeepAlive(s)
	for i := 0; i < s.v.count; i++ {
		if s.v.block[i] == x {
			return true, nil
		}
	}
	return false, nil
}

// CopyTo copies the stack into dst starting at dstIndex, bottom first.
func (s *Stack[T]) CopyTo(dst []T, dstIndex int) error {
	if err := s.v.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(s)
	return s.v.copyTo(dst, dstIndex)
}

// All returns an iterator over the elements from the top of the stack to
// the bottom. The iterator may be restarted.
func (s *Stack[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		defer runtime.KeepAlive(s)
		for i := s.v.count - 1; i >= 0; i-- {
			if !yield(s.v.block[i]) {
				return
			}
		}
	}
}
