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

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

const (
	// defaultCapacity is the capacity an empty vector grows to on its first
	// insertion.
	defaultCapacity = 4
	// trimThreshold is the fill ratio above which trimExcess keeps the
	// current capacity, so that a vector hovering around its capacity does
	// not reallocate on every trim.
	trimThreshold = 0.9
)

// vector is the growable contiguous storage shared by List and Stack. The
// whole block is one allocation whose length is the capacity; elements
// [0,count) are live and the rest are unspecified.
type vector[T any] struct {
	allocator Allocator
	logger    *slog.Logger
	kind      string
	block     []T
	count     int
	closed    bool
}

var _ releaser = (*vector[int])(nil)

func newVector[T any](kind string, capacity int, c config) (*vector[T], error) {
	if err := checkLayout[T](); err != nil {
		return nil, err
	}
	if capacity < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s capacity %d", kind, capacity)
	}
	v := &vector[T]{
		allocator: c.allocator,
		logger:    c.logger,
		kind:      kind,
	}
	if capacity > 0 {
		block, err := Allocate[T](v.allocator, capacity, false)
		if err != nil {
			return nil, err
		}
		v.block = block
	}
	return v, nil
}

func (v *vector[T]) check() error {
	if v.closed {
		return closedError(v.kind)
	}
	return nil
}

func (v *vector[T]) capacity() int {
	return len(v.block)
}

// setCapacity resizes the block to exactly n elements. A capacity of zero
// releases the block.
func (v *vector[T]) setCapacity(n int) error {
	if n < v.count {
		return errors.Wrapf(ErrInvalidArgument, "%s capacity %d is less than length %d", v.kind, n, v.count)
	}
	if n == len(v.block) {
		return nil
	}
	switch {
	case n == 0:
		if err := Free(v.allocator, &v.block); err != nil {
			return err
		}
	case len(v.block) == 0:
		block, err := Allocate[T](v.allocator, n, false)
		if err != nil {
			return err
		}
		v.block = block
	default:
		block, err := Reallocate(v.allocator, v.block, n)
		if err != nil {
			return err
		}
		v.block = block
	}
	v.checkInvariants()
	return nil
}

// reserve grows the block when it is full. The block doubles, starting at
// defaultCapacity.
func (v *vector[T]) reserve() error {
	if v.count < len(v.block) {
		return nil
	}
	n := 2 * len(v.block)
	if n == 0 {
		n = defaultCapacity
	}
	return v.setCapacity(n)
}

// insert places x at index i, shifting [i,count) up by one. i must be in
// [0,count].
func (v *vector[T]) insert(i int, x T) error {
	if err := v.reserve(); err != nil {
		return err
	}
	if i < v.count {
		copy(v.block[i+1:v.count+1], v.block[i:v.count])
	}
	v.block[i] = x
	v.count++
	v.checkInvariants()
	return nil
}

// removeAt drops the element at index i, shifting (i,count) down by one. i
// must be in [0,count).
func (v *vector[T]) removeAt(i int) {
	v.count--
	if i < v.count {
		copy(v.block[i:v.count], v.block[i+1:v.count+1])
	}
	v.checkInvariants()
}

func (v *vector[T]) trimExcess() error {
	if len(v.block) == 0 {
		return nil
	}
	if float64(v.count)/float64(len(v.block)) > trimThreshold {
		return nil
	}
	return v.setCapacity(v.count)
}

func (v *vector[T]) copyTo(dst []T, dstIndex int) error {
	if dstIndex < 0 || (dstIndex >= len(dst) && v.count > 0) {
		return indexError(dstIndex, len(dst))
	}
	if dstIndex+v.count > len(dst) {
		return errors.Wrapf(ErrCapacityViolation, "copy %d elements into %d at %d", v.count, len(dst), dstIndex)
	}
	copy(dst[dstIndex:], v.block[:v.count])
	return nil
}

func (v *vector[T]) release(logger *slog.Logger) int {
	n := freeBlock(v.allocator, logger, v.kind, &v.block)
	v.count = 0
	v.closed = true
	return n
}

func (v *vector[T]) checkInvariants() {
	if invariants {
		if v.count < 0 || v.count > len(v.block) {
			panic(fmt.Sprintf("invariant failed: %s length %d, capacity %d", v.kind, v.count, len(v.block)))
		}
	}
}
