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
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Allocator specifies an interface for acquiring and releasing the raw
// blocks of memory backing every container in this package. Blocks are
// sized in bytes; the typed helpers (Allocate, Reallocate, Free) convert
// element counts to byte sizes.
//
// A block returned by Alloc or Realloc must be aligned for any fixed-layout
// element type (8 bytes) and must be released with Free exactly once.
// Freeing a block twice, or using a block after it has been freed or
// reallocated, is undefined behavior.
type Allocator interface {
	// Alloc returns a block of size bytes. The contents are unspecified.
	Alloc(size int) ([]byte, error)

	// Realloc returns a block of size bytes holding the first
	// min(len(b), size) bytes of b. The returned block may or may not share
	// its address with b; if it does not, b has been released.
	Realloc(b []byte, size int) ([]byte, error)

	// Free releases a block returned by Alloc or Realloc.
	Free(b []byte) error
}

// DefaultAllocator is used by containers constructed without WithAllocator.
// It keeps its blocks on the Go heap and accounts for them in a Tracker.
var DefaultAllocator = NewTracker(GoAllocator{})

// GoAllocator allocates blocks from the Go heap. The blocks are backed by
// []uint64 so that they are 8-byte aligned and never scanned by the garbage
// collector. Free drops nothing but the caller's reference; the garbage
// collector reclaims the block once it is unreachable.
type GoAllocator struct{}

var _ Allocator = GoAllocator{}

// Alloc implements Allocator.
func (GoAllocator) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "alloc of %d bytes", size)
	}
	if size > math.MaxInt-7 {
		return nil, errors.Wrapf(ErrInvalidArgument, "alloc of %d bytes", size)
	}
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size), nil
}

// Realloc implements Allocator.
func (a GoAllocator) Realloc(b []byte, size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "realloc to %d bytes", size)
	}
	// Shrinking keeps the block in place.
	if size <= cap(b) {
		return b[:size], nil
	}
	nb, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(nb, b)
	return nb, nil
}

// Free implements Allocator.
func (GoAllocator) Free(b []byte) error {
	if len(b) == 0 {
		return errors.Wrap(ErrInvalidArgument, "free of an empty block")
	}
	return nil
}

// Allocate returns a block of count elements of T obtained from a. If zero
// is true the block is zero filled, otherwise its contents are unspecified.
// It fails with ErrInvalidArgument if count <= 0 or if T contains pointers.
func Allocate[T any](a Allocator, count int, zero bool) ([]T, error) {
	if err := checkLayout[T](); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "allocate %d elements", count)
	}
	size, err := blockSize[T](count)
	if err != nil {
		return nil, err
	}
	b, err := a.Alloc(size)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d elements", count)
	}
	if zero {
		clear(b)
	}
	return bytesToSlice[T](b, count), nil
}

// Free releases a block obtained from Allocate or Reallocate and sets
// *block to nil. The caller must not retain other references to the block.
func Free[T any](a Allocator, block *[]T) error {
	if block == nil || len(*block) == 0 {
		return errors.Wrap(ErrInvalidArgument, "free of a nil block")
	}
	if err := a.Free(sliceToBytes(*block)); err != nil {
		return errors.Wrapf(err, "free %d elements", len(*block))
	}
	*block = nil
	return nil
}

// Reallocate resizes block to newCount elements, preserving the first
// min(len(block), newCount) elements. The returned block may live at a
// different address, in which case every element address previously taken
// from block is invalid. The length of block must be the count it was
// allocated with; anything else is undefined behavior. On error block is
// left untouched.
func Reallocate[T any](a Allocator, block []T, newCount int) ([]T, error) {
	if len(block) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "reallocate of a nil block")
	}
	if newCount <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "reallocate to %d elements", newCount)
	}
	size, err := blockSize[T](newCount)
	if err != nil {
		return nil, err
	}
	b, err := a.Realloc(sliceToBytes(block), size)
	if err != nil {
		return nil, errors.Wrapf(err, "reallocate %d -> %d elements", len(block), newCount)
	}
	return bytesToSlice[T](b, newCount), nil
}

// blockSize returns the size in bytes of count elements of T.
func blockSize[T any](count int) (int, error) {
	size := sizeOf[T]()
	if size > 0 && count > math.MaxInt/size {
		return 0, errors.Wrapf(ErrInvalidArgument, "%d elements of %d bytes overflow", count, size)
	}
	return count * size, nil
}

// Fill sets every element of block to value. When the size of T divides a
// machine word, value is packed into 64-bit words which are written in bulk.
func Fill[T any](block []T, value T) {
	if len(block) == 0 {
		return
	}
	size := sizeOf[T]()
	var word uint64
	p := unsafe.Pointer(&value)
	switch size {
	case 1:
		word = 0x0101010101010101 * uint64(*(*uint8)(p))
	case 2:
		word = 0x0001000100010001 * uint64(*(*uint16)(p))
	case 4:
		word = 0x0000000100000001 * uint64(*(*uint32)(p))
	case 8:
		word = *(*uint64)(p)
	default:
		for i := range block {
			block[i] = value
		}
		return
	}

	b := sliceToBytes(block)
	words := len(b) / 8
	if words > 0 && addressOf(b)%8 == 0 {
		ws := unsafe.Slice((*uint64)(unsafe.Pointer(unsafe.SliceData(b))), words)
		for i := range ws {
			ws[i] = word
		}
	} else {
		words = 0
	}
	for i := words * 8 / size; i < len(block); i++ {
		block[i] = value
	}
}

// Zero sets every element of block to the zero value of T.
func Zero[T any](block []T) {
	clear(sliceToBytes(block))
}

// Copy copies count elements from src to dst. It fails with
// ErrCapacityViolation if count exceeds len(dst). src and dst may overlap.
func Copy[T any](src, dst []T, count int) error {
	if count < 0 || count > len(src) {
		return errors.Wrapf(ErrInvalidArgument, "copy %d of %d elements", count, len(src))
	}
	if count > len(dst) {
		return errors.Wrapf(ErrCapacityViolation, "copy %d elements into %d", count, len(dst))
	}
	copy(dst[:count], src[:count])
	return nil
}
