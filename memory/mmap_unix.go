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

//go:build unix

package memory

import (
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// MmapAllocator allocates blocks outside the Go heap using anonymous private
// memory mappings. Every block occupies a whole number of pages, so it is
// best suited to large, long-lived allocations such as buffer pools.
//
// The allocator remembers every live mapping by its base address. Freeing a
// block it did not hand out (or one that was already freed) fails with
// ErrInvalidArgument instead of corrupting the address space. It is safe for
// concurrent use.
type MmapAllocator struct {
	mu       sync.Mutex
	mappings map[uintptr][]byte
}

var _ Allocator = (*MmapAllocator)(nil)

// munmap is replaced in tests.
var munmap = unix.Munmap

// NewMmapAllocator returns an empty MmapAllocator.
func NewMmapAllocator() *MmapAllocator {
	return &MmapAllocator{mappings: make(map[uintptr][]byte)}
}

func pageRound(size int) int {
	page := unix.Getpagesize()
	return (size + page - 1) &^ (page - 1)
}

// Alloc implements Allocator. The returned block is zero filled.
func (a *MmapAllocator) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "alloc of %d bytes", size)
	}
	m, err := unix.Mmap(-1, 0, pageRound(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %d bytes", size)
	}
	a.mu.Lock()
	a.mappings[addressOf(m)] = m
	a.mu.Unlock()
	return m[:size:size], nil
}

// Realloc implements Allocator. Sizes that fit in the pages already mapped
// for b keep the block in place.
func (a *MmapAllocator) Realloc(b []byte, size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "realloc to %d bytes", size)
	}
	m, err := a.lookup(b)
	if err != nil {
		return nil, err
	}
	if size <= len(m) {
		return m[:size:size], nil
	}
	nb, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(nb, b)
	if err := a.Free(b); err != nil {
		_ = a.Free(nb)
		return nil, err
	}
	return nb, nil
}

// Free implements Allocator. A block whose unmapping fails stays registered
// and may be freed again.
func (a *MmapAllocator) Free(b []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.lookupLocked(b)
	if err != nil {
		return err
	}
	if err := munmap(m); err != nil {
		return errors.Wrapf(err, "munmap %d bytes", len(m))
	}
	delete(a.mappings, addressOf(m))
	return nil
}

// Mappings returns the number of live mappings.
func (a *MmapAllocator) Mappings() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.mappings)
}

func (a *MmapAllocator) lookup(b []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lookupLocked(b)
}

// lookupLocked requires a.mu to be held.
func (a *MmapAllocator) lookupLocked(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "nil block")
	}
	m, ok := a.mappings[addressOf(b)]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidArgument, "block %#x was not allocated by this allocator", addressOf(b))
	}
	return m, nil
}
