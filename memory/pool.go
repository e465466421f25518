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
	"math/bits"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// BufferPool hands out equally sized buffers carved from a single
// allocation. Occupancy is tracked in a bitmap with one bit per buffer,
// searched a word at a time and then a byte at a time so that a nearly full
// pool is scanned quickly.
//
//	block:  | buf 0 | buf 1 | buf 2 | ... | buf poolSize-1 |
//	bitmap: word 0 = bits 0..63, word 1 = bits 64..127, ...
//
// A buffer returned by Allocate is a slice with len == cap == BufferSize
// aliasing the pool's block. It must be returned with Free, and it must not
// be used after Free or after the pool is closed. Freeing a buffer twice is
// undefined behavior.
//
// A BufferPool is NOT goroutine-safe.
type BufferPool[T any] struct {
	st      *poolState[T]
	cleanup runtime.Cleanup
}

type poolState[T any] struct {
	allocator  Allocator
	logger     *slog.Logger
	block      []T
	bitmap     []uint64
	poolSize   int
	bufferSize int
	allocated  int
	closed     bool
}

// NewBufferPool constructs a pool of poolSize buffers of bufferSize
// elements each.
func NewBufferPool[T any](poolSize, bufferSize int, options ...Option) (*BufferPool[T], error) {
	c := makeConfig(options)
	if poolSize <= 0 || bufferSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "buffer pool of %d buffers of %d elements", poolSize, bufferSize)
	}
	if poolSize > math.MaxInt/bufferSize {
		return nil, errors.Wrapf(ErrInvalidArgument, "buffer pool of %d buffers of %d elements overflows", poolSize, bufferSize)
	}
	block, err := Allocate[T](c.allocator, poolSize*bufferSize, false)
	if err != nil {
		return nil, err
	}
	bitmap, err := Allocate[uint64](c.allocator, (poolSize+63)/64, true)
	if err != nil {
		_ = Free(c.allocator, &block)
		return nil, err
	}
	st := &poolState[T]{
		allocator:  c.allocator,
		logger:     c.logger,
		block:      block,
		bitmap:     bitmap,
		poolSize:   poolSize,
		bufferSize: bufferSize,
	}
	p := &BufferPool[T]{st: st}
	p.cleanup = attachCleanup(p, "buffer pool", st, c)
	return p, nil
}

func (st *poolState[T]) release(logger *slog.Logger) int {
	n := freeBlock(st.allocator, logger, "buffer pool", &st.block)
	n += freeBlock(st.allocator, logger, "buffer pool", &st.bitmap)
	st.allocated = 0
	st.closed = true
	return n
}

// Close releases the pool's memory, invalidating every buffer still
// allocated from it. Close is idempotent.
func (p *BufferPool[T]) Close() {
	if p.st.closed {
		return
	}
	p.cleanup.Stop()
	p.st.release(p.st.logger)
}

// IsAllocated returns false once the pool has been closed.
func (p *BufferPool[T]) IsAllocated() bool { return !p.st.closed }

// Allocated returns the number of buffers currently handed out.
func (p *BufferPool[T]) Allocated() int { return p.st.allocated }

// PoolSize returns the number of buffers in the pool.
func (p *BufferPool[T]) PoolSize() int { return p.st.poolSize }

// BufferSize returns the number of elements in each buffer.
func (p *BufferPool[T]) BufferSize() int { return p.st.bufferSize }

// Allocate returns a free buffer, zero filled if zero is true. It returns
// nil and no error when every buffer is in use.
func (p *BufferPool[T]) Allocate(zero bool) ([]T, error) {
	st := p.st
	if st.closed {
		return nil, closedError("buffer pool")
	}
	defer runtime.KeepAlive(p)
	if st.allocated == st.poolSize {
		return nil, nil
	}
	for w, word := range st.bitmap {
		if word == ^uint64(0) {
			continue
		}
		for b := 0; b < 8; b++ {
			byt := uint8(word >> (8 * b))
			if byt == 0xFF {
				continue
			}
			bit := bits.TrailingZeros8(^byt)
			i := w*64 + b*8 + bit
			if i >= st.poolSize {
				// The tail of the last word lies past the end of the pool.
				return nil, nil
			}
			st.bitmap[w] |= 1 << (8*b + bit)
			st.allocated++
			buf := st.buffer(i)
			if zero {
				Zero(buf)
			}
			st.checkInvariants()
			return buf, nil
		}
	}
	return nil, nil
}

// Free returns *buf to the pool and sets *buf to nil. It fails with
// ErrInvalidArgument if *buf does not start a buffer of this pool.
func (p *BufferPool[T]) Free(buf *[]T) error {
	st := p.st
	if st.closed {
		return closedError("buffer pool")
	}
	defer runtime.KeepAlive(p)
	if buf == nil || len(*buf) == 0 {
		return errors.Wrap(ErrInvalidArgument, "free of a nil buffer")
	}
	i, ok := st.index(*buf)
	if !ok {
		return errors.Wrap(ErrInvalidArgument, "buffer does not belong to this pool")
	}
	st.bitmap[i/64] &^= 1 << (i % 64)
	st.allocated--
	*buf = nil
	st.checkInvariants()
	return nil
}

// IsBufferAllocated reports whether buffer i is currently handed out.
func (p *BufferPool[T]) IsBufferAllocated(i int) (bool, error) {
	st := p.st
	if st.closed {
		return false, closedError("buffer pool")
	}
	defer runtime.KeepAlive(p)
	if i < 0 || i >= st.poolSize {
		return false, indexError(i, st.poolSize)
	}
	return st.bitmap[i/64]&(1<<(i%64)) != 0, nil
}

func (st *poolState[T]) buffer(i int) []T {
	start := i * st.bufferSize
	return st.block[start : start+st.bufferSize : start+st.bufferSize]
}

// index maps a buffer back to its position in the pool.
func (st *poolState[T]) index(buf []T) (int, bool) {
	base := addressOf(st.block)
	addr := addressOf(buf)
	if addr < base {
		return 0, false
	}
	stride := uintptr(st.bufferSize * sizeOf[T]())
	off := addr - base
	if off%stride != 0 {
		return 0, false
	}
	i := int(off / stride)
	if i >= st.poolSize {
		return 0, false
	}
	return i, true
}

func (st *poolState[T]) checkInvariants() {
	if invariants {
		n := 0
		for _, w := range st.bitmap {
			n += bits.OnesCount64(w)
		}
		if n != st.allocated {
			panic(fmt.Sprintf("invariant failed: %d bits set, %d allocated\n%s", n, st.allocated, st.debugString()))
		}
		if st.allocated < 0 || st.allocated > st.poolSize {
			panic(fmt.Sprintf("invariant failed: allocated %d of %d\n%s", st.allocated, st.poolSize, st.debugString()))
		}
	}
}

func (st *poolState[T]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "pool: %d x %d, allocated %d\n", st.poolSize, st.bufferSize, st.allocated)
	for w, word := range st.bitmap {
		fmt.Fprintf(&buf, "  word %d: %064b\n", w, bits.Reverse64(word))
	}
	return buf.String()
}
