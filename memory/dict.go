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
	"hash/maphash"
	"iter"
	"math/bits"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Dict is a separate-chaining hash table whose entries live in memory
// obtained from an Allocator.
//
// The table is an array of buckets, a power of two in number. A key hashes
// to bucket hash(key)&(buckets-1). Each bucket owns a node array allocated
// on the first insertion into the bucket and holds a doubly linked chain
// threaded through that array:
//
//	bucket: first ─┐                  ┌─ last
//	nodes:  [ k0 | free | k1 | k2 ]
//	         0 ──────────► 2 ──► 3
//
// Links are 1-based indices into the node array with 0 meaning none, so
// growing the node array never invalidates a link. An entry that is not
// first in its chain and has no predecessor is free, which makes a
// zero-filled node array entirely free. Insertions reuse free entries before
// the node array is doubled. Removal leaves a hole which is reused by a later
// insertion into the same bucket and squeezed out when the table is rebuilt.
//
// When an insertion finds the load (Len/Buckets) already above 0.7 the
// table first doubles its bucket count and reinserts every entry. The rebuild either
// completes or, if an allocation fails, leaves the table as it was.
//
// K and V must not contain pointers. A Dict is NOT goroutine-safe.
type Dict[K comparable, V any] struct {
	st      *dictState[K, V]
	cleanup runtime.Cleanup
}

const (
	defaultBucketSize = 32
	maxLoadFactor     = 0.7
	// defaultSlotCapacity is the size of a bucket's node array when it is
	// first allocated.
	defaultSlotCapacity = 2
)

type node[K comparable, V any] struct {
	key   K
	value V
	// prev and next are 1-based indices into the bucket's node array.
	prev int32
	next int32
}

type slot[K comparable, V any] struct {
	nodes []node[K, V]
	first int32
	last  int32
	count int32
}

func (s *slot[K, V]) isFree(i int) bool {
	return s.nodes[i].prev == 0 && s.first != int32(i+1)
}

type dictState[K comparable, V any] struct {
	allocator Allocator
	logger    *slog.Logger
	hash      func(key K) uint64
	buckets   []slot[K, V]
	count     int
	closed    bool
}

// NewDict constructs an empty Dict. The initial bucket count is 32 unless
// WithBucketSize is given.
func NewDict[K comparable, V any](options ...Option) (*Dict[K, V], error) {
	c := makeConfig(options)
	if err := checkLayout[node[K, V]](); err != nil {
		return nil, err
	}
	n := c.bucketSize
	switch {
	case n < 0:
		return nil, errors.Wrapf(ErrInvalidArgument, "bucket size %d", n)
	case n == 0:
		n = defaultBucketSize
	default:
		n = 1 << bits.Len(uint(n-1))
	}

	// The bucket array holds the node slices and so lives on the Go heap.
	// Only node arrays come from the allocator.
	st := &dictState[K, V]{
		allocator: c.allocator,
		logger:    c.logger,
		buckets:   make([]slot[K, V], n),
	}
	switch h := c.hash.(type) {
	case nil:
		seed := maphash.MakeSeed()
		st.hash = func(key K) uint64 {
			return maphash.Comparable(seed, key)
		}
	case func(key K) uint64:
		if h == nil {
			return nil, errors.Wrap(ErrInvalidArgument, "nil hash function")
		}
		st.hash = h
	default:
		var k K
		return nil, errors.Wrapf(ErrInvalidArgument, "hash function %T does not hash keys of type %T", c.hash, k)
	}

	d := &Dict[K, V]{st: st}
	d.cleanup = attachCleanup(d, "dict", st, c)
	return d, nil
}

func (st *dictState[K, V]) release(logger *slog.Logger) int {
	n := releaseSlots(st.allocator, logger, st.buckets)
	st.buckets = nil
	st.count = 0
	st.closed = true
	return n
}

func releaseSlots[K comparable, V any](a Allocator, logger *slog.Logger, buckets []slot[K, V]) int {
	var n int
	for i := range buckets {
		n += freeBlock(a, logger, "dict", &buckets[i].nodes)
	}
	return n
}

// Close releases every node array back to the allocator. Close is
// idempotent.
func (d *Dict[K, V]) Close() {
	if d.st.closed {
		return
	}
	d.cleanup.Stop()
	d.st.release(d.st.logger)
}

// IsAllocated returns false once the dictionary has been closed.
func (d *Dict[K, V]) IsAllocated() bool {
	return !d.st.closed
}

// Len returns the number of entries in the dictionary.
func (d *Dict[K, V]) Len() int {
	return d.st.count
}

// Buckets returns the current number of buckets.
func (d *Dict[K, V]) Buckets() int {
	return len(d.st.buckets)
}

func (d *Dict[K, V]) check() error {
	if d.st.closed {
		return closedError("dict")
	}
	return nil
}

// Insert adds an entry for key. It fails with ErrDuplicateKey if key is
// already present.
func (d *Dict[K, V]) Insert(key K, value V) error {
	ok, err := d.TryInsert(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrDuplicateKey, "%v", key)
	}
	return nil
}

// TryInsert adds an entry for key, returning false if key is already
// present.
func (d *Dict[K, V]) TryInsert(key K, value V) (bool, error) {
	if err := d.check(); err != nil {
		return false, err
	}
	defer runtime.KeepAlive(d)
	st := d.st
	h := st.hash(key)
	if _, i := st.find(h, key); i >= 0 {
		return false, nil
	}
	if err := st.insertNew(h, key, value); err != nil {
		return false, err
	}
	return true, nil
}

// Set inserts an entry for key or replaces the value of the existing one.
func (d *Dict[K, V]) Set(key K, value V) error {
	if err := d.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(d)
	st := d.st
	h := st.hash(key)
	if s, i := st.find(h, key); i >= 0 {
		s.nodes[i].value = value
		return nil
	}
	return st.insertNew(h, key, value)
}

// Get returns the value for key, failing with ErrKeyNotFound if key is not
// present.
func (d *Dict[K, V]) Get(key K) (V, error) {
	v, ok, err := d.TryGet(key)
	if err == nil && !ok {
		err = errors.Wrapf(ErrKeyNotFound, "%v", key)
	}
	return v, err
}

// TryGet returns the value for key and whether key was present.
func (d *Dict[K, V]) TryGet(key K) (value V, ok bool, err error) {
	if err := d.check(); err != nil {
		return value, false, err
	}
	defer runtime.KeepAlive(d)
	s, i := d.st.find(d.st.hash(key), key)
	if i < 0 {
		return value, false, nil
	}
	return s.nodes[i].value, true, nil
}

// ContainsKey reports whether key is present.
func (d *Dict[K, V]) ContainsKey(key K) (bool, error) {
	_, ok, err := d.TryGet(key)
	return ok, err
}

// Remove deletes the entry for key, returning false if key is not present.
func (d *Dict[K, V]) Remove(key K) (bool, error) {
	if err := d.check(); err != nil {
		return false, err
	}
	defer runtime.KeepAlive(d)
	st := d.st
	s, i := st.find(st.hash(key), key)
	if i < 0 {
		return false, nil
	}
	n := s.nodes[i]
	if n.prev != 0 {
		s.nodes[n.prev-1].next = n.next
	} else {
		s.first = n.next
	}
	if n.next != 0 {
		s.nodes[n.next-1].prev = n.prev
	} else {
		s.last = n.prev
	}
	s.nodes[i] = node[K, V]{}
	s.count--
	st.count--
	st.checkInvariants()
	return true, nil
}

// Clear removes every entry. The bucket count and node arrays are retained.
func (d *Dict[K, V]) Clear() error {
	if err := d.check(); err != nil {
		return err
	}
	defer runtime.KeepAlive(d)
	for i := range d.st.buckets {
		s := &d.st.buckets[i]
		Zero(s.nodes)
		s.first, s.last, s.count = 0, 0, 0
	}
	d.st.count = 0
	return nil
}

// All returns an iterator over every key and value. The iteration order is
// unspecified. Modifying the dictionary during iteration is undefined.
func (d *Dict[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		defer runtime.KeepAlive(d)
		for i := range d.st.buckets {
			s := &d.st.buckets[i]
			for j := s.first; j != 0; j = s.nodes[j-1].next {
				n := &s.nodes[j-1]
				if !yield(n.key, n.value) {
					return
				}
			}
		}
	}
}

// find returns the bucket key hashes to and the index of key's entry in that
// bucket's node array, or -1.
func (st *dictState[K, V]) find(h uint64, key K) (*slot[K, V], int) {
	s := &st.buckets[h&uint64(len(st.buckets)-1)]
	for j := s.first; j != 0; j = s.nodes[j-1].next {
		if s.nodes[j-1].key == key {
			return s, int(j - 1)
		}
	}
	return s, -1
}

// insertNew adds an entry for a key known to be absent, growing the table
// first if the load factor is already exceeded.
func (st *dictState[K, V]) insertNew(h uint64, key K, value V) error {
	if float64(st.count) > float64(len(st.buckets))*maxLoadFactor {
		if err := st.resize(2 * len(st.buckets)); err != nil {
			return err
		}
	}
	s := &st.buckets[h&uint64(len(st.buckets)-1)]
	if err := st.uncheckedInsert(s, key, value); err != nil {
		return err
	}
	st.count++
	st.checkInvariants()
	return nil
}

// uncheckedInsert appends an entry to the chain of s without checking
// whether key is already present.
func (st *dictState[K, V]) uncheckedInsert(s *slot[K, V], key K, value V) error {
	i := -1
	switch {
	case len(s.nodes) == 0:
		nodes, err := Allocate[node[K, V]](st.allocator, defaultSlotCapacity, true)
		if err != nil {
			return err
		}
		s.nodes = nodes
		i = 0
	case int(s.count) == len(s.nodes):
		oldCap := len(s.nodes)
		nodes, err := Reallocate(st.allocator, s.nodes, 2*oldCap)
		if err != nil {
			return err
		}
		Zero(nodes[oldCap:])
		s.nodes = nodes
		i = oldCap
		st.logger.Debug("memory: dict bucket grown",
			slog.Int("from", oldCap), slog.Int("to", len(nodes)))
	default:
		for j := range s.nodes {
			if s.isFree(j) {
				i = j
				break
			}
		}
		if i < 0 {
			panic(fmt.Sprintf("memory: bucket with %d of %d entries in use has no free entry", s.count, len(s.nodes)))
		}
	}

	s.nodes[i] = node[K, V]{key: key, value: value, prev: s.last}
	if s.last != 0 {
		s.nodes[s.last-1].next = int32(i + 1)
	} else {
		s.first = int32(i + 1)
	}
	s.last = int32(i + 1)
	s.count++
	return nil
}

// resize rebuilds the table with n buckets. The old node arrays are released
// only after every entry has been reinserted. If an allocation fails the new
// node arrays are released and the table is left unchanged.
func (st *dictState[K, V]) resize(n int) error {
	buckets := make([]slot[K, V], n)
	mask := uint64(n - 1)
	for i := range st.buckets {
		s := &st.buckets[i]
		for j := s.first; j != 0; j = s.nodes[j-1].next {
			e := &s.nodes[j-1]
			if err := st.uncheckedInsert(&buckets[st.hash(e.key)&mask], e.key, e.value); err != nil {
				releaseSlots(st.allocator, st.logger, buckets)
				return errors.Wrapf(err, "dict resize %d -> %d buckets", len(st.buckets), n)
			}
		}
	}

	st.logger.Debug("memory: dict resized",
		slog.Int("from", len(st.buckets)), slog.Int("to", n), slog.Int("len", st.count))
	releaseSlots(st.allocator, st.logger, st.buckets)
	st.buckets = buckets
	st.checkInvariants()
	return nil
}

func (st *dictState[K, V]) checkInvariants() {
	if invariants {
		if b := len(st.buckets); b == 0 || b&(b-1) != 0 {
			panic(fmt.Sprintf("invariant failed: %d buckets is not a power of two", b))
		}
		mask := uint64(len(st.buckets) - 1)
		var total int
		for i := range st.buckets {
			s := &st.buckets[i]
			// Walk the chain, verifying back links and that every key hashes
			// here.
			var n int32
			var prev int32
			for j := s.first; j != 0; j = s.nodes[j-1].next {
				e := &s.nodes[j-1]
				if e.prev != prev {
					panic(fmt.Sprintf("invariant failed: bucket %d: node %d has prev %d, expected %d\n%s",
						i, j-1, e.prev, prev, st.debugString()))
				}
				if h := st.hash(e.key) & mask; h != uint64(i) {
					panic(fmt.Sprintf("invariant failed: bucket %d: key %v hashes to bucket %d\n%s",
						i, e.key, h, st.debugString()))
				}
				prev = j
				n++
				if int(n) > len(s.nodes) {
					panic(fmt.Sprintf("invariant failed: bucket %d: chain is cyclic\n%s", i, st.debugString()))
				}
			}
			if prev != s.last {
				panic(fmt.Sprintf("invariant failed: bucket %d: chain ends at %d, last is %d\n%s",
					i, prev, s.last, st.debugString()))
			}
			if n != s.count {
				panic(fmt.Sprintf("invariant failed: bucket %d: chain has %d nodes, count is %d\n%s",
					i, n, s.count, st.debugString()))
			}
			// Every entry that is not free must be reachable from first.
			var live int32
			for j := range s.nodes {
				if !s.isFree(j) {
					live++
				}
			}
			if live != n {
				panic(fmt.Sprintf("invariant failed: bucket %d: %d entries in use, %d reachable\n%s",
					i, live, n, st.debugString()))
			}
			total += int(n)
		}
		if total != st.count {
			panic(fmt.Sprintf("invariant failed: found %d entries, but count is %d\n%s",
				total, st.count, st.debugString()))
		}
	}
}

func (st *dictState[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  len=%d\n", len(st.buckets), st.count)
	for i := range st.buckets {
		s := &st.buckets[i]
		if len(s.nodes) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "  %4d: first=%d last=%d count=%d cap=%d\n", i, s.first, s.last, s.count, len(s.nodes))
		for j := range s.nodes {
			e := &s.nodes[j]
			if s.isFree(j) {
				fmt.Fprintf(&buf, "        %4d: free\n", j)
			} else {
				fmt.Fprintf(&buf, "        %4d: %v [prev=%d next=%d]\n", j, e.key, e.prev, e.next)
			}
		}
	}
	return buf.String()
}
