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

// Package memory provides containers whose storage is managed explicitly
// rather than by the garbage collector: a fixed buffer pool, a growable list
// and stack, a fixed-length array and a separate-chaining hash dictionary.
// They are meant for hot paths (a voxel engine's chunk buffers, for example)
// where the caller knows exactly when memory can be released and wants
// allocation to be cheap, predictable and measurable.
//
// Every container obtains its memory from an Allocator. The Allocator deals
// in raw byte blocks; the generic helpers Allocate, Reallocate, Free, Fill,
// Zero and Copy convert between blocks and typed slices. Three allocators
// are provided:
//
//   - GoAllocator keeps blocks on the Go heap.
//   - MmapAllocator keeps blocks in anonymous memory mappings outside the Go
//     heap (unix only).
//   - Tracker wraps another Allocator and accounts for the bytes it hands
//     out. It exports its counters as prometheus metrics and can report
//     leaks. DefaultAllocator is a Tracker over a GoAllocator.
//
// Because the garbage collector does not scan this memory, element types
// must not contain pointers (no strings, slices, maps, interfaces, channels,
// funcs or pointers). Constructors fail with ErrInvalidArgument for such
// types.
//
// # Ownership
//
// A container owns its memory from construction until Close, which must be
// called exactly once when the container is no longer needed (Close is
// idempotent, so a second call is harmless). Operations on a closed
// container fail with ErrUseAfterFree. A container that becomes unreachable
// without being closed is released by a runtime cleanup, which logs a
// warning and counts a leak in the Tracker; tests can turn that into a
// failure with Tracker.CheckLeaks.
//
// The checks stop at the container boundary. Freeing a raw block or a pool
// buffer twice, or reading through a slice after the memory behind it has
// been freed or moved by a reallocation, is undefined behavior. In
// particular a List may move its elements whenever it grows, so slices
// returned by List.Slice are only valid until the next mutation.
//
// # Concurrency
//
// Containers are NOT goroutine-safe. The allocators are.
//
// # Invariants
//
// Building with the invariants tag (go test -tags invariants) makes every
// container mutation verify its internal bookkeeping, panicking with a dump
// of the container state on failure.
package memory
