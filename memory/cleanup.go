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
	"runtime"

	"golang.org/x/exp/slog"
)

// releaser is the allocation-owning state of a container. release frees
// every block still held and returns the number of bytes released. It must
// be idempotent.
type releaser interface {
	release(logger *slog.Logger) int
}

// attachCleanup arranges for st to be released if handle becomes
// unreachable before the container is closed. st must not reference handle.
// The returned Cleanup is stopped by Close.
//
// A reclaim through this path is a bug in the caller: it is logged, and
// counted by the allocator if the allocator is a *Tracker so that
// Tracker.CheckLeaks reports it.
func attachCleanup[H any](handle *H, kind string, st releaser, c config) runtime.Cleanup {
	allocator, logger := c.allocator, c.logger
	return runtime.AddCleanup(handle, func(st releaser) {
		n := st.release(logger)
		if t, ok := allocator.(*Tracker); ok {
			t.recordLeak()
		}
		logger.Warn("memory: container reclaimed without Close",
			slog.String("kind", kind), slog.Int("bytes", n))
	}, st)
}

// freeBlock releases block, logging rather than returning any failure, and
// returns the number of bytes released. It is used on Close paths, which
// never fail.
func freeBlock[T any](a Allocator, logger *slog.Logger, kind string, block *[]T) int {
	if len(*block) == 0 {
		return 0
	}
	n := len(*block) * sizeOf[T]()
	if err := Free(a, block); err != nil {
		logger.Error("memory: release failed", slog.String("kind", kind), slog.Any("err", err))
		*block = nil
		return 0
	}
	return n
}
