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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// newTestTracker returns a Tracker over the Go heap that fails the test if
// anything it handed out is still allocated when the test ends.
func newTestTracker(t *testing.T) *Tracker {
	tr := NewTracker(GoAllocator{})
	t.Cleanup(func() {
		require.NoError(t, tr.CheckLeaks())
	})
	return tr
}

// countingAllocator counts calls into the Go heap allocator.
type countingAllocator struct {
	GoAllocator
	alloc   int
	realloc int
	free    int
}

func (a *countingAllocator) Alloc(size int) ([]byte, error) {
	a.alloc++
	return a.GoAllocator.Alloc(size)
}

func (a *countingAllocator) Realloc(b []byte, size int) ([]byte, error) {
	a.realloc++
	return a.GoAllocator.Realloc(b, size)
}

func (a *countingAllocator) Free(b []byte) error {
	a.free++
	return a.GoAllocator.Free(b)
}

var errOutOfMemory = errors.New("out of memory")

// failingAllocator forwards to a Tracker until armed, after which every
// Alloc and Realloc fails.
type failingAllocator struct {
	*Tracker
	fail bool
}

func (a *failingAllocator) Alloc(size int) ([]byte, error) {
	if a.fail {
		return nil, errOutOfMemory
	}
	return a.Tracker.Alloc(size)
}

func (a *failingAllocator) Realloc(b []byte, size int) ([]byte, error) {
	if a.fail {
		return nil, errOutOfMemory
	}
	return a.Tracker.Realloc(b, size)
}
