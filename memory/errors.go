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

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument indicates a non-positive size, a nil block or an
	// element type that cannot live in raw memory.
	ErrInvalidArgument = errors.New("memory: invalid argument")

	// ErrIndexOutOfRange indicates element access outside the current bounds.
	ErrIndexOutOfRange = errors.New("memory: index out of range")

	// ErrUseAfterFree indicates an operation on a closed container.
	ErrUseAfterFree = errors.New("memory: use after free")

	// ErrDuplicateKey indicates an insert of a key that is already present.
	ErrDuplicateKey = errors.New("memory: duplicate key")

	// ErrKeyNotFound indicates a lookup of a key that is not present.
	ErrKeyNotFound = errors.New("memory: key not found")

	// ErrEmptyCollection indicates a pop or peek on an empty stack.
	ErrEmptyCollection = errors.New("memory: collection is empty")

	// ErrCapacityViolation indicates a copy or add into storage that is too
	// small.
	ErrCapacityViolation = errors.New("memory: capacity exceeded")
)

func indexError(i, n int) error {
	return errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", i, n)
}

func closedError(kind string) error {
	return errors.Wrapf(ErrUseAfterFree, "%s is closed", kind)
}
