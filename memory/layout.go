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
	"reflect"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// layoutCache maps reflect.Type to the error (or nil) returned by
// checkLayout for that type.
var layoutCache sync.Map

// checkLayout reports whether T may be stored in memory handed out by an
// Allocator. Such memory is invisible to the garbage collector (or outside
// the Go heap entirely), so T must not contain pointers of any kind, and it
// must have a non-zero size.
func checkLayout[T any]() error {
	t := reflect.TypeFor[T]()
	if v, ok := layoutCache.Load(t); ok {
		if v == nil {
			return nil
		}
		return v.(error)
	}
	var err error
	switch {
	case t.Size() == 0:
		err = errors.Wrapf(ErrInvalidArgument, "type %s has zero size", t)
	case hasPointers(t):
		err = errors.Wrapf(ErrInvalidArgument, "type %s contains pointers", t)
	}
	if err == nil {
		layoutCache.Store(t, nil)
	} else {
		layoutCache.Store(t, err)
	}
	return err
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func sizeOf[T any]() int {
	var t T
	return int(unsafe.Sizeof(t))
}

// bytesToSlice reinterprets b as a []T of n elements. b must hold at least
// n*sizeof(T) bytes.
func bytesToSlice[T any](b []byte, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// sliceToBytes is the inverse of bytesToSlice.
func sliceToBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*sizeOf[T]())
}

// addressOf returns the address of the first element of s.
func addressOf[T any](s []T) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s)))
}
