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

package memory_test

import (
	"fmt"

	"github.com/djmoth/piine/memory"
)

func ExampleBufferPool() {
	type voxel struct {
		Material uint16
		Light    uint8
		Flags    uint8
	}

	pool, err := memory.NewBufferPool[voxel](4, 16*16*16)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	chunk, _ := pool.Allocate(true)
	memory.Fill(chunk, voxel{Material: 1, Light: 15})
	fmt.Println(len(chunk), chunk[0], pool.Allocated())

	if err := pool.Free(&chunk); err != nil {
		panic(err)
	}
	fmt.Println(chunk == nil, pool.Allocated())
	// Output:
	// 4096 {1 15 0} 1
	// true 0
}

func ExampleDict() {
	tracker := memory.NewTracker(memory.GoAllocator{})
	d, err := memory.NewDict[int32, float64](memory.WithAllocator(tracker))
	if err != nil {
		panic(err)
	}

	for i := int32(0); i < 10; i++ {
		_ = d.Insert(i, float64(i)/2)
	}
	v, _ := d.Get(7)
	_, err = d.Get(70)
	fmt.Println(d.Len(), v, err)

	d.Close()
	fmt.Println(tracker.CheckLeaks())
	// Output:
	// 10 3.5 70: memory: key not found
	// <nil>
}

func ExampleList() {
	l, err := memory.NewList[int](0)
	if err != nil {
		panic(err)
	}
	defer l.Close()

	for i := 1; i <= 5; i++ {
		_ = l.Add(i * i)
	}
	_ = l.RemoveAt(0)
	fmt.Println(l.Slice(), l.Len(), l.Cap())
	// Output:
	// [4 9 16 25] 4 8
}
