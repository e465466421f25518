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

import "golang.org/x/exp/slog"

// config holds the settings shared by every container. Options modify it
// while a container is being created.
type config struct {
	allocator  Allocator
	logger     *slog.Logger
	hash       any
	bucketSize int
}

func makeConfig(options []Option) config {
	c := config{
		allocator: DefaultAllocator,
		logger:    slog.Default(),
	}
	for _, op := range options {
		op.apply(&c)
	}
	return c
}

// Option configures a container while it is being created.
type Option interface {
	apply(c *config)
}

type allocatorOption struct {
	allocator Allocator
}

func (op allocatorOption) apply(c *config) {
	if op.allocator != nil {
		c.allocator = op.allocator
	}
}

// WithAllocator is an option to specify the Allocator a container obtains
// its memory from. If the allocator manually manages memory, Close must be
// called on the container so that every block is released.
func WithAllocator(allocator Allocator) Option {
	return allocatorOption{allocator}
}

type loggerOption struct {
	logger *slog.Logger
}

func (op loggerOption) apply(c *config) {
	if op.logger != nil {
		c.logger = op.logger
	}
}

// WithLogger is an option to specify the logger used for diagnostics such as
// containers reclaimed without Close.
func WithLogger(logger *slog.Logger) Option {
	return loggerOption{logger}
}

type hashOption[K comparable] struct {
	hash func(key K) uint64
}

func (op hashOption[K]) apply(c *config) {
	c.hash = op.hash
}

// WithHash is an option to specify the hash function used by a Dict[K,V].
// The option is rejected with ErrInvalidArgument by dictionaries whose key
// type is not K, and ignored by other containers.
func WithHash[K comparable](hash func(key K) uint64) Option {
	return hashOption[K]{hash}
}

type bucketSizeOption struct {
	n int
}

func (op bucketSizeOption) apply(c *config) {
	c.bucketSize = op.n
}

// WithBucketSize is an option to specify the initial number of buckets of a
// Dict. It is rounded up to a power of two.
func WithBucketSize(n int) Option {
	return bucketSizeOption{n}
}
