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
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Tracker is an Allocator that forwards to another Allocator and accounts
// for every byte it hands out. It is the memory-pressure accounting of this
// package: bytes in use, the high water mark, and counts of allocations,
// frees, reallocations and containers reclaimed without Close.
//
// A Tracker is safe for concurrent use. It implements prometheus.Collector
// so it can be registered with a prometheus.Registerer.
type Tracker struct {
	a Allocator

	inUse    atomic.Int64
	peak     atomic.Int64
	allocs   atomic.Int64
	frees    atomic.Int64
	reallocs atomic.Int64
	leaks    atomic.Int64

	descs trackerDescs
}

type trackerDescs struct {
	inUse    *prometheus.Desc
	peak     *prometheus.Desc
	allocs   *prometheus.Desc
	frees    *prometheus.Desc
	reallocs *prometheus.Desc
	leaks    *prometheus.Desc
}

// Stats is a snapshot of a Tracker's counters.
type Stats struct {
	BytesInUse    int64 // Bytes currently allocated
	PeakBytes     int64 // High water mark of BytesInUse
	Allocations   int64 // Successful Alloc calls
	Frees         int64 // Successful Free calls
	Reallocations int64 // Successful Realloc calls
	Leaks         int64 // Containers reclaimed by cleanup rather than Close
}

var _ Allocator = (*Tracker)(nil)
var _ prometheus.Collector = (*Tracker)(nil)

// NewTracker returns a Tracker forwarding to a. Its metrics are exported
// with the "piine" namespace.
func NewTracker(a Allocator) *Tracker {
	return NewTrackerWithNamespace(a, "piine")
}

// NewTrackerWithNamespace returns a Tracker forwarding to a whose prometheus
// metrics are prefixed with namespace.
func NewTrackerWithNamespace(a Allocator, namespace string) *Tracker {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "memory", n)
	}
	return &Tracker{
		a: a,
		descs: trackerDescs{
			inUse:    prometheus.NewDesc(name("bytes_in_use"), "Bytes currently allocated.", nil, nil),
			peak:     prometheus.NewDesc(name("bytes_peak"), "High water mark of allocated bytes.", nil, nil),
			allocs:   prometheus.NewDesc(name("allocations_total"), "Number of allocations.", nil, nil),
			frees:    prometheus.NewDesc(name("frees_total"), "Number of frees.", nil, nil),
			reallocs: prometheus.NewDesc(name("reallocations_total"), "Number of reallocations.", nil, nil),
			leaks:    prometheus.NewDesc(name("leaks_total"), "Number of containers reclaimed without Close.", nil, nil),
		},
	}
}

// Alloc implements Allocator.
func (t *Tracker) Alloc(size int) ([]byte, error) {
	b, err := t.a.Alloc(size)
	if err != nil {
		return nil, err
	}
	t.allocs.Add(1)
	t.account(int64(len(b)))
	return b, nil
}

// Realloc implements Allocator. Only the difference between the old and the
// new size is accounted for.
func (t *Tracker) Realloc(b []byte, size int) ([]byte, error) {
	old := len(b)
	nb, err := t.a.Realloc(b, size)
	if err != nil {
		return nil, err
	}
	t.reallocs.Add(1)
	t.account(int64(len(nb) - old))
	return nb, nil
}

// Free implements Allocator.
func (t *Tracker) Free(b []byte) error {
	if err := t.a.Free(b); err != nil {
		return err
	}
	t.frees.Add(1)
	t.account(-int64(len(b)))
	return nil
}

func (t *Tracker) account(delta int64) {
	n := t.inUse.Add(delta)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// recordLeak notes that a container was reclaimed by its cleanup.
func (t *Tracker) recordLeak() {
	t.leaks.Add(1)
}

// Stats returns a snapshot of the Tracker's counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		BytesInUse:    t.inUse.Load(),
		PeakBytes:     t.peak.Load(),
		Allocations:   t.allocs.Load(),
		Frees:         t.frees.Load(),
		Reallocations: t.reallocs.Load(),
		Leaks:         t.leaks.Load(),
	}
}

// CheckLeaks returns an error if any bytes are still allocated or if any
// container was reclaimed without being closed.
func (t *Tracker) CheckLeaks() error {
	s := t.Stats()
	if s.BytesInUse != 0 {
		return errors.Newf("memory: %d bytes still in use (%d allocations, %d frees)",
			s.BytesInUse, s.Allocations, s.Frees)
	}
	if s.Leaks != 0 {
		return errors.Newf("memory: %d containers were never closed", s.Leaks)
	}
	return nil
}

// Describe implements prometheus.Collector.
func (t *Tracker) Describe(ch chan<- *prometheus.Desc) {
	ch <- t.descs.inUse
	ch <- t.descs.peak
	ch <- t.descs.allocs
	ch <- t.descs.frees
	ch <- t.descs.reallocs
	ch <- t.descs.leaks
}

// Collect implements prometheus.Collector.
func (t *Tracker) Collect(ch chan<- prometheus.Metric) {
	s := t.Stats()
	ch <- prometheus.MustNewConstMetric(t.descs.inUse, prometheus.GaugeValue, float64(s.BytesInUse))
	ch <- prometheus.MustNewConstMetric(t.descs.peak, prometheus.GaugeValue, float64(s.PeakBytes))
	ch <- prometheus.MustNewConstMetric(t.descs.allocs, prometheus.CounterValue, float64(s.Allocations))
	ch <- prometheus.MustNewConstMetric(t.descs.frees, prometheus.CounterValue, float64(s.Frees))
	ch <- prometheus.MustNewConstMetric(t.descs.reallocs, prometheus.CounterValue, float64(s.Reallocations))
	ch <- prometheus.MustNewConstMetric(t.descs.leaks, prometheus.CounterValue, float64(s.Leaks))
}
