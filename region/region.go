// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package region implements sharded storage handles. A Handle names
// an index space of a fixed length that is split into contiguous,
// disjoint shards. Typed value arrays (fields) are attached to a
// handle by composition and expose per-shard views of their backing
// storage.
//
// Handles do not lock. Instead, tasks declare the access they require
// to a handle's shards through Intent, and the runtime (package exec)
// infers ordering from overlapping requirements.
package region

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
)

// AllShards may be passed to Intent to declare access to every shard
// of a handle.
const AllShards = -1

var nextID uint64

// Bounds is an inclusive range of indices [Lo, Hi]. Empty shards
// have Hi == Lo-1.
type Bounds struct {
	Lo, Hi int
}

// Len returns the number of indices in the range.
func (b Bounds) Len() int {
	return b.Hi - b.Lo + 1
}

// Contains tells whether index i lies in the range.
func (b Bounds) Contains(i int) bool {
	return b.Lo <= i && i <= b.Hi
}

// String returns the range formatted as [lo,hi].
func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d]", b.Lo, b.Hi)
}

// A Handle is an opaque reference to a sharded index space.
type Handle struct {
	id     uint64
	name   string
	length int

	mu sync.Mutex
	// offsets holds the cumulative shard offsets; shard i spans
	// [offsets[i], offsets[i+1]).
	offsets []int
	epoch   int
	freed   bool
}

// Allocate returns a new handle for an index space of the provided
// length. The handle starts out with a single shard.
func Allocate(name string, length int) *Handle {
	must.Truef(length >= 0, "region.Allocate %s: negative length %d", name, length)
	return &Handle{
		id:      atomic.AddUint64(&nextID, 1),
		name:    name,
		length:  length,
		offsets: []int{0, length},
	}
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() uint64 { return h.id }

// Name returns the handle's name.
func (h *Handle) Name() string { return h.name }

// Len returns the length of the handle's index space.
func (h *Handle) Len() int { return h.length }

// String returns a short description of the handle.
func (h *Handle) String() string {
	return fmt.Sprintf("%s#%d", h.name, h.id)
}

// Partition splits the handle evenly into nParts shards. The length
// must be divisible by nParts.
func (h *Handle) Partition(nParts int) {
	must.Truef(nParts > 0, "region %s: partition into %d parts", h, nParts)
	must.Truef(h.length%nParts == 0, "region %s: length %d not divisible into %d parts", h, h.length, nParts)
	lens := make([]int, nParts)
	for i := range lens {
		lens[i] = h.length / nParts
	}
	h.PartitionLens(lens)
}

// PartitionLens splits the handle into len(lens) shards where shard
// i has length lens[i]. The lengths must sum to the handle's length;
// zero lengths are permitted.
func (h *Handle) PartitionLens(lens []int) {
	must.Truef(len(lens) > 0, "region %s: empty partition", h)
	offsets := make([]int, len(lens)+1)
	for i, n := range lens {
		must.Truef(n >= 0, "region %s: negative shard length %d", h, n)
		offsets[i+1] = offsets[i] + n
	}
	must.Truef(offsets[len(lens)] == h.length,
		"region %s: shard lengths sum to %d, want %d", h, offsets[len(lens)], h.length)
	h.mu.Lock()
	h.checkLive()
	h.offsets = offsets
	h.epoch++
	h.mu.Unlock()
}

// Epoch returns the number of times the handle has been partitioned.
// Cached state derived from a partition should be rebuilt when the
// epoch changes.
func (h *Handle) Epoch() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epoch
}

// NumShards returns the number of shards in the current partition.
func (h *Handle) NumShards() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.offsets) - 1
}

// Bounds returns the inclusive index range of the provided shard.
func (h *Handle) Bounds(shard int) Bounds {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkLive()
	if shard < 0 || shard >= len(h.offsets)-1 {
		log.Panicf("region %s: shard %d out of range [0,%d)", h, shard, len(h.offsets)-1)
	}
	return Bounds{h.offsets[shard], h.offsets[shard+1] - 1}
}

// Lens returns the length of each shard in the current partition.
func (h *Handle) Lens() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	lens := make([]int, len(h.offsets)-1)
	for i := range lens {
		lens[i] = h.offsets[i+1] - h.offsets[i]
	}
	return lens
}

// Owner returns the shard that holds global index i.
func (h *Handle) Owner(i int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= h.length {
		log.Panicf("region %s: index %d out of range [0,%d)", h, i, h.length)
	}
	// The first shard whose end exceeds i; this skips empty shards.
	return sort.Search(len(h.offsets)-1, func(s int) bool {
		return h.offsets[s+1] > i
	})
}

// Deallocate releases the handle. Subsequent accesses to its shards
// are fatal.
func (h *Handle) Deallocate() {
	h.mu.Lock()
	h.freed = true
	h.mu.Unlock()
}

func (h *Handle) checkLive() {
	if h.freed {
		log.Panicf("region %s: use after deallocate", h)
	}
}

// Same tells whether a and b refer to the same allocation.
func Same(a, b *Handle) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.id == b.id
}
