// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/grailbio/bigcg/region"
	"github.com/spaolacci/murmur3"
)

// A Vector is a distributed float64 vector. Its values are sharded
// by the partition of its handle; ghost copies of remote values used
// by halo exchanges are kept per halo plan.
type Vector struct {
	*region.Float64s

	mu    sync.Mutex
	halos map[*HaloPlan]*vectorHalo
}

// NewVector returns a zeroed vector of length n, partitioned into
// shards of the provided lengths.
func NewVector(name string, lens []int) *Vector {
	n := 0
	for _, l := range lens {
		n += l
	}
	h := region.Allocate(name, n)
	h.PartitionLens(lens)
	return &Vector{Float64s: region.NewFloat64s(h, 1)}
}

// Local returns the values owned by the provided shard.
func (v *Vector) Local(shard int) []float64 {
	return v.Shard(shard)
}

// Fill sets every value of the vector to x. Fill is not a task; it
// must not be called while tasks using the vector are in flight.
func (v *Vector) Fill(x float64) {
	vals := v.Values()
	for i := range vals {
		vals[i] = x
	}
}

// Checksum returns a digest of the vector's values.
func (v *Vector) Checksum() uint64 {
	h := murmur3.New64()
	var buf [8]byte
	for _, x := range v.Values() {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Deallocate releases the vector and its ghost storage.
func (v *Vector) Deallocate() {
	v.mu.Lock()
	for _, h := range v.halos {
		h.ghosts.Deallocate()
	}
	v.halos = nil
	v.mu.Unlock()
	v.Float64s.Deallocate()
}

// halo returns the vector's halo state for plan, building it on
// first use or when the plan or the vector's partition changed.
func (v *Vector) halo(plan *HaloPlan) *vectorHalo {
	v.mu.Lock()
	defer v.mu.Unlock()
	if h := v.halos[plan]; h != nil && h.epoch == v.Epoch() && plan.valid() {
		return h
	}
	if v.halos == nil {
		v.halos = make(map[*HaloPlan]*vectorHalo)
	}
	h := newVectorHalo(v, plan)
	v.halos[plan] = h
	return h
}
