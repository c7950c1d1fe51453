// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package region

import "fmt"

// Privilege is the kind of access a task requires.
type Privilege int

const (
	// ReadOnly tasks observe the most recent writer.
	ReadOnly Privilege = iota
	// ReadWrite tasks observe the most recent writer and exclude
	// concurrent readers.
	ReadWrite
	// WriteOnly tasks replace contents without reading them.
	WriteOnly
)

var privileges = [...]string{
	ReadOnly:  "RO",
	ReadWrite: "RW",
	WriteOnly: "WO",
}

func (p Privilege) String() string { return privileges[p] }

// Coherence describes how an access is ordered relative to other
// accesses of the same shard.
type Coherence int

const (
	// Exclusive accesses are ordered in launch order.
	Exclusive Coherence = iota
	// Atomic accesses are serialized but may be reordered with
	// respect to each other.
	Atomic
	// Simultaneous accesses are not ordered by the runtime at all;
	// callers synchronize them explicitly (e.g. with phase barriers).
	Simultaneous
)

var coherences = [...]string{
	Exclusive:    "E",
	Atomic:       "A",
	Simultaneous: "S",
}

func (c Coherence) String() string { return coherences[c] }

// A Requirement declares that a task accesses a shard (or all shards)
// of a handle with a privilege and coherence mode.
type Requirement struct {
	Handle *Handle
	// Shard is the shard accessed, or AllShards.
	Shard     int
	Privilege Privilege
	Coherence Coherence
}

// Intent returns a requirement on the handle's shard.
func (h *Handle) Intent(priv Privilege, coh Coherence, shard int) Requirement {
	return Requirement{Handle: h, Shard: shard, Privilege: priv, Coherence: coh}
}

// Writes tells whether the requirement modifies the shard.
func (r Requirement) Writes() bool {
	return r.Privilege != ReadOnly
}

// Shards returns the shards named by the requirement.
func (r Requirement) Shards() []int {
	if r.Shard != AllShards {
		return []int{r.Shard}
	}
	shards := make([]int, r.Handle.NumShards())
	for i := range shards {
		shards[i] = i
	}
	return shards
}

func (r Requirement) String() string {
	shard := "*"
	if r.Shard != AllShards {
		shard = fmt.Sprint(r.Shard)
	}
	return fmt.Sprintf("%s[%s]:%s_%s", r.Handle, shard, r.Privilege, r.Coherence)
}
