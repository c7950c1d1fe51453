// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"sync"

	"github.com/grailbio/bigcg/region"
)

// shardKey names one shard of one handle.
type shardKey struct {
	handle uint64
	shard  int
}

// access records the tasks that touched a shard: the last writer,
// and the readers launched since that writer.
type access struct {
	writer  *Task
	readers []*Task
}

// A tracker infers task dependencies from region requirements in
// launch order. A reader depends on the shard's last writer; a
// writer depends on the last writer and on every reader since.
// Simultaneous requirements are not tracked; they are ordered by
// explicit synchronization. Tasks that completed successfully impose
// no ordering and are dropped as later tasks are added.
type tracker struct {
	mu       sync.Mutex
	accesses map[shardKey]*access
}

func newTracker() *tracker {
	return &tracker{accesses: make(map[shardKey]*access)}
}

// Add registers task t with the provided requirements and returns its
// dependencies. The returned list does not contain duplicates or t
// itself.
func (k *tracker) Add(t *Task, reqs []region.Requirement) []*Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	var (
		deps []*Task
		seen = map[*Task]bool{t: true}
	)
	dep := func(d *Task) {
		if d == nil || seen[d] {
			return
		}
		seen[d] = true
		deps = append(deps, d)
	}
	for _, req := range reqs {
		if req.Coherence == region.Simultaneous {
			continue
		}
		for _, shard := range req.Shards() {
			key := shardKey{req.Handle.ID(), shard}
			acc := k.accesses[key]
			if acc == nil {
				acc = new(access)
				k.accesses[key] = acc
			}
			if done(acc.writer) {
				acc.writer = nil
			}
			dep(acc.writer)
			if req.Writes() {
				for _, r := range acc.readers {
					dep(r)
				}
				acc.writer = t
				acc.readers = nil
			} else {
				acc.readers = append(pending(acc.readers), t)
			}
		}
	}
	return deps
}

// Len returns the number of task records retained by the tracker.
func (k *tracker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	var n int
	for _, acc := range k.accesses {
		if acc.writer != nil {
			n++
		}
		n += len(acc.readers)
	}
	return n
}

func done(t *Task) bool {
	return t != nil && t.State() == TaskOk
}

// pending compacts tasks in place, keeping those that have not
// completed successfully.
func pending(tasks []*Task) []*Task {
	live := tasks[:0]
	for _, t := range tasks {
		if !done(t) {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(tasks); i++ {
		tasks[i] = nil
	}
	return live
}

// Forget drops all records of the provided handle.
func (k *tracker) Forget(h *region.Handle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key := range k.accesses {
		if key.handle == h.ID() {
			delete(k.accesses, key)
		}
	}
}
