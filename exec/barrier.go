// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/sync/ctxsync"
)

// A PhaseBarrier is a reusable rendezvous with a fixed number of
// arrivals per generation. Generation g completes once it has
// received all of its arrivals and all generations before it have
// completed. Arrivals for later generations may be recorded before
// earlier generations complete.
type PhaseBarrier struct {
	name     string
	arrivals int

	mu   sync.Mutex
	cond *ctxsync.Cond
	// completed is the number of completed generations.
	completed int
	// pending counts arrivals of incomplete generations.
	pending map[int]int
}

// NewPhaseBarrier returns a new barrier that expects the provided
// number of arrivals in each generation.
func NewPhaseBarrier(name string, arrivals int) *PhaseBarrier {
	if arrivals <= 0 {
		log.Panicf("exec.NewPhaseBarrier %s: invalid arrival count %d", name, arrivals)
	}
	b := &PhaseBarrier{
		name:     name,
		arrivals: arrivals,
		pending:  make(map[int]int),
	}
	b.cond = ctxsync.NewCond(&b.mu)
	return b
}

// Arrive records one arrival at generation gen. Arriving more than
// Arrivals times at a generation is fatal.
func (b *PhaseBarrier) Arrive(gen int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen < b.completed {
		log.Panicf("barrier %s: arrival at completed generation %d", b.name, gen)
	}
	b.pending[gen]++
	if n := b.pending[gen]; n > b.arrivals {
		log.Panicf("barrier %s: generation %d: %d arrivals, expected %d", b.name, gen, n, b.arrivals)
	}
	advanced := false
	for b.pending[b.completed] == b.arrivals {
		delete(b.pending, b.completed)
		b.completed++
		advanced = true
	}
	if advanced {
		b.cond.Broadcast()
	}
}

// Wait blocks until generation gen has completed or the context is
// done. Waiting on a negative generation returns immediately.
func (b *PhaseBarrier) Wait(ctx context.Context, gen int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for b.completed <= gen && err == nil {
		err = b.cond.Wait(ctx)
	}
	return err
}

// Gen returns a reference to generation gen of the barrier.
func (b *PhaseBarrier) Gen(gen int) BarrierGen {
	return BarrierGen{b, gen}
}

// BarrierGen names a single generation of a phase barrier. Tasks
// wait on and arrive at barrier generations.
type BarrierGen struct {
	*PhaseBarrier
	Gen int
}

// Wait waits for the generation to complete.
func (g BarrierGen) Wait(ctx context.Context) error {
	return g.PhaseBarrier.Wait(ctx, g.Gen)
}

// Arrive arrives at the generation.
func (g BarrierGen) Arrive() {
	g.PhaseBarrier.Arrive(g.Gen)
}

func (g BarrierGen) String() string {
	return fmt.Sprintf("%s(%d)", g.name, g.Gen)
}
