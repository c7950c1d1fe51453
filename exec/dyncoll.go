// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/log"
)

// Op is a commutative, associative reduction operator.
type Op int

const (
	// Sum adds contributions.
	Sum Op = iota
	// Max takes the largest contribution.
	Max
)

func (op Op) String() string {
	switch op {
	case Sum:
		return "sum"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

func (op Op) apply(x, y float64) float64 {
	switch op {
	case Sum:
		return x + y
	case Max:
		if y > x {
			return y
		}
		return x
	default:
		panic(op)
	}
}

// fold combines vals pairwise as a balanced tree so that the result
// depends only on the order of vals.
func (op Op) fold(vals []float64) float64 {
	switch len(vals) {
	case 0:
		panic("exec: empty reduction")
	case 1:
		return vals[0]
	}
	m := len(vals) / 2
	return op.apply(op.fold(vals[:m]), op.fold(vals[m:]))
}

// A DynColl is an asynchronous collective reduction over a fixed
// number of participants. Each participant contributes one future per
// generation; all participants of a generation receive the same
// combined future. Contributions are combined in participant order,
// so the result does not depend on the order of arrival.
type DynColl struct {
	name  string
	arity int
	op    Op

	mu sync.Mutex
	// next is the next generation of each participant.
	next  []int
	slots map[int]*collSlot
}

type collSlot struct {
	parts  []*Future
	n      int
	full   chan struct{}
	result *Future
}

// NewDynColl returns a collective with the provided arity and
// operator.
func NewDynColl(name string, arity int, op Op) *DynColl {
	if arity <= 0 {
		log.Panicf("exec.NewDynColl %s: invalid arity %d", name, arity)
	}
	return &DynColl{
		name:  name,
		arity: arity,
		op:    op,
		next:  make([]int, arity),
		slots: make(map[int]*collSlot),
	}
}

// Arity returns the number of participants.
func (c *DynColl) Arity() int { return c.arity }

// Arrive registers participant's contribution f to its next
// generation and returns the generation's combined future. Arrive
// does not block; the returned future resolves once every
// participant has contributed and every contribution has resolved.
func (c *DynColl) Arrive(participant int, f *Future) *Future {
	if participant < 0 || participant >= c.arity {
		log.Panicf("dyncoll %s: participant %d out of range [0,%d)", c.name, participant, c.arity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.next[participant]
	c.next[participant]++
	slot := c.slots[gen]
	if slot == nil {
		slot = &collSlot{
			parts: make([]*Future, c.arity),
			full:  make(chan struct{}),
		}
		slot.result = newFuture(func(ctx context.Context) (float64, error) {
			select {
			case <-slot.full:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
			return c.combine(ctx, slot.parts)
		})
		c.slots[gen] = slot
	}
	slot.parts[participant] = f
	slot.n++
	if slot.n == c.arity {
		close(slot.full)
		// The generation is consumed; release it.
		delete(c.slots, gen)
	}
	return slot.result
}

// Reduce combines one complete set of contributions, one per
// participant, into a single future. Passing a number of futures
// other than the collective's arity is fatal.
func (c *DynColl) Reduce(futures []*Future) *Future {
	if len(futures) != c.arity {
		log.Panicf("dyncoll %s: %d contributions, expected %d", c.name, len(futures), c.arity)
	}
	parts := append([]*Future(nil), futures...)
	return newFuture(func(ctx context.Context) (float64, error) {
		return c.combine(ctx, parts)
	})
}

func (c *DynColl) combine(ctx context.Context, parts []*Future) (float64, error) {
	vals := make([]float64, len(parts))
	for i, f := range parts {
		v, err := f.Get(ctx)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	return c.op.fold(vals), nil
}
