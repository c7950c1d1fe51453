// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/bigcg/exec"
	"github.com/grailbio/bigcg/region"
)

// A HaloEdge carries the boundary values that one shard (From) owns
// and another shard (To) references.
type HaloEdge struct {
	// ID is the edge's index in HaloPlan.Edges.
	ID       int
	From, To int
	// Rows are the global rows sent over the edge, in ascending order.
	Rows []int64
	// Offset is the position of the edge's first value within the
	// consumer's ghost values.
	Offset int
}

func (e *HaloEdge) String() string {
	return fmt.Sprintf("%d->%d(%d)", e.From, e.To, len(e.Rows))
}

// A HaloPlan describes the halo exchange of a matrix: for each shard,
// the remote rows it reads (its ghosts) and the owned rows it sends.
type HaloPlan struct {
	rows  *region.Handle
	epoch int

	// Edges lists every producer-consumer pair.
	Edges []*HaloEdge
	// Ghosts is the number of ghost values of each shard.
	Ghosts []int
	// In and Out list the edges consumed and produced by each shard.
	In, Out [][]*HaloEdge
}

// valid tells whether the plan still matches the partition it was
// built for.
func (p *HaloPlan) valid() bool {
	return p.epoch == p.rows.Epoch()
}

// SetupHalo computes the halo plan of matrix A and translates its
// global column indices into shard-local ones (LocalCols). Remote
// columns of a shard are grouped by owning shard, in shard order,
// and sorted by row within each group. SetupHalo is idempotent for an
// unchanged partition.
func SetupHalo(A *SparseMatrix) *HaloPlan {
	if A.Halo != nil && region.Same(A.Halo.rows, A.Rows) && A.Halo.valid() {
		return A.Halo
	}
	n := A.NumShards()
	plan := &HaloPlan{
		rows:   A.Rows,
		epoch:  A.Rows.Epoch(),
		Ghosts: make([]int, n),
		In:     make([][]*HaloEdge, n),
		Out:    make([][]*HaloEdge, n),
	}
	for s := 0; s < n; s++ {
		var (
			b      = A.Rows.Bounds(s)
			nnz    = A.NNZ.Shard(s)
			cols   = A.Cols.Shard(s)
			remote = make(map[int]map[int64]bool)
		)
		for i := range nnz {
			for _, c := range cols[i*A.Width : i*A.Width+int(nnz[i])] {
				if b.Contains(int(c)) {
					continue
				}
				owner := A.Rows.Owner(int(c))
				must.Truef(owner != s, "matrix %s: column %d has shard %d as remote owner", A.Name, c, s)
				if remote[owner] == nil {
					remote[owner] = make(map[int64]bool)
				}
				remote[owner][c] = true
			}
		}
		owners := make([]int, 0, len(remote))
		for owner := range remote {
			owners = append(owners, owner)
		}
		sort.Ints(owners)
		slot := make(map[int64]int)
		offset := 0
		for _, owner := range owners {
			edge := &HaloEdge{ID: len(plan.Edges), From: owner, To: s, Offset: offset}
			for row := range remote[owner] {
				edge.Rows = append(edge.Rows, row)
			}
			sort.Slice(edge.Rows, func(i, j int) bool { return edge.Rows[i] < edge.Rows[j] })
			for i, row := range edge.Rows {
				if _, ok := slot[row]; ok {
					log.Panicf("matrix %s: ghost row %d of shard %d has more than one producer", A.Name, row, s)
				}
				slot[row] = offset + i
			}
			offset += len(edge.Rows)
			plan.Edges = append(plan.Edges, edge)
			plan.In[s] = append(plan.In[s], edge)
			plan.Out[owner] = append(plan.Out[owner], edge)
		}
		plan.Ghosts[s] = offset
		local := A.LocalCols.Shard(s)
		for i := range nnz {
			for k := i * A.Width; k < i*A.Width+int(nnz[i]); k++ {
				c := cols[k]
				if b.Contains(int(c)) {
					local[k] = c - int64(b.Lo)
				} else {
					local[k] = int64(b.Len() + slot[c])
				}
			}
		}
	}
	plan.check()
	A.Halo = plan
	log.Debug.Printf("matrix %s: halo plan with %d edges", A.Name, len(plan.Edges))
	return plan
}

// check verifies that every shard sends exactly what its neighbors
// receive.
func (p *HaloPlan) check() {
	n := len(p.Ghosts)
	sent, recv := make([]int, n*n), make([]int, n*n)
	for s := 0; s < n; s++ {
		for _, e := range p.Out[s] {
			must.Truef(e.From == s, "halo: edge %v listed as output of shard %d", e, s)
			sent[e.From*n+e.To] += len(e.Rows)
		}
		total := 0
		for _, e := range p.In[s] {
			must.Truef(e.To == s, "halo: edge %v listed as input of shard %d", e, s)
			recv[e.From*n+e.To] += len(e.Rows)
			total += len(e.Rows)
		}
		must.Truef(total == p.Ghosts[s], "halo: shard %d receives %d values into %d ghosts", s, total, p.Ghosts[s])
	}
	for i := range sent {
		must.Truef(sent[i] == recv[i], "halo: shard %d sends %d values to shard %d, which receives %d",
			i/n, sent[i], i%n, recv[i])
	}
}

// vectorHalo holds the ghost values of a vector for one halo plan
// along with the barriers that order their exchange. For each edge,
// generation g of "ready" completes once the producer has written
// the values of the g'th exchange; generation g of "done" completes
// once the consumer has finished reading them.
type vectorHalo struct {
	plan   *HaloPlan
	epoch  int
	ghosts *region.Float64s
	ready  []*exec.PhaseBarrier
	done   []*exec.PhaseBarrier
	// gen is the number of exchanges issued by each shard.
	gen []int
}

func newVectorHalo(v *Vector, plan *HaloPlan) *vectorHalo {
	h := region.Allocate(v.Name()+".ghosts", sum(plan.Ghosts))
	h.PartitionLens(plan.Ghosts)
	halo := &vectorHalo{
		plan:   plan,
		epoch:  v.Epoch(),
		ghosts: region.NewFloat64s(h, 1),
		ready:  make([]*exec.PhaseBarrier, len(plan.Edges)),
		done:   make([]*exec.PhaseBarrier, len(plan.Edges)),
		gen:    make([]int, len(plan.Ghosts)),
	}
	for i, e := range plan.Edges {
		// Each edge has exactly one producer and one consumer.
		halo.ready[i] = exec.NewPhaseBarrier(fmt.Sprintf("%s.ready%v", v.Name(), e), 1)
		halo.done[i] = exec.NewPhaseBarrier(fmt.Sprintf("%s.done%v", v.Name(), e), 1)
	}
	return halo
}

// ghostAccess is what a kernel reading a shard's ghost values must
// declare: the ghost requirement, the barriers to wait on before it
// runs, and the barriers to arrive at once it is done reading.
type ghostAccess struct {
	ghosts       *region.Float64s
	requirements []region.Requirement
	wait, arrive []exec.BarrierGen
}

// values returns the ghost values of the provided shard.
func (g ghostAccess) values(shard int) []float64 {
	return g.ghosts.Shard(shard)
}

// exchangeHalo issues shard sh's part of one halo exchange of vector
// v under plan: it launches a copy task for each edge produced by the
// shard, and returns the access the shard's consuming kernel must
// declare. Exactly one consuming kernel launch (or chain of launches)
// must follow each exchange.
func exchangeHalo(ctx context.Context, sh *exec.Shard, plan *HaloPlan, v *Vector) ghostAccess {
	defer timerHalo.Since(&sh.Scope, time.Now())
	var (
		h   = v.halo(plan)
		s   = sh.Index
		gen = h.gen[s]
	)
	h.gen[s]++
	haloExchanges.Incr(&sh.Scope, 1)
	for _, e := range plan.Out[s] {
		e := e
		sh.Launch(ctx, exec.Launcher{
			Op: "halo",
			Requirements: []region.Requirement{
				v.Intent(region.ReadOnly, region.Exclusive, s),
				h.ghosts.Intent(region.WriteOnly, region.Simultaneous, e.To),
			},
			Wait:   []exec.BarrierGen{h.done[e.ID].Gen(gen - 1)},
			Arrive: []exec.BarrierGen{h.ready[e.ID].Gen(gen)},
			Do: func(ctx context.Context) (float64, error) {
				var (
					src = v.Values()
					dst = h.ghosts.Shard(e.To)[e.Offset : e.Offset+len(e.Rows)]
				)
				for i, row := range e.Rows {
					dst[i] = src[row]
				}
				return 0, nil
			},
		})
	}
	access := ghostAccess{
		ghosts:       h.ghosts,
		requirements: []region.Requirement{h.ghosts.Intent(region.ReadOnly, region.Simultaneous, s)},
	}
	for _, e := range plan.In[s] {
		access.wait = append(access.wait, h.ready[e.ID].Gen(gen))
		access.arrive = append(access.arrive, h.done[e.ID].Gen(gen))
	}
	return access
}

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}
