// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cgmachine runs bigcg solves on bigmachine machines. A
// Request names a generated problem rather than carrying its matrix,
// so the worker builds the system itself and only the Report crosses
// the wire.
package cgmachine

import (
	"context"
	"encoding/gob"
	"fmt"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigcg"
	"github.com/grailbio/bigcg/exec"
	"github.com/grailbio/bigcg/problem"
	"github.com/grailbio/bigmachine"
)

func init() {
	gob.Register(&Solver{})
}

// Problem kinds understood by Request.
const (
	Stencil27 = "stencil27"
	Poisson1D = "poisson1d"
)

// A Request describes a solve: the problem to generate and the CG
// options to solve it with.
type Request struct {
	// Problem is Stencil27 or Poisson1D.
	Problem string
	// Geometry is the grid of a Stencil27 problem.
	Geometry problem.Geometry
	// Lens are the shard lengths of a Poisson1D problem.
	Lens []int
	// Levels is the maximum number of multigrid levels.
	Levels  int
	Options bigcg.CGOptions
}

func (r Request) String() string {
	switch r.Problem {
	case Stencil27:
		return fmt.Sprintf("%s %v", r.Problem, r.Geometry)
	default:
		return fmt.Sprintf("%s %v", r.Problem, r.Lens)
	}
}

// System generates the request's linear system.
func (r Request) System() (*bigcg.System, error) {
	levels := r.Levels
	if levels <= 0 {
		levels = 1
	}
	switch strings.ToLower(r.Problem) {
	case Stencil27:
		g := r.Geometry
		if g.NX <= 0 || g.NY <= 0 || g.NZ <= 0 || g.Shards <= 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("cgmachine: invalid geometry %v", g))
		}
		return problem.Stencil27(g, levels), nil
	case Poisson1D:
		if len(r.Lens) == 0 {
			return nil, errors.E(errors.Invalid, "cgmachine: no shards")
		}
		for _, n := range r.Lens {
			if n < 0 {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("cgmachine: invalid shard lengths %v", r.Lens))
			}
		}
		return problem.Poisson1D(r.Lens, levels), nil
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("cgmachine: unknown problem %q", r.Problem))
	}
}

// Solve generates the request's system and solves it in session sess.
func Solve(ctx context.Context, sess *exec.Session, req Request) (*bigcg.Report, error) {
	sys, err := req.System()
	if err != nil {
		return nil, err
	}
	return bigcg.Solve(ctx, sess, sys, req.Options)
}

// Solver is the bigmachine service that runs solves on a worker
// machine. Each worker runs its solves in a session sized to the
// machine.
type Solver struct {
	// Exported just satisfies gob's persnickety nature: we need at least
	// one exported field.
	Exported struct{}

	sess *exec.Session
}

// Init starts the worker's session.
func (s *Solver) Init(b *bigmachine.B) error {
	procs := b.System().Maxprocs()
	if procs == 0 {
		procs = runtime.GOMAXPROCS(0)
	}
	s.sess = exec.Start(exec.Parallelism(procs))
	return nil
}

// Solve runs the request on the worker and returns its report.
func (s *Solver) Solve(ctx context.Context, req Request, report *bigcg.Report) error {
	log.Printf("cgmachine: solving %v", req)
	r, err := Solve(ctx, s.sess, req)
	if err != nil {
		return err
	}
	*report = *r
	return nil
}

// Run starts a single machine on system, runs the request on it, and
// shuts the machine down.
func Run(ctx context.Context, system bigmachine.System, req Request) (*bigcg.Report, error) {
	b := bigmachine.Start(system)
	defer b.Shutdown()
	machines, err := b.Start(ctx, 1, bigmachine.Services{"Solver": &Solver{}})
	if err != nil {
		return nil, err
	}
	m := machines[0]
	select {
	case <-m.Wait(bigmachine.Running):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := m.Err(); err != nil {
		return nil, errors.E(errors.Unavailable, fmt.Sprintf("cgmachine: machine %s failed to start", m.Addr), err)
	}
	log.Printf("cgmachine: running %v on %s", req, m.Addr)
	report := new(bigcg.Report)
	if err := m.RetryCall(ctx, "Solver.Solve", req, report); err != nil {
		return nil, err
	}
	return report, nil
}
