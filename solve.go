// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigcg/exec"
	"github.com/grailbio/bigcg/metrics"
)

// A System is a linear system A·X = B together with its exact
// solution, used to measure the error of a solve.
type System struct {
	A *SparseMatrix
	// B is the right-hand side, X the initial guess and the solution
	// on return, XExact the exact solution (may be nil).
	B, X, XExact *Vector
}

// Report summarizes a solve.
type Report struct {
	Shards     int
	Rows       int
	NNZ        int64
	Levels     int
	Iterations int
	Normr      float64
	Normr0     float64
	// History is the residual norm before and after each iteration.
	History []float64
	// ErrInf is the infinity norm of X-XExact; it is zero if the
	// system has no exact solution.
	ErrInf float64
	// Times are the times measured by shard 0.
	Times    Times
	Checksum uint64
	// TasksLaunched and HaloExchanges are totals over all shards.
	TasksLaunched int64
	HaloExchanges int64
}

// Write writes a human-readable rendition of the report to w.
func (r *Report) Write(w io.Writer) error {
	var tw tabwriter.Writer
	tw.Init(w, 4, 4, 1, ' ', 0)
	fmt.Fprintf(&tw, "shards:\t%d\n", r.Shards)
	fmt.Fprintf(&tw, "rows:\t%d\n", r.Rows)
	fmt.Fprintf(&tw, "nonzeros:\t%d\n", r.NNZ)
	fmt.Fprintf(&tw, "levels:\t%d\n", r.Levels)
	fmt.Fprintf(&tw, "iterations:\t%d\n", r.Iterations)
	fmt.Fprintf(&tw, "initial residual:\t%g\n", r.Normr0)
	fmt.Fprintf(&tw, "final residual:\t%g\n", r.Normr)
	if r.Normr0 != 0 {
		fmt.Fprintf(&tw, "scaled residual:\t%g\n", r.Normr/r.Normr0)
	}
	fmt.Fprintf(&tw, "error (inf-norm):\t%g\n", r.ErrInf)
	fmt.Fprintf(&tw, "checksum:\t%016x\n", r.Checksum)
	fmt.Fprintf(&tw, "tasks:\t%d\n", r.TasksLaunched)
	fmt.Fprintf(&tw, "halo exchanges:\t%d\n", r.HaloExchanges)
	fmt.Fprintf(&tw, "times:\t%s\n", r.Times)
	return tw.Flush()
}

// Solve runs a CG solve of sys in a single epoch of session sess, with
// one shard per row shard of sys.A. The halo plans of every level of
// sys.A are set up if needed. On return, sys.X holds the solution.
func Solve(ctx context.Context, sess *exec.Session, sys *System, opts CGOptions) (*Report, error) {
	if sys.A == nil || sys.B == nil || sys.X == nil {
		return nil, errors.E(errors.Invalid, "bigcg.Solve: incomplete system")
	}
	levels := Levels(sys.A)
	for _, A := range levels {
		SetupHalo(A)
	}
	var (
		n       = sys.A.NumShards()
		data    = NewCGData(sys.A)
		results = make([]CGResult, n)
		errInf  float64
	)
	defer func() {
		for _, v := range []*Vector{data.R, data.Z, data.P, data.Ap} {
			sess.Forget(v.Handle)
		}
		data.Deallocate()
		// Long-lived sessions otherwise retain a record per task
		// that reads the system.
		for _, h := range sys.A.Handles() {
			sess.Forget(h)
		}
		for _, v := range []*Vector{sys.B, sys.X, sys.XExact} {
			if v != nil {
				sess.Forget(v.Handle)
			}
		}
	}()
	shards, err := sess.Epoch(ctx, "solve", n, func(ctx context.Context, sh *exec.Shard) error {
		res, err := CG(ctx, sh, sys.A, data, sys.B, sys.X, opts)
		if err != nil {
			return err
		}
		results[sh.Index] = res
		if sys.XExact == nil {
			return nil
		}
		e, err := ComputeResidual(ctx, sh, sys.X, sys.XExact)
		if err != nil {
			return err
		}
		if sh.Index == 0 {
			errInf = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	scopes := make([]*metrics.Scope, len(shards))
	for i, sh := range shards {
		scopes[i] = &sh.Scope
	}
	merged := metrics.Merged(scopes...)
	res := results[0]
	report := &Report{
		Shards:        n,
		Rows:          sys.A.NumRows(),
		NNZ:           sys.A.NNZCount(),
		Levels:        len(levels),
		Iterations:    res.Iterations,
		Normr:         res.Normr,
		Normr0:        res.Normr0,
		History:       res.History,
		ErrInf:        errInf,
		Times:         res.Times,
		Checksum:      sys.X.Checksum(),
		TasksLaunched: exec.TasksLaunched.Value(merged),
		HaloExchanges: haloExchanges.Value(merged),
	}
	sess.Eventer().Event("bigcg:solve",
		"shards", report.Shards,
		"rows", report.Rows,
		"iterations", report.Iterations,
		"normr", report.Normr,
		"normr0", report.Normr0,
		"precondition", opts.Precondition)
	log.Printf("bigcg.Solve %s: %d iterations, residual %g -> %g, error %g",
		sys.A.Name, report.Iterations, report.Normr0, report.Normr, report.ErrInf)
	return report, nil
}
