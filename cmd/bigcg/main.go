// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command bigcg solves a generated sparse linear system with the
// distributed conjugate gradient solver and prints a report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/bigcg"
	"github.com/grailbio/bigcg/cgconfig"
	"github.com/grailbio/bigcg/cgmachine"
	"github.com/grailbio/bigcg/problem"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: bigcg [flags]

Command bigcg generates a linear system, solves it with the
(optionally multigrid-preconditioned) conjugate gradient method, and
prints a summary of the solve.

The problem is either the HPCG 27-point stencil on an nx×ny×nz grid
per shard (-problem stencil27), or the 1-D Poisson operator with the
shard lengths given by -lens (-problem poisson1d). If the bigcg
profile configures a bigmachine system, the solve runs on a machine
of that system.

`)
		flag.PrintDefaults()
		os.Exit(2)
	}
	var (
		kind    = flag.String("problem", cgmachine.Stencil27, "problem to solve: stencil27 or poisson1d")
		nx      = flag.Int("nx", 16, "grid points per shard along x")
		ny      = flag.Int("ny", 16, "grid points per shard along y")
		nz      = flag.Int("nz", 16, "grid points per shard along z")
		shards  = flag.Int("shards", 4, "number of shards")
		lens    = flag.String("lens", "", "comma-separated shard lengths of a poisson1d problem")
		levels  = flag.Int("levels", problem.MaxLevels, "maximum number of multigrid levels")
		maxIter = flag.Int("maxiter", 50, "maximum number of CG iterations")
		tol     = flag.Float64("tol", 1e-9, "relative residual at which the solve stops")
		precond = flag.Bool("precondition", true, "precondition with a multigrid V-cycle")
	)
	sess := cgconfig.Parse()
	defer sess.Shutdown()
	if flag.NArg() != 0 {
		flag.Usage()
	}

	req := cgmachine.Request{
		Problem:  *kind,
		Geometry: problem.Geometry{NX: *nx, NY: *ny, NZ: *nz, Shards: *shards},
		Levels:   *levels,
		Options: bigcg.CGOptions{
			MaxIter:      *maxIter,
			Tolerance:    *tol,
			Precondition: *precond,
		},
	}
	if *lens != "" {
		for _, elem := range strings.Split(*lens, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(elem))
			if err != nil {
				log.Fatalf("invalid -lens %q: %v", *lens, err)
			}
			req.Lens = append(req.Lens, n)
		}
	} else {
		for i := 0; i < *shards; i++ {
			req.Lens = append(req.Lens, *nx)
		}
	}

	var (
		ctx    = context.Background()
		report *bigcg.Report
		err    error
	)
	if system := sess.System(); system != nil {
		report, err = cgmachine.Run(ctx, system, req)
	} else {
		report, err = cgmachine.Solve(ctx, sess, req)
	}
	must.Nil(err, req)
	must.Nil(report.Write(os.Stdout))
}
