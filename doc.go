// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package bigcg implements a distributed, preconditioned conjugate
	gradient solver for sparse symmetric linear systems, in the manner
	of the HPCG benchmark.

	Matrices and vectors are sharded by rows (package region). A solve
	runs as a single SPMD epoch (package exec): one goroutine per shard
	issues asynchronous leaf tasks, and the runtime orders them by the
	region requirements they declare. Values owned by other shards are
	read through halo exchanges, which are ordered by per-edge phase
	barriers rather than by dependencies. Global scalars (dot products,
	norms) are reduced by collectives that return futures; a shard
	blocks only when it reads one.

	A typical solve:

		sys := problem.Stencil27(problem.Geometry{NX: 16, NY: 16, NZ: 16, Shards: 4}, 4)
		sess := exec.Start(exec.Parallelism(8))
		defer sess.Shutdown()
		report, err := bigcg.Solve(ctx, sess, sys, bigcg.CGOptions{
			MaxIter:      50,
			Tolerance:    1e-9,
			Precondition: true,
		})

	The preconditioner is a multigrid V-cycle whose smoother is a
	symmetric Gauss-Seidel step that is exact within a shard and
	Jacobi-like across shards. Residual reductions are therefore
	sensitive to the number of shards.
*/
package bigcg
