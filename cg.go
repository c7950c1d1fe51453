// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"context"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/bigcg/exec"
)

// CGOptions configures a CG solve.
type CGOptions struct {
	// MaxIter is the maximum number of iterations.
	MaxIter int
	// Tolerance is the relative residual ‖r‖/‖r0‖ at which the solve
	// stops.
	Tolerance float64
	// Precondition applies a multigrid V-cycle to the residual at each
	// iteration.
	Precondition bool
}

// CGResult is the outcome of a CG solve. Failing to converge within
// MaxIter iterations is not an error.
type CGResult struct {
	Iterations int
	// Normr and Normr0 are the final and initial residual norms.
	Normr, Normr0 float64
	// History holds the residual norm before the first iteration and
	// after each iteration.
	History []float64
	Times   Times
}

// CGData is the workspace of a CG solve.
type CGData struct {
	R, Z, P, Ap *Vector
}

// NewCGData allocates a CG workspace for matrix A.
func NewCGData(A *SparseMatrix) *CGData {
	return &CGData{
		R:  A.NewVector(A.Name + ".r"),
		Z:  A.NewVector(A.Name + ".z"),
		P:  A.NewVector(A.Name + ".p"),
		Ap: A.NewVector(A.Name + ".Ap"),
	}
}

// Deallocate releases the workspace.
func (d *CGData) Deallocate() {
	for _, v := range []*Vector{d.R, d.Z, d.P, d.Ap} {
		v.Deallocate()
	}
}

var one = exec.FromValue(1)

// CG runs shard sh's part of a (preconditioned) conjugate gradient
// solve of A·x = b, starting from the current value of x. Every shard
// of the epoch must call CG with the same arguments. The halo plans of
// A and its coarse levels must have been set up with SetupHalo.
func CG(ctx context.Context, sh *exec.Shard, A *SparseMatrix, data *CGData, b, x *Vector, opts CGOptions) (res CGResult, err error) {
	var (
		start  = time.Now()
		before = readTimes(&sh.Scope)
		r, z   = data.R, data.Z
		p, Ap  = data.P, data.Ap
		minus1 = exec.FromValue(-1)
	)
	defer func() {
		timerTotal.Since(&sh.Scope, start)
		res.Times = readTimes(&sh.Scope).Sub(before)
	}()

	// p = x; Ap = A·p; r = b - Ap.
	ComputeWAXPBY(ctx, sh, one, x, exec.FromValue(0), x, p)
	ComputeSPMV(ctx, sh, A, p, Ap)
	ComputeWAXPBY(ctx, sh, one, b, minus1, Ap, r)
	normr, err := getReduced(ctx, sh, exec.Sqrt(ComputeDotProduct(ctx, sh, r, r)))
	if err != nil {
		return res, err
	}
	res.Normr, res.Normr0 = normr, normr
	res.History = append(res.History, normr)
	if sh.Index == 0 {
		log.Printf("cg %s: initial residual = %g", A.Name, normr)
	}

	var rtz *exec.Future
	for k := 1; k <= opts.MaxIter && res.Normr/res.Normr0 > opts.Tolerance; k++ {
		if opts.Precondition {
			t := time.Now()
			ComputeMG(ctx, sh, A, r, z)
			timerPrecond.Since(&sh.Scope, t)
		} else {
			CopyVector(ctx, sh, r, z)
		}
		if k == 1 {
			CopyVector(ctx, sh, z, p)
			rtz = ComputeDotProduct(ctx, sh, r, z)
		} else {
			oldrtz := rtz
			rtz = ComputeDotProduct(ctx, sh, r, z)
			beta := exec.Div(rtz, oldrtz)
			ComputeWAXPBY(ctx, sh, one, z, beta, p, p)
		}
		ComputeSPMV(ctx, sh, A, p, Ap)
		pAp := ComputeDotProduct(ctx, sh, p, Ap)
		alpha := exec.Div(rtz, pAp)
		ComputeWAXPBY(ctx, sh, one, x, alpha, p, x)
		ComputeWAXPBY(ctx, sh, one, r, negate(alpha), Ap, r)
		normr, err := getReduced(ctx, sh, exec.Sqrt(ComputeDotProduct(ctx, sh, r, r)))
		if err != nil {
			return res, err
		}
		res.Normr = normr
		res.History = append(res.History, normr)
		res.Iterations = k
		if k%10 == 0 || k == opts.MaxIter {
			sh.Printf("iteration %d: scaled residual %g", k, normr/res.Normr0)
			if sh.Index == 0 {
				log.Printf("cg %s: iteration %d: scaled residual = %g", A.Name, k, normr/res.Normr0)
			}
		}
	}
	return res, nil
}

func negate(f *exec.Future) *exec.Future {
	return exec.Div(f, exec.FromValue(-1))
}
