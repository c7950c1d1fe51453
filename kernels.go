// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"context"
	"math"
	"time"

	"github.com/grailbio/bigcg/exec"
	"github.com/grailbio/bigcg/region"
	"gonum.org/v1/gonum/floats"
)

// Names of the collectives used by the kernels.
const (
	collDot      = "dot"
	collResidual = "residual"
)

func readOnly(shard int, handles ...*region.Handle) []region.Requirement {
	reqs := make([]region.Requirement, len(handles))
	for i, h := range handles {
		reqs[i] = h.Intent(region.ReadOnly, region.Exclusive, shard)
	}
	return reqs
}

// vectorIntents returns the requirements of a kernel that reads vectors
// in and writes vector out on the provided shard. If out is also read,
// it is declared read-write.
func vectorIntents(shard int, out *Vector, in ...*Vector) []region.Requirement {
	var (
		reqs  []region.Requirement
		reads bool
	)
	for _, v := range in {
		if v == out {
			reads = true
			continue
		}
		reqs = append(reqs, v.Intent(region.ReadOnly, region.Exclusive, shard))
	}
	priv := region.WriteOnly
	if reads {
		priv = region.ReadWrite
	}
	return append(reqs, out.Intent(priv, region.Exclusive, shard))
}

// ComputeSPMV launches y = A·x on shard sh. It exchanges the halo of x
// first so that the product reads current remote values.
func ComputeSPMV(ctx context.Context, sh *exec.Shard, A *SparseMatrix, x, y *Vector) {
	defer timerSPMV.Since(&sh.Scope, time.Now())
	s := sh.Index
	ghosts := exchangeHalo(ctx, sh, A.Halo, x)
	reqs := append(readOnly(s, A.Rows, x.Handle), y.Intent(region.WriteOnly, region.Exclusive, s))
	sh.Launch(ctx, exec.Launcher{
		Op:           "spmv",
		Requirements: append(reqs, ghosts.requirements...),
		Wait:         ghosts.wait,
		Arrive:       ghosts.arrive,
		Do: func(ctx context.Context) (float64, error) {
			var (
				vals  = A.Values.Shard(s)
				cols  = A.LocalCols.Shard(s)
				nnz   = A.NNZ.Shard(s)
				xl    = x.Local(s)
				xg    = ghosts.values(s)
				yl    = y.Local(s)
				nrows = len(yl)
			)
			for i := range yl {
				sum := 0.0
				for k := i * A.Width; k < i*A.Width+int(nnz[i]); k++ {
					if j := int(cols[k]); j < nrows {
						sum += vals[k] * xl[j]
					} else {
						sum += vals[k] * xg[j-nrows]
					}
				}
				yl[i] = sum
			}
			return 0, nil
		},
	})
}

// ComputeWAXPBY launches w = alpha·x + beta·y on shard sh. The
// coefficients are futures; the kernel runs once both are resolved.
func ComputeWAXPBY(ctx context.Context, sh *exec.Shard, alpha *exec.Future, x *Vector, beta *exec.Future, y, w *Vector) {
	defer timerWAXPBY.Since(&sh.Scope, time.Now())
	s := sh.Index
	sh.Launch(ctx, exec.Launcher{
		Op:           "waxpby",
		Requirements: vectorIntents(s, w, x, y),
		Futures:      []*exec.Future{alpha, beta},
		Do: func(ctx context.Context) (float64, error) {
			a, err := alpha.Get(ctx)
			if err != nil {
				return 0, err
			}
			b, err := beta.Get(ctx)
			if err != nil {
				return 0, err
			}
			xl, yl, wl := x.Local(s), y.Local(s), w.Local(s)
			switch {
			case a == 1:
				floats.AddScaledTo(wl, xl, b, yl)
			case b == 1:
				floats.AddScaledTo(wl, yl, a, xl)
			default:
				for i := range wl {
					wl[i] = a*xl[i] + b*yl[i]
				}
			}
			return 0, nil
		},
	})
}

// ComputeDotProduct launches the local dot product of x and y on
// shard sh and returns a future for the global dot product, reduced
// across all shards of the epoch.
func ComputeDotProduct(ctx context.Context, sh *exec.Shard, x, y *Vector) *exec.Future {
	defer timerDot.Since(&sh.Scope, time.Now())
	s := sh.Index
	handles := []*region.Handle{x.Handle}
	if y != x {
		handles = append(handles, y.Handle)
	}
	local := sh.Launch(ctx, exec.Launcher{
		Op:           "dot",
		Requirements: readOnly(s, handles...),
		Do: func(ctx context.Context) (float64, error) {
			return floats.Dot(x.Local(s), y.Local(s)), nil
		},
	})
	return sh.Collective(collDot, exec.Sum).Arrive(s, local)
}

// ComputeResidual returns the global infinity norm of v1-v2. It
// blocks until the norm is known.
func ComputeResidual(ctx context.Context, sh *exec.Shard, v1, v2 *Vector) (float64, error) {
	s := sh.Index
	local := sh.Launch(ctx, exec.Launcher{
		Op:           "residual",
		Requirements: readOnly(s, v1.Handle, v2.Handle),
		Do: func(ctx context.Context) (float64, error) {
			a, b := v1.Local(s), v2.Local(s)
			if len(a) == 0 {
				return 0, nil
			}
			return floats.Distance(a, b, math.Inf(1)), nil
		},
	})
	return getReduced(ctx, sh, sh.Collective(collResidual, exec.Max).Arrive(s, local))
}

// getReduced reads a collective result, accounting the time blocked.
func getReduced(ctx context.Context, sh *exec.Shard, f *exec.Future) (float64, error) {
	defer timerReduce.Since(&sh.Scope, time.Now())
	return f.Get(ctx)
}

// CopyVector launches dst = src on shard sh.
func CopyVector(ctx context.Context, sh *exec.Shard, src, dst *Vector) {
	s := sh.Index
	sh.Launch(ctx, exec.Launcher{
		Op:           "copy",
		Requirements: vectorIntents(s, dst, src),
		Do: func(ctx context.Context) (float64, error) {
			copy(dst.Local(s), src.Local(s))
			return 0, nil
		},
	})
}

// ZeroVector launches v = 0 on shard sh.
func ZeroVector(ctx context.Context, sh *exec.Shard, v *Vector) {
	s := sh.Index
	sh.Launch(ctx, exec.Launcher{
		Op:           "zero",
		Requirements: vectorIntents(s, v),
		Do: func(ctx context.Context) (float64, error) {
			vals := v.Local(s)
			for i := range vals {
				vals[i] = 0
			}
			return 0, nil
		},
	})
}
