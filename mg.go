// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"context"

	"github.com/grailbio/bigcg/exec"
	"github.com/grailbio/bigcg/region"
)

// ComputeMG launches one multigrid V-cycle on shard sh, approximately
// solving A·x = r. x is overwritten. On the coarsest level the cycle
// is a single SYMGS step.
func ComputeMG(ctx context.Context, sh *exec.Shard, A *SparseMatrix, r, x *Vector) {
	ZeroVector(ctx, sh, x)
	if A.Coarse == nil {
		ComputeSYMGS(ctx, sh, A, r, x)
		return
	}
	mg := A.MG
	ComputeSYMGS(ctx, sh, A, r, x)
	ComputeSPMV(ctx, sh, A, x, mg.Axf)
	restrict(ctx, sh, A, r)
	ComputeMG(ctx, sh, A.Coarse, mg.Rc, mg.Xc)
	prolong(ctx, sh, A, x)
	ComputeSYMGS(ctx, sh, A, r, x)
}

// restrict launches rc[i] = r[f2c[i]] - Axf[f2c[i]] on shard sh.
func restrict(ctx context.Context, sh *exec.Shard, A *SparseMatrix, r *Vector) {
	var (
		s  = sh.Index
		mg = A.MG
	)
	reqs := append(readOnly(s, A.Coarse.Rows, r.Handle, mg.Axf.Handle),
		mg.Rc.Intent(region.WriteOnly, region.Exclusive, s))
	sh.Launch(ctx, exec.Launcher{
		Op:           "restrict",
		Requirements: reqs,
		Do: func(ctx context.Context) (float64, error) {
			var (
				f2c = mg.F2C.Shard(s)
				rf  = r.Local(s)
				axf = mg.Axf.Local(s)
				rc  = mg.Rc.Local(s)
			)
			for i, j := range f2c {
				rc[i] = rf[j] - axf[j]
			}
			return 0, nil
		},
	})
}

// prolong launches x[f2c[i]] += xc[i] on shard sh.
func prolong(ctx context.Context, sh *exec.Shard, A *SparseMatrix, x *Vector) {
	var (
		s  = sh.Index
		mg = A.MG
	)
	reqs := append(readOnly(s, A.Coarse.Rows, mg.Xc.Handle),
		x.Intent(region.ReadWrite, region.Exclusive, s))
	sh.Launch(ctx, exec.Launcher{
		Op:           "prolong",
		Requirements: reqs,
		Do: func(ctx context.Context) (float64, error) {
			var (
				f2c = mg.F2C.Shard(s)
				xf  = x.Local(s)
				xc  = mg.Xc.Local(s)
			)
			for i, j := range f2c {
				xf[j] += xc[i]
			}
			return 0, nil
		},
	})
}
