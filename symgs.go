// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"context"

	"github.com/grailbio/bigcg/exec"
	"github.com/grailbio/bigcg/region"
)

// ComputeSYMGS launches one symmetric Gauss-Seidel step for A·x = r
// on shard sh: a forward sweep followed by a backward sweep over the
// shard's rows. Values owned by other shards are taken from a single
// halo exchange issued before the forward sweep, so the smoother is
// Gauss-Seidel within a shard and Jacobi across shards.
func ComputeSYMGS(ctx context.Context, sh *exec.Shard, A *SparseMatrix, r, x *Vector) {
	s := sh.Index
	ghosts := exchangeHalo(ctx, sh, A.Halo, x)
	reqs := append(readOnly(s, A.Rows, r.Handle),
		x.Intent(region.ReadWrite, region.Atomic, s))
	reqs = append(reqs, ghosts.requirements...)
	sh.Launch(ctx, exec.Launcher{
		Op:           "symgs.fwd",
		Requirements: reqs,
		Wait:         ghosts.wait,
		Do: func(ctx context.Context) (float64, error) {
			sweep(A, s, r.Local(s), x.Local(s), ghosts.values(s), true)
			return 0, nil
		},
	})
	sh.Launch(ctx, exec.Launcher{
		Op:           "symgs.bwd",
		Requirements: reqs,
		Arrive:       ghosts.arrive,
		Do: func(ctx context.Context) (float64, error) {
			sweep(A, s, r.Local(s), x.Local(s), ghosts.values(s), false)
			return 0, nil
		},
	})
}

// sweep performs a Gauss-Seidel sweep over the rows of shard s,
// updating x in place. Zero diagonals are not checked.
func sweep(A *SparseMatrix, s int, r, x, ghosts []float64, forward bool) {
	var (
		vals  = A.Values.Shard(s)
		cols  = A.LocalCols.Shard(s)
		nnz   = A.NNZ.Shard(s)
		diag  = A.Diag.Shard(s)
		nrows = len(x)
	)
	row := func(i int) {
		sum := r[i]
		for k := i * A.Width; k < i*A.Width+int(nnz[i]); k++ {
			if j := int(cols[k]); j < nrows {
				sum -= vals[k] * x[j]
			} else {
				sum -= vals[k] * ghosts[j-nrows]
			}
		}
		// Add back the diagonal contribution subtracted above.
		sum += x[i] * diag[i]
		x[i] = sum / diag[i]
	}
	if forward {
		for i := 0; i < nrows; i++ {
			row(i)
		}
	} else {
		for i := nrows - 1; i >= 0; i-- {
			row(i)
		}
	}
}
