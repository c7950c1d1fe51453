// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"fmt"
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/bigcg/region"
)

// A SparseMatrix is a distributed sparse matrix stored by rows in a
// fixed-width (ELLPACK) layout: each row holds up to Width nonzeros.
// Rows are sharded by the partition of the Rows handle, and every
// field below follows that partition.
type SparseMatrix struct {
	Name string
	// Rows is the row index space.
	Rows *region.Handle
	// Width is the maximum number of nonzeros per row.
	Width int
	// Values holds the nonzero values of each row.
	Values *region.Float64s
	// Cols holds the global column of each nonzero.
	Cols *region.Int64s
	// LocalCols holds the shard-local column of each nonzero. It is
	// populated by SetupHalo: columns owned by the row's shard are
	// offset from the shard's first row; remote columns index the
	// shard's ghost values, numbered after its owned rows.
	LocalCols *region.Int64s
	// Diag holds the diagonal value of each row.
	Diag *region.Float64s
	// NNZ holds the number of nonzeros of each row.
	NNZ *region.Uint8s

	// Halo is the matrix's halo exchange plan, set by SetupHalo.
	Halo *HaloPlan

	// Coarse is the next coarser level of the multigrid hierarchy,
	// and MG the operators that connect this level to it. Both are
	// nil on the coarsest level.
	Coarse *SparseMatrix
	MG     *MGData
}

// NewSparseMatrix allocates an empty matrix with the provided row
// partition and maximum row width.
func NewSparseMatrix(name string, lens []int, width int) *SparseMatrix {
	must.Truef(width > 0 && width <= math.MaxUint8, "matrix %s: invalid width %d", name, width)
	n := 0
	for _, l := range lens {
		n += l
	}
	rows := region.Allocate(name, n)
	rows.PartitionLens(lens)
	return &SparseMatrix{
		Name:      name,
		Rows:      rows,
		Width:     width,
		Values:    region.NewFloat64s(rows, width),
		Cols:      region.NewInt64s(rows, width),
		LocalCols: region.NewInt64s(rows, width),
		Diag:      region.NewFloat64s(rows, 1),
		NNZ:       region.NewUint8s(rows, 1),
	}
}

// NumRows returns the global number of rows.
func (A *SparseMatrix) NumRows() int { return A.Rows.Len() }

// NumShards returns the number of row shards.
func (A *SparseMatrix) NumShards() int { return A.Rows.NumShards() }

// String returns a short description of the matrix.
func (A *SparseMatrix) String() string {
	return fmt.Sprintf("%s(%d×%d, %d shards)", A.Name, A.NumRows(), A.NumRows(), A.NumShards())
}

// SetRow sets the nonzeros of global row i. The diagonal value is
// taken from the entry whose column is i.
func (A *SparseMatrix) SetRow(i int, cols []int64, vals []float64) {
	if len(cols) != len(vals) || len(cols) > A.Width {
		log.Panicf("matrix %s: row %d: %d columns, %d values, width %d", A.Name, i, len(cols), len(vals), A.Width)
	}
	rowCols, rowVals := A.Cols.Row(i), A.Values.Row(i)
	diag := 0.0
	for k := range rowCols {
		if k < len(cols) {
			rowCols[k], rowVals[k] = cols[k], vals[k]
			if cols[k] == int64(i) {
				diag = vals[k]
			}
		} else {
			rowCols[k], rowVals[k] = 0, 0
		}
	}
	A.Diag.Values()[i] = diag
	A.NNZ.Values()[i] = uint8(len(cols))
}

// NNZCount returns the total number of nonzeros.
func (A *SparseMatrix) NNZCount() int64 {
	var n int64
	for _, c := range A.NNZ.Values() {
		n += int64(c)
	}
	return n
}

// NewVector returns a zeroed vector partitioned like the matrix rows.
func (A *SparseMatrix) NewVector(name string) *Vector {
	return NewVector(name, A.Rows.Lens())
}

// Levels returns the matrix's multigrid hierarchy, finest first.
func Levels(A *SparseMatrix) []*SparseMatrix {
	var levels []*SparseMatrix
	for ; A != nil; A = A.Coarse {
		levels = append(levels, A)
	}
	return levels
}

// Handles returns the region handles of the matrix hierarchy rooted
// at A: the rows of every level and the vectors of its multigrid
// data. The matrix fields share the row handle.
func (A *SparseMatrix) Handles() []*region.Handle {
	var hs []*region.Handle
	for _, level := range Levels(A) {
		hs = append(hs, level.Rows)
		if mg := level.MG; mg != nil {
			hs = append(hs, mg.Axf.Handle, mg.Rc.Handle, mg.Xc.Handle)
		}
	}
	return hs
}

// MGData holds the operators that connect a multigrid level to its
// coarser level.
type MGData struct {
	// F2C maps each coarse row to a fine row of the same shard. It
	// follows the coarse row partition and stores fine row offsets
	// relative to the fine shard's first row.
	F2C *region.Int64s
	// Axf holds A·x on the fine level.
	Axf *Vector
	// Rc and Xc are the coarse residual and correction.
	Rc, Xc *Vector
}

// AttachCoarse links matrix A to the coarser level Ac through the
// fine-to-coarse map f2c, which holds, for each coarse row, the
// global index of the fine row it samples. Each coarse row must map
// to a fine row in the same shard.
func AttachCoarse(A, Ac *SparseMatrix, f2c []int64) {
	must.Truef(len(f2c) == Ac.NumRows(), "matrix %s: %d f2c entries, %d coarse rows", A.Name, len(f2c), Ac.NumRows())
	must.Truef(Ac.NumShards() == A.NumShards(), "matrix %s: %d coarse shards, %d fine shards", A.Name, Ac.NumShards(), A.NumShards())
	mg := &MGData{
		F2C: region.NewInt64s(Ac.Rows, 1),
		Axf: A.NewVector(A.Name + ".Axf"),
		Rc:  Ac.NewVector(Ac.Name + ".rc"),
		Xc:  Ac.NewVector(Ac.Name + ".xc"),
	}
	for s := 0; s < Ac.NumShards(); s++ {
		var (
			cb   = Ac.Rows.Bounds(s)
			fb   = A.Rows.Bounds(s)
			maps = mg.F2C.Shard(s)
		)
		for i := range maps {
			fine := int(f2c[cb.Lo+i])
			if !fb.Contains(fine) {
				log.Panicf("matrix %s: coarse row %d maps to fine row %d outside shard %d %v", A.Name, cb.Lo+i, fine, s, fb)
			}
			maps[i] = int64(fine - fb.Lo)
		}
	}
	A.Coarse, A.MG = Ac, mg
}
