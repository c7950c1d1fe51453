// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package problem generates the linear systems solved by bigcg: the
// HPCG 27-point stencil on a 3-D grid, and a 1-D Poisson problem.
// Each generator also builds the coarse grid hierarchy used by the
// multigrid preconditioner. The right-hand side is chosen so that the
// exact solution is the vector of ones; the initial guess is zero.
package problem

import (
	"fmt"

	"github.com/grailbio/base/must"
	"github.com/grailbio/bigcg"
)

// MaxLevels is the default number of multigrid levels.
const MaxLevels = 4

// Geometry describes a 3-D grid decomposed into shards along z. NX,
// NY and NZ are the dimensions of each shard's subgrid.
type Geometry struct {
	NX, NY, NZ int
	Shards     int
}

// Rows returns the number of grid points of each shard.
func (g Geometry) Rows() int { return g.NX * g.NY * g.NZ }

// String returns the geometry formatted as nx×ny×nz×shards.
func (g Geometry) String() string {
	return fmt.Sprintf("%d×%d×%d×%d", g.NX, g.NY, g.NZ, g.Shards)
}

// coarsens tells whether the geometry can be halved.
func (g Geometry) coarsens() bool {
	return g.NX%2 == 0 && g.NY%2 == 0 && g.NZ%2 == 0 && g.NX > 1 && g.NY > 1 && g.NZ > 1
}

// Stencil27 returns the system for the 27-point stencil on geometry
// g: every point couples to itself with weight 26 and to each of its
// (up to 26) neighbors with weight -1. Up to levels multigrid levels
// are built, halving the grid while every dimension is even.
func Stencil27(g Geometry, levels int) *bigcg.System {
	must.Truef(g.NX > 0 && g.NY > 0 && g.NZ > 0 && g.Shards > 0, "problem: invalid geometry %v", g)
	A := stencil27("A0", g)
	fine, fg := A, g
	for level := 1; level < levels && fg.coarsens(); level++ {
		cg := Geometry{fg.NX / 2, fg.NY / 2, fg.NZ / 2, fg.Shards}
		coarse := stencil27(fmt.Sprintf("A%d", level), cg)
		bigcg.AttachCoarse(fine, coarse, f2c3D(fg, cg))
		fine, fg = coarse, cg
	}
	return newSystem(A)
}

func stencil27(name string, g Geometry) *bigcg.SparseMatrix {
	lens := make([]int, g.Shards)
	for i := range lens {
		lens[i] = g.Rows()
	}
	var (
		A          = bigcg.NewSparseMatrix(name, lens, 27)
		nx, ny, nz = g.NX, g.NY, g.NZ * g.Shards
		cols       = make([]int64, 0, 27)
		vals       = make([]float64, 0, 27)
	)
	for iz := 0; iz < nz; iz++ {
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				row := (iz*ny+iy)*nx + ix
				cols, vals = cols[:0], vals[:0]
				for dz := -1; dz <= 1; dz++ {
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							jx, jy, jz := ix+dx, iy+dy, iz+dz
							if jx < 0 || jx >= nx || jy < 0 || jy >= ny || jz < 0 || jz >= nz {
								continue
							}
							col := (jz*ny+jy)*nx + jx
							cols = append(cols, int64(col))
							if col == row {
								vals = append(vals, 26)
							} else {
								vals = append(vals, -1)
							}
						}
					}
				}
				A.SetRow(row, cols, vals)
			}
		}
	}
	return A
}

// f2c3D maps each coarse grid point to the fine grid point with twice
// its coordinates.
func f2c3D(fine, coarse Geometry) []int64 {
	var (
		nz  = coarse.NZ * coarse.Shards
		f2c = make([]int64, 0, coarse.Rows()*coarse.Shards)
	)
	for izc := 0; izc < nz; izc++ {
		for iyc := 0; iyc < coarse.NY; iyc++ {
			for ixc := 0; ixc < coarse.NX; ixc++ {
				idx := (2*izc*fine.NY+2*iyc)*fine.NX + 2*ixc
				f2c = append(f2c, int64(idx))
			}
		}
	}
	return f2c
}

// Poisson1D returns the system for the 1-D Poisson operator
// tridiag(-1, 2, -1) with shards of the provided lengths. Up to levels
// multigrid levels are built, halving every shard while all shard
// lengths are even.
func Poisson1D(lens []int, levels int) *bigcg.System {
	A := poisson1D("P0", lens)
	fine := A
	for level := 1; level < levels; level++ {
		coarseLens, ok := halve(lens)
		if !ok {
			break
		}
		coarse := poisson1D(fmt.Sprintf("P%d", level), coarseLens)
		f2c := make([]int64, coarse.NumRows())
		for i := range f2c {
			// Shards halve in place, so coarse row i samples fine row 2i.
			f2c[i] = int64(2 * i)
		}
		bigcg.AttachCoarse(fine, coarse, f2c)
		fine, lens = coarse, coarseLens
	}
	return newSystem(A)
}

func poisson1D(name string, lens []int) *bigcg.SparseMatrix {
	A := bigcg.NewSparseMatrix(name, lens, 3)
	n := A.NumRows()
	for i := 0; i < n; i++ {
		var (
			cols []int64
			vals []float64
		)
		if i > 0 {
			cols, vals = append(cols, int64(i-1)), append(vals, -1)
		}
		cols, vals = append(cols, int64(i)), append(vals, 2)
		if i < n-1 {
			cols, vals = append(cols, int64(i+1)), append(vals, -1)
		}
		A.SetRow(i, cols, vals)
	}
	return A
}

func halve(lens []int) ([]int, bool) {
	half := make([]int, len(lens))
	for i, n := range lens {
		if n == 0 || n%2 != 0 {
			return nil, false
		}
		half[i] = n / 2
	}
	return half, true
}

// newSystem returns the system A·x = A·1 with a zero initial guess.
func newSystem(A *bigcg.SparseMatrix) *bigcg.System {
	sys := &bigcg.System{
		A:      A,
		B:      A.NewVector(A.Name + ".b"),
		X:      A.NewVector(A.Name + ".x"),
		XExact: A.NewVector(A.Name + ".xexact"),
	}
	sys.XExact.Fill(1)
	var (
		b    = sys.B.Values()
		vals = A.Values.Values()
		nnz  = A.NNZ.Values()
	)
	for i := range b {
		row := vals[i*A.Width : i*A.Width+int(nnz[i])]
		for _, v := range row {
			b[i] += v
		}
	}
	return sys
}
