// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package problem

import (
	"testing"

	"github.com/grailbio/bigcg"
	"github.com/grailbio/testutil/expect"
)

func TestStencil27(t *testing.T) {
	g := Geometry{NX: 4, NY: 4, NZ: 4, Shards: 2}
	sys := Stencil27(g, MaxLevels)
	A := sys.A
	expect.EQ(t, g.String(), "4×4×4×2")
	expect.EQ(t, A.NumRows(), 128)
	expect.EQ(t, A.NumShards(), 2)
	// Interior points have 27 nonzeros, faces 18, edges 12 and
	// corners 8, on the 4×4×8 global grid.
	var (
		interior = int64(2 * 2 * 6)
		faces    = int64(2 * (2*2 + 2*6 + 2*6))
		edges    = int64(4 * (2 + 2 + 6))
		corners  = int64(8)
	)
	expect.EQ(t, interior+faces+edges+corners, int64(128))
	expect.EQ(t, A.NNZCount(), 27*interior+18*faces+12*edges+8*corners)

	b := sys.B.Values()
	// The row sum is 26 minus the number of neighbors.
	expect.EQ(t, b[0], 19.0)
	expect.EQ(t, b[(1*4+1)*4+1], 0.0)
	for _, v := range sys.XExact.Values() {
		expect.EQ(t, v, 1.0)
	}
	for _, v := range sys.X.Values() {
		expect.EQ(t, v, 0.0)
	}
	for i, d := range A.Diag.Values() {
		if d != 26 {
			t.Errorf("row %d: diagonal %v", i, d)
		}
	}
}

func TestStencil27Levels(t *testing.T) {
	for _, c := range []struct {
		g      Geometry
		levels int
		want   int
	}{
		{Geometry{4, 4, 4, 2}, MaxLevels, 3},
		{Geometry{8, 8, 8, 1}, MaxLevels, 4},
		{Geometry{8, 8, 8, 1}, 2, 2},
		{Geometry{6, 4, 4, 3}, MaxLevels, 2},
		{Geometry{3, 4, 4, 1}, MaxLevels, 1},
	} {
		levels := bigcg.Levels(Stencil27(c.g, c.levels).A)
		if got, want := len(levels), c.want; got != want {
			t.Errorf("%v: got %d levels, want %d", c.g, got, want)
		}
		for i := 1; i < len(levels); i++ {
			expect.EQ(t, levels[i].NumShards(), c.g.Shards)
			expect.EQ(t, levels[i].NumRows()*8, levels[i-1].NumRows())
		}
	}
}

func TestStencil27Coarse(t *testing.T) {
	g := Geometry{NX: 4, NY: 4, NZ: 2, Shards: 2}
	A := Stencil27(g, 2).A
	Ac := A.Coarse
	expect.EQ(t, Ac.NumRows(), 8)
	// Each coarse shard samples even points of its own fine shard.
	for s := 0; s < Ac.NumShards(); s++ {
		expect.EQ(t, A.MG.F2C.Shard(s), []int64{0, 2, 8, 10})
	}
}

func TestPoisson1D(t *testing.T) {
	sys := Poisson1D([]int{3, 0, 5}, MaxLevels)
	A := sys.A
	expect.EQ(t, A.NumRows(), 8)
	expect.EQ(t, A.NNZCount(), int64(22))
	// Odd shard lengths do not coarsen.
	expect.True(t, A.Coarse == nil)
	expect.EQ(t, sys.B.Values(), []float64{1, 0, 0, 0, 0, 0, 0, 1})
}

func TestPoisson1DLevels(t *testing.T) {
	A := Poisson1D([]int{8, 4}, MaxLevels).A
	levels := bigcg.Levels(A)
	expect.EQ(t, len(levels), 3)
	expect.EQ(t, levels[1].Rows.Lens(), []int{4, 2})
	expect.EQ(t, levels[2].Rows.Lens(), []int{2, 1})
	expect.EQ(t, A.MG.F2C.Shard(0), []int64{0, 2, 4, 6})
	// Coarse row 4 samples fine row 8, the first row of shard 1.
	expect.EQ(t, A.MG.F2C.Shard(1), []int64{0, 2})
}
