// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cgmachine

import (
	"context"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigcg"
	"github.com/grailbio/bigcg/exec"
	"github.com/grailbio/bigcg/problem"
	"github.com/grailbio/bigmachine/testsystem"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestRequestSystem(t *testing.T) {
	for _, c := range []struct {
		req  Request
		rows int
	}{
		{Request{Problem: Stencil27, Geometry: problem.Geometry{NX: 2, NY: 2, NZ: 2, Shards: 3}}, 24},
		{Request{Problem: Poisson1D, Lens: []int{3, 0, 4}, Levels: 4}, 7},
	} {
		sys, err := c.req.System()
		assert.NoError(t, err)
		expect.EQ(t, sys.A.NumRows(), c.rows)
	}
	for _, req := range []Request{
		{Problem: "banded"},
		{Problem: Stencil27},
		{Problem: Poisson1D},
		{Problem: Poisson1D, Lens: []int{4, -1}},
	} {
		if _, err := req.System(); !errors.Is(errors.Invalid, err) {
			t.Errorf("%v: got %v, want invalid", req, err)
		}
	}
}

func TestRun(t *testing.T) {
	req := Request{
		Problem: Poisson1D,
		Lens:    []int{4, 4},
		Levels:  3,
		Options: bigcg.CGOptions{MaxIter: 20, Tolerance: 1e-9, Precondition: true},
	}
	system := testsystem.New()
	system.Machineprocs = 2
	ctx := context.Background()
	remote, err := Run(ctx, system, req)
	assert.NoError(t, err)

	sess := exec.Start(exec.Parallelism(2))
	defer sess.Shutdown()
	local, err := Solve(ctx, sess, req)
	assert.NoError(t, err)

	expect.EQ(t, remote.Iterations, local.Iterations)
	expect.EQ(t, remote.Checksum, local.Checksum)
	expect.EQ(t, remote.History, local.History)
	expect.EQ(t, remote.Levels, 3)
}
