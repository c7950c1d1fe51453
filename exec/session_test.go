// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/status"
	"github.com/grailbio/bigcg/internal/trace"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestSessionTrace(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "trace.json")
	var st status.Status
	sess := Start(Parallelism(3), TracePath(path), Status(&st))
	expect.EQ(t, sess.Parallelism(), 3)
	const nshard, ntask = 3, 4
	_, err := sess.Epoch(context.Background(), "trace", nshard, func(ctx context.Context, sh *Shard) error {
		for i := 0; i < ntask; i++ {
			sh.Launch(ctx, Launcher{Op: "noop"})
		}
		return nil
	})
	assert.NoError(t, err)
	sess.Shutdown()

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	var tr trace.T
	assert.NoError(t, tr.Decode(f))
	events := tr.Complete()
	expect.EQ(t, len(events), nshard*ntask)
	pids := make(map[int]int)
	for _, e := range events {
		expect.EQ(t, e.Name, "noop")
		name, _ := e.Args["task"].(string)
		if !strings.HasPrefix(name, "noop@3:") {
			t.Errorf("bad task name %q", name)
		}
		pids[e.Pid]++
	}
	expect.EQ(t, len(pids), nshard)
	for pid, n := range pids {
		if n != ntask {
			t.Errorf("pid %d: got %d events, want %d", pid, n, ntask)
		}
	}
}

func TestSessionCollectiveShared(t *testing.T) {
	sess := Start()
	defer sess.Shutdown()
	colls := make([]*DynColl, 4)
	_, err := sess.Epoch(context.Background(), "share", len(colls), func(ctx context.Context, sh *Shard) error {
		colls[sh.Index] = sh.Collective("dot", Sum)
		if sh.Collective("dot", Max) == colls[sh.Index] {
			t.Error("collectives with different operators must differ")
		}
		return nil
	})
	assert.NoError(t, err)
	for i := range colls {
		if colls[i] != colls[0] {
			t.Errorf("shard %d: collective not shared", i)
		}
	}
	expect.EQ(t, colls[0].Arity(), len(colls))
}

func TestTidPool(t *testing.T) {
	var p tidPool
	expect.EQ(t, p.Acquire(), 1)
	expect.EQ(t, p.Acquire(), 2)
	p.Release(1)
	expect.EQ(t, p.Acquire(), 1)
	expect.EQ(t, p.Acquire(), 3)
}

func TestCommandLine(t *testing.T) {
	for _, c := range []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"bigcg"}, "'bigcg'"},
		{[]string{"bigcg", "-lens", "4, 4"}, "'bigcg' '-lens' '4, 4'"},
		{[]string{"it's"}, `'it'\''s'`},
	} {
		expect.EQ(t, commandLine(c.args), c.want)
	}
}
