// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"sort"
	"strings"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/bigcg/internal/trace"
	"github.com/grailbio/testutil/expect"
)

func TestDistribution(t *testing.T) {
	for _, c := range []struct {
		name       string
		ds         []int64
		q1, q2, q3 int64
	}{
		{
			name: "Single",
			ds:   []int64{0},
			q1:   0,
			q2:   0,
			q3:   0,
		},
		{
			name: "Pair",
			ds:   []int64{0, 100},
			q1:   0,
			q2:   50,
			q3:   100,
		},
		{
			name: "OddLowTie",
			ds:   []int64{0, 0, 200},
			q1:   0,
			q2:   0,
			q3:   100,
		},
		{
			name: "OddHighTie",
			ds:   []int64{0, 200, 200},
			q1:   100,
			q2:   200,
			q3:   200,
		},
		{
			name: "Odd",
			ds:   []int64{0, 100, 200},
			q1:   50,
			q2:   100,
			q3:   150,
		},
		{
			name: "EvenTie",
			ds:   []int64{0, 100, 100, 200},
			q1:   50,
			q2:   100,
			q3:   150,
		},
		{
			name: "Even",
			ds:   []int64{0, 100, 200, 300},
			q1:   50,
			q2:   150,
			q3:   250,
		},
		{
			name: "OddMiddleTie",
			ds:   []int64{0, 100, 100, 100, 200},
			q1:   100,
			q2:   100,
			q3:   100,
		},
		{
			name: "OddFive",
			ds:   []int64{0, 100, 200, 300, 400},
			q1:   100,
			q2:   200,
			q3:   300,
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			ds := make([]time.Duration, len(c.ds))
			for i := range ds {
				ds[i] = time.Duration(c.ds[i])
			}
			dist := distribution(ds)
			want := [5]time.Duration{
				time.Duration(c.ds[0]),
				time.Duration(c.q1),
				time.Duration(c.q2),
				time.Duration(c.q3),
				time.Duration(c.ds[len(c.ds)-1]),
			}
			if got := dist; got != want {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

// TestDistributionFuzz verifies that the distribution of fuzzed
// durations is non-decreasing.
func TestDistributionFuzz(t *testing.T) {
	const N = 10000
	f := fuzz.New()
	for i := 0; i < N; i++ {
		var ds []time.Duration
		f.Fuzz(&ds)
		if len(ds) == 0 {
			continue
		}
		dist := distribution(ds)
		if !sort.SliceIsSorted(ds, func(i, j int) bool { return ds[i] < ds[j] }) {
			t.Fatal("durations not sorted")
		}
		for j := 1; j < len(dist); j++ {
			if dist[j] < dist[j-1] {
				t.Errorf("%v: distribution decreases at %d: %v", ds, j, dist)
			}
		}
	}
}

func taskEvent(name string, ts, dur int64, failed bool) trace.Event {
	return trace.Event{
		Ph:   "X",
		Cat:  "task",
		Ts:   ts,
		Dur:  dur,
		Name: strings.SplitN(name, "@", 2)[0],
		Args: map[string]interface{}{"task": name, "error": failed},
	}
}

func TestSummaries(t *testing.T) {
	events := []trace.Event{
		{Ph: "M", Name: "process_name", Pid: 1, Args: map[string]interface{}{"name": "shard 0"}},
		taskEvent("spmv@2:0", 10, 100, false),
		taskEvent("spmv@2:1", 20, 300, false),
		taskEvent("dot@2:0", 5, 10, false),
		taskEvent("dot@2:1", 400, 20, true),
		{Ph: "X", Cat: "task", Name: "bogus", Args: map[string]interface{}{"task": "bogus"}},
	}
	spans := parseSpans(events)
	expect.EQ(t, len(spans), 4)

	ops := summarizeOps(spans)
	expect.EQ(t, len(ops), 2)
	expect.EQ(t, ops[0].op, "dot")
	expect.EQ(t, ops[0].count, 2)
	expect.EQ(t, ops[0].failed, 1)
	expect.EQ(t, ops[0].total, 30*time.Microsecond)
	expect.EQ(t, ops[1].op, "spmv")
	expect.EQ(t, ops[1].shards, 2)
	expect.EQ(t, ops[1].dist[2], 200*time.Microsecond)

	shards := summarizeShards(spans)
	expect.EQ(t, len(shards), 2)
	expect.EQ(t, shards[0].busy, 110*time.Microsecond)
	expect.EQ(t, shards[0].span, 105*time.Microsecond)
	expect.EQ(t, shards[1].span, 400*time.Microsecond)

	var b bytes.Buffer
	if err := write(&b, spans); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "spmv") || !strings.Contains(b.String(), "utilization") {
		t.Errorf("unexpected output:\n%s", b.String())
	}
}
