// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/grailbio/base/limitbuf"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigcg/internal/trace"
)

// span is a single task execution recovered from a trace.
type span struct {
	op     string
	shards int
	shard  int
	// start is measured as a duration offset from the start of tracing.
	start    time.Duration
	duration time.Duration
	failed   bool
}

// opSummary aggregates the spans of one op over all shards.
type opSummary struct {
	op     string
	shards int
	count  int
	failed int
	// first is the start of the op's earliest span.
	first time.Duration
	total time.Duration
	// dist is the op's span duration distribution: minimum, the three
	// quartiles, and maximum.
	dist [5]time.Duration
}

// shardSummary is the time a shard spent running tasks.
type shardSummary struct {
	shard int
	count int
	busy  time.Duration
	// span is the time between the shard's first task start and last
	// task end.
	span time.Duration
}

// reTask matches the "task" argument of task events, e.g. "spmv@4:2"
// for shard 2 of a 4-shard epoch.
var reTask = regexp.MustCompile(`^([^@]*)@(\d+):(\d+)$`)

func parseSpans(events []trace.Event) []span {
	var spans []span
	for _, event := range events {
		if event.Cat != "task" || event.Ph != "X" {
			continue
		}
		name, _ := event.Args["task"].(string)
		m := reTask.FindStringSubmatch(name)
		if m == nil {
			log.Printf("could not parse task: %s", truncatef(event))
			continue
		}
		shards, err := strconv.Atoi(m[2])
		if err != nil {
			log.Printf("could not parse shards from task: %s", name)
			continue
		}
		shard, err := strconv.Atoi(m[3])
		if err != nil {
			log.Printf("could not parse shard from task: %s", name)
			continue
		}
		failed, _ := event.Args["error"].(bool)
		spans = append(spans, span{
			op:       m[1],
			shards:   shards,
			shard:    shard,
			start:    time.Duration(event.Ts) * time.Microsecond,
			duration: time.Duration(event.Dur) * time.Microsecond,
			failed:   failed,
		})
	}
	return spans
}

// summarizeOps returns a summary of each op, ordered by the op's
// first start.
func summarizeOps(spans []span) []opSummary {
	var (
		byOp      = make(map[string]*opSummary)
		durations = make(map[string][]time.Duration)
	)
	for _, s := range spans {
		sum := byOp[s.op]
		if sum == nil {
			sum = &opSummary{op: s.op, shards: s.shards, first: s.start}
			byOp[s.op] = sum
		}
		if s.shards > sum.shards {
			sum.shards = s.shards
		}
		if s.start < sum.first {
			sum.first = s.start
		}
		sum.count++
		if s.failed {
			sum.failed++
		}
		sum.total += s.duration
		durations[s.op] = append(durations[s.op], s.duration)
	}
	sums := make([]opSummary, 0, len(byOp))
	for op, sum := range byOp {
		sum.dist = distribution(durations[op])
		sums = append(sums, *sum)
	}
	sort.Slice(sums, func(i, j int) bool {
		if sums[i].first != sums[j].first {
			return sums[i].first < sums[j].first
		}
		return sums[i].op < sums[j].op
	})
	return sums
}

// summarizeShards returns the busy time of each shard, in shard
// order.
func summarizeShards(spans []span) []shardSummary {
	type bounds struct{ start, end time.Duration }
	var (
		byShard = make(map[int]*shardSummary)
		extent  = make(map[int]*bounds)
	)
	for _, s := range spans {
		sum := byShard[s.shard]
		if sum == nil {
			sum = &shardSummary{shard: s.shard}
			byShard[s.shard] = sum
			extent[s.shard] = &bounds{s.start, s.start + s.duration}
		}
		sum.count++
		sum.busy += s.duration
		b := extent[s.shard]
		if s.start < b.start {
			b.start = s.start
		}
		if end := s.start + s.duration; end > b.end {
			b.end = end
		}
	}
	sums := make([]shardSummary, 0, len(byShard))
	for shard, sum := range byShard {
		sum.span = extent[shard].end - extent[shard].start
		sums = append(sums, *sum)
	}
	sort.Slice(sums, func(i, j int) bool { return sums[i].shard < sums[j].shard })
	return sums
}

// distribution returns the minimum, quartiles and maximum of ds,
// which must be non-empty. Quartiles use Tukey's hinges: the lower
// and upper halves include the median when len(ds) is odd. ds is
// sorted in place.
func distribution(ds []time.Duration) [5]time.Duration {
	sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
	n := len(ds)
	half := (n + 1) / 2
	return [5]time.Duration{
		ds[0],
		median(ds[:half]),
		median(ds),
		median(ds[n-half:]),
		ds[n-1],
	}
}

// median returns the median of the sorted, non-empty ds.
func median(ds []time.Duration) time.Duration {
	mid := len(ds) / 2
	if len(ds)%2 == 1 {
		return ds[mid]
	}
	// Average without overflow.
	a, b := ds[mid-1], ds[mid]
	return a/2 + b/2 + (a%2+b%2)/2
}

func truncatef(v interface{}) string {
	b := limitbuf.NewLogger(80)
	fmt.Fprint(b, v)
	return b.String()
}
