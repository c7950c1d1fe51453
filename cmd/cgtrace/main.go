// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command cgtrace summarizes the trace file written by a bigcg session
// configured with a trace path. For each op it prints the number of
// tasks and the distribution of their durations; for each shard it
// prints the time spent running tasks.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/grailbio/base/log"
	"github.com/grailbio/bigcg/internal/trace"
)

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("cgtrace: ")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cgtrace tracefile\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}
	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	var t trace.T
	err = t.Decode(f)
	f.Close()
	if err != nil {
		log.Fatalf("decoding %s: %v", flag.Arg(0), err)
	}
	spans := parseSpans(t.Events)
	if len(spans) == 0 {
		log.Fatalf("%s: no task events", flag.Arg(0))
	}
	if err := write(os.Stdout, spans); err != nil {
		log.Fatal(err)
	}
}

func write(w io.Writer, spans []span) error {
	var tw tabwriter.Writer
	tw.Init(w, 4, 4, 1, ' ', 0)
	fmt.Fprintln(&tw, "op\tshards\ttasks\terrors\ttotal\tmin\tq1\tq2\tq3\tmax")
	for _, s := range summarizeOps(spans) {
		fmt.Fprintf(&tw, "%s\t%d\t%d\t%d\t%s", s.op, s.shards, s.count, s.failed, s.total)
		for _, d := range s.dist {
			fmt.Fprintf(&tw, "\t%s", d)
		}
		fmt.Fprintln(&tw)
	}
	fmt.Fprintln(&tw)
	fmt.Fprintln(&tw, "shard\ttasks\tbusy\tspan\tutilization")
	for _, s := range summarizeShards(spans) {
		util := 0.0
		if s.span > 0 {
			util = float64(s.busy) / float64(s.span)
		}
		fmt.Fprintf(&tw, "%d\t%d\t%s\t%s\t%.2f\n", s.shard, s.count, s.busy, s.span, util)
	}
	return tw.Flush()
}
