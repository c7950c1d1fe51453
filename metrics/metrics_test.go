// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/grailbio/bigcg/metrics"
)

func TestCounter(t *testing.T) {
	var (
		a, b metrics.Scope
		c    = metrics.NewCounter()
	)
	c.Incr(&a, 2)
	if got, want := c.Value(&a), int64(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	c.Incr(&b, 123)
	if got, want := c.Value(&a), int64(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := c.Value(&b), int64(123); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	a.Merge(&b)
	if got, want := c.Value(&a), int64(125); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTimer(t *testing.T) {
	var (
		a, b  metrics.Scope
		timer = metrics.NewTimer()
	)
	timer.Add(&a, time.Second)
	timer.Add(&a, 2*time.Second)
	timer.Add(&b, time.Millisecond)
	if got, want := timer.Value(&a), 3*time.Second; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	m := metrics.Merged(&a, &b)
	if got, want := timer.Value(m), 3*time.Second+time.Millisecond; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	start := time.Now().Add(-time.Minute)
	timer.Since(&b, start)
	if got := timer.Value(&b); got < time.Minute {
		t.Errorf("got %v, want at least 1m", got)
	}
}

func TestConcurrentInstances(t *testing.T) {
	const N = 16
	var (
		scope    metrics.Scope
		counters = make([]metrics.Counter, N)
		wg       sync.WaitGroup
	)
	for i := range counters {
		counters[i] = metrics.NewCounter()
	}
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range counters {
				c.Incr(&scope, 1)
			}
		}()
	}
	wg.Wait()
	for i, c := range counters {
		if got, want := c.Value(&scope), int64(N); got != want {
			t.Errorf("counter %d: got %v, want %v", i, got, want)
		}
	}
}

func TestContextScope(t *testing.T) {
	var (
		scope metrics.Scope
		c     = metrics.NewCounter()
	)
	ctx := metrics.ScopedContext(context.Background(), &scope)
	c.Incr(metrics.ContextScope(ctx), 5)
	if got, want := c.Value(&scope), int64(5); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
