// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics defines counters and timers that are collected in
// scopes. Each shard of a solve collects its metrics in its own scope;
// scopes may be merged to produce totals.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	mu sync.Mutex
	// metrics maps all registered metrics by id. We reserve index 0 to minimize
	// the chances of zero-valued metrics instances being used uninitialized.
	metrics = []Metric{nil}
)

func newMetric(makeMetric func(id int) Metric) {
	mu.Lock()
	metrics = append(metrics, makeMetric(len(metrics)))
	mu.Unlock()
}

func metricByID(id int) Metric {
	mu.Lock()
	defer mu.Unlock()
	return metrics[id]
}

// Metric is implemented by the metric types in this package.
type Metric interface {
	metricID() int
	newInstance() interface{}

	merge(interface{}, interface{})
}

// Counter is a monotonically increasing count.
type Counter struct {
	id int
}

// NewCounter registers and returns a new counter.
func NewCounter() Counter {
	var c Counter
	newMetric(func(id int) Metric {
		c.id = id
		return c
	})
	return c
}

// Value returns the counter's value in the provided scope.
func (c Counter) Value(scope *Scope) int64 {
	return atomic.LoadInt64(scope.instance(c).(*int64))
}

// Incr increments the counter by n in the provided scope.
func (c Counter) Incr(scope *Scope, n int64) {
	atomic.AddInt64(scope.instance(c).(*int64), n)
}

func (c Counter) metricID() int { return c.id }
func (c Counter) newInstance() interface{} {
	return new(int64)
}
func (c Counter) merge(x, y interface{}) {
	atomic.AddInt64(x.(*int64), atomic.LoadInt64(y.(*int64)))
}

// Timer accumulates elapsed time.
type Timer struct {
	id int
}

// NewTimer registers and returns a new timer.
func NewTimer() Timer {
	var t Timer
	newMetric(func(id int) Metric {
		t.id = id
		return t
	})
	return t
}

// Value returns the total duration accumulated in the provided scope.
func (t Timer) Value(scope *Scope) time.Duration {
	return time.Duration(atomic.LoadInt64(scope.instance(t).(*int64)))
}

// Add adds d to the timer in the provided scope.
func (t Timer) Add(scope *Scope, d time.Duration) {
	atomic.AddInt64(scope.instance(t).(*int64), int64(d))
}

// Since adds the time elapsed since start to the timer in the
// provided scope. It is convenient with defer:
//
//	defer timer.Since(scope, time.Now())
func (t Timer) Since(scope *Scope, start time.Time) {
	t.Add(scope, time.Since(start))
}

func (t Timer) metricID() int { return t.id }
func (t Timer) newInstance() interface{} {
	return new(int64)
}
func (t Timer) merge(x, y interface{}) {
	atomic.AddInt64(x.(*int64), atomic.LoadInt64(y.(*int64)))
}
