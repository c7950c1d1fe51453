// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"math"
)

// A Future is a single-assignment scalar that becomes available
// asynchronously. Futures are produced by task launches, by
// collectives, and by the lazy combinators Sqrt and Div. The value of
// a future is computed at most once, on the first call to Get.
type Future struct {
	once  onceTask
	get   func(ctx context.Context) (float64, error)
	value float64
}

func newFuture(get func(ctx context.Context) (float64, error)) *Future {
	return &Future{get: get}
}

// FromValue returns a future that is already resolved to v.
func FromValue(v float64) *Future {
	return newFuture(func(context.Context) (float64, error) { return v, nil })
}

// taskFuture returns a future for the value produced by task t.
func taskFuture(t *Task) *Future {
	return newFuture(t.Result)
}

// Get blocks until the future's value is available and returns it.
// Get returns an error if the computation that produces the value
// failed or if the context was canceled first; the error is retained
// by the future.
func (f *Future) Get(ctx context.Context) (float64, error) {
	err := f.once.Do(func() (err error) {
		f.value, err = f.get(ctx)
		return
	})
	return f.value, err
}

// Sqrt returns a future for the square root of f's value. The
// square root is computed only when the returned future is read.
func Sqrt(f *Future) *Future {
	return newFuture(func(ctx context.Context) (float64, error) {
		v, err := f.Get(ctx)
		if err != nil {
			return 0, err
		}
		return math.Sqrt(v), nil
	})
}

// Div returns a future for a/b. The quotient is computed only when
// the returned future is read. Division by zero is not checked.
func Div(a, b *Future) *Future {
	return newFuture(func(ctx context.Context) (float64, error) {
		x, err := a.Get(ctx)
		if err != nil {
			return 0, err
		}
		y, err := b.Get(ctx)
		if err != nil {
			return 0, err
		}
		return x / y, nil
	})
}
