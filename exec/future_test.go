// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFutureLazy(t *testing.T) {
	var calls uint32
	base := newFuture(func(context.Context) (float64, error) {
		atomic.AddUint32(&calls, 1)
		return 16, nil
	})
	root := Sqrt(base)
	ratio := Div(root, FromValue(2))
	if got, want := atomic.LoadUint32(&calls), uint32(0); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	const N = 10
	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := ratio.Get(context.Background())
			if err != nil {
				t.Error(err)
			}
			if got, want := v, 2.0; got != want {
				t.Errorf("got %v, want %v", got, want)
			}
		}()
	}
	wg.Wait()
	if _, err := root.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, want := atomic.LoadUint32(&calls), uint32(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
