// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"testing"
	"time"
)

func TestPhaseBarrierOrder(t *testing.T) {
	b := NewPhaseBarrier("b", 2)
	ctx := context.Background()
	if err := b.Wait(ctx, -1); err != nil {
		t.Fatal(err)
	}
	// Arrivals of generation 1 complete only after generation 0.
	b.Arrive(1)
	b.Arrive(1)
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	if got, want := b.Wait(waitCtx, 1), context.DeadlineExceeded; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	cancel()
	done := make(chan error)
	go func() { done <- b.Wait(ctx, 1) }()
	b.Arrive(0)
	b.Arrive(0)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got, want := b.completed, 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPhaseBarrierOverArrival(t *testing.T) {
	b := NewPhaseBarrier("b", 1)
	b.Gen(0).Arrive()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	b.Gen(0).Arrive()
}

func TestPhaseBarrierOverArrivalPending(t *testing.T) {
	b := NewPhaseBarrier("b", 1)
	b.Arrive(3)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	b.Arrive(3)
}
