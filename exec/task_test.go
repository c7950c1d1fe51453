// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/grailbio/bigcg/region"
)

func TestTaskWaitState(t *testing.T) {
	const numWaiters = 8
	task := &Task{Name: TaskName{"op", 0, 1}}
	var wg sync.WaitGroup
	for i := 0; i < numWaiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := task.WaitState(context.Background(), TaskOk)
			if err != nil {
				t.Error(err)
			}
			if got, want := state, TaskOk; got != want {
				t.Errorf("got %v, want %v", got, want)
			}
		}()
	}
	for state := TaskWaiting; state < TaskOk; state++ {
		task.Set(state)
		time.Sleep(time.Millisecond * time.Duration(rand.Intn(3)))
	}
	task.Complete(42)
	wg.Wait()
	v, err := task.Result(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, 42.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTaskError(t *testing.T) {
	task := &Task{Name: TaskName{"op", 1, 2}}
	task.Error(errors.New("boom 1"))
	if got, want := task.State(), TaskErr; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, err := task.Result(context.Background()); err == nil || err.Error() != "boom 1" {
		t.Errorf("unexpected error %v", err)
	}
	if got, want := task.String(), "task op@2:1 ERROR: boom 1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTrackerDeps(t *testing.T) {
	var (
		k = newTracker()
		h = region.Allocate("x", 4)
		g = region.Allocate("g", 4)
	)
	h.Partition(2)
	g.Partition(2)
	newTask := func(op string) *Task { return &Task{Name: TaskName{op, 0, 1}} }
	var (
		w0 = newTask("w0")
		r1 = newTask("r1")
		r2 = newTask("r2")
		w3 = newTask("w3")
		o4 = newTask("o4")
		s5 = newTask("s5")
		a6 = newTask("a6")
	)
	check := func(task *Task, reqs []region.Requirement, want ...*Task) {
		t.Helper()
		deps := k.Add(task, reqs)
		if len(deps) != len(want) {
			t.Fatalf("%s: got %v, want %v", task.Name, deps, want)
		}
		for i := range deps {
			if deps[i] != want[i] {
				t.Errorf("%s: dep %d: got %v, want %v", task.Name, i, deps[i], want[i])
			}
		}
	}
	check(w0, []region.Requirement{h.Intent(region.WriteOnly, region.Exclusive, 0)})
	check(r1, []region.Requirement{h.Intent(region.ReadOnly, region.Exclusive, 0)}, w0)
	check(r2, []region.Requirement{
		h.Intent(region.ReadOnly, region.Exclusive, 0),
		h.Intent(region.ReadOnly, region.Exclusive, 0),
	}, w0)
	check(w3, []region.Requirement{h.Intent(region.ReadWrite, region.Exclusive, 0)}, w0, r1, r2)
	// Other shards are independent.
	check(o4, []region.Requirement{h.Intent(region.ReadWrite, region.Exclusive, 1)})
	// Simultaneous accesses are ordered by the caller.
	check(s5, []region.Requirement{g.Intent(region.WriteOnly, region.Simultaneous, 0)})
	check(a6, []region.Requirement{
		h.Intent(region.ReadWrite, region.Atomic, region.AllShards),
		g.Intent(region.ReadOnly, region.Simultaneous, 0),
	}, w3, o4)
}

func TestTrackerBounded(t *testing.T) {
	const (
		nshard = 2
		reads  = 100
	)
	sess := Start(Parallelism(2))
	defer sess.Shutdown()
	h := region.Allocate("A", nshard)
	h.Partition(nshard)
	for epoch := 0; epoch < 3; epoch++ {
		launched := make([][]*Task, nshard)
		_, err := sess.Epoch(context.Background(), "read", nshard, func(ctx context.Context, sh *Shard) error {
			if epoch == 0 {
				if _, err := sh.Launch(ctx, Launcher{
					Op:           "init",
					Requirements: []region.Requirement{h.Intent(region.WriteOnly, region.Exclusive, sh.Index)},
				}).Get(ctx); err != nil {
					return err
				}
			}
			for i := 0; i < reads; i++ {
				f := sh.Launch(ctx, Launcher{
					Op:           "read",
					Requirements: []region.Requirement{h.Intent(region.ReadOnly, region.Exclusive, sh.Index)},
				})
				if _, err := f.Get(ctx); err != nil {
					return err
				}
			}
			sh.mu.Lock()
			launched[sh.Index] = append(launched[sh.Index], sh.tasks...)
			sh.mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		// Only the last reader of each shard may remain.
		if got, max := sess.Tracked(), nshard; got > max {
			t.Errorf("epoch %d: %d tasks tracked, want at most %d", epoch, got, max)
		}
		for _, tasks := range launched {
			for _, task := range tasks {
				task.Lock()
				deps := task.Deps
				task.Unlock()
				if deps != nil {
					t.Errorf("epoch %d: %v retains its dependencies", epoch, task)
				}
			}
		}
	}
	sess.Forget(h)
	if got := sess.Tracked(); got != 0 {
		t.Errorf("%d tasks tracked after forget", got)
	}
}

func TestEpochLaunchOrder(t *testing.T) {
	const (
		nshard = 4
		steps  = 50
	)
	sess := Start(Parallelism(2))
	defer sess.Shutdown()
	h := region.Allocate("x", nshard)
	h.Partition(nshard)
	x := region.NewFloat64s(h, 1)
	shards, err := sess.Epoch(context.Background(), "order", nshard, func(ctx context.Context, sh *Shard) error {
		req := []region.Requirement{h.Intent(region.ReadWrite, region.Exclusive, sh.Index)}
		for i := 0; i < steps; i++ {
			i := i
			sh.Launch(ctx, Launcher{
				Op:           "step",
				Requirements: req,
				Do: func(ctx context.Context) (float64, error) {
					v := x.Shard(sh.Index)
					if v[0] != float64(i) {
						return 0, errors.New("out of order")
					}
					v[0]++
					return 0, nil
				},
			})
		}
		f := sh.Launch(ctx, Launcher{
			Op:           "read",
			Requirements: []region.Requirement{h.Intent(region.ReadOnly, region.Exclusive, sh.Index)},
			Do: func(ctx context.Context) (float64, error) {
				return x.Shard(sh.Index)[0], nil
			},
		})
		sum, err := sh.Collective("sum", Sum).Arrive(sh.Index, f).Get(ctx)
		if err != nil {
			return err
		}
		if got, want := sum, float64(nshard*steps); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, sh := range shards {
		if got, want := TasksLaunched.Value(&sh.Scope), int64(steps+1); got != want {
			t.Errorf("shard %d: got %v, want %v", sh.Index, got, want)
		}
	}
}

func TestEpochBarrierExchange(t *testing.T) {
	const gens = 20
	sess := Start(Parallelism(1))
	defer sess.Shutdown()
	var (
		ready = NewPhaseBarrier("ready", 1)
		done  = NewPhaseBarrier("done", 1)
		slot  float64
	)
	_, err := sess.Epoch(context.Background(), "pingpong", 2, func(ctx context.Context, sh *Shard) error {
		for g := 0; g < gens; g++ {
			g := g
			if sh.Index == 0 {
				sh.Launch(ctx, Launcher{
					Op:     "produce",
					Wait:   []BarrierGen{done.Gen(g - 1)},
					Arrive: []BarrierGen{ready.Gen(g)},
					Do: func(ctx context.Context) (float64, error) {
						slot = float64(g)
						return 0, nil
					},
				})
				continue
			}
			f := sh.Launch(ctx, Launcher{
				Op:     "consume",
				Wait:   []BarrierGen{ready.Gen(g)},
				Arrive: []BarrierGen{done.Gen(g)},
				Do: func(ctx context.Context) (float64, error) {
					return slot, nil
				},
			})
			v, err := f.Get(ctx)
			if err != nil {
				return err
			}
			if got, want := v, float64(g); got != want {
				t.Errorf("generation %d: got %v, want %v", g, got, want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestEpochPanic(t *testing.T) {
	sess := Start()
	defer sess.Shutdown()
	h := region.Allocate("x", 2)
	h.Partition(2)
	_, err := sess.Epoch(context.Background(), "panic", 2, func(ctx context.Context, sh *Shard) error {
		req := []region.Requirement{h.Intent(region.ReadWrite, region.Exclusive, sh.Index)}
		sh.Launch(ctx, Launcher{
			Op:           "boom",
			Requirements: req,
			Do: func(ctx context.Context) (float64, error) {
				if sh.Index == 1 {
					panic("boom")
				}
				return 0, nil
			},
		})
		// A dependent task fails along with its dependency.
		sh.Launch(ctx, Launcher{Op: "after", Requirements: req})
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
