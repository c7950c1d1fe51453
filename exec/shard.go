// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigcg/metrics"
	"github.com/grailbio/bigcg/region"
	"golang.org/x/sync/errgroup"
)

// TasksLaunched counts the leaf tasks launched by a shard.
var TasksLaunched = metrics.NewCounter()

// An epoch is a single must-epoch launch: a set of shards that run
// concurrently and share named collectives.
type epoch struct {
	name  string
	index int32
	n     int
	colls onceMap
}

// A Shard is one participant of an epoch. Each shard runs in its own
// goroutine and launches leaf tasks in program order.
type Shard struct {
	// Index is the shard's index in [0, NumShard).
	Index int
	// NumShard is the number of shards in the epoch.
	NumShard int
	// Scope collects the metrics of the shard and its tasks.
	Scope metrics.Scope
	// Status reports the shard's progress. It is nil if the session
	// has no status.
	Status *status.Task

	sess  *Session
	epoch *epoch

	mu    sync.Mutex
	tasks []*Task
}

// Session returns the session that runs the shard.
func (sh *Shard) Session() *Session { return sh.sess }

// Collective returns the epoch's collective named name, creating it
// on first use. Every shard of the epoch receives the same collective,
// with one participant per shard.
func (sh *Shard) Collective(name string, op Op) *DynColl {
	key := fmt.Sprintf("%s/%s", name, op)
	return sh.epoch.colls.Get(key, func() interface{} {
		return NewDynColl(fmt.Sprintf("%s.%s", sh.epoch.name, name), sh.NumShard, op)
	}).(*DynColl)
}

// Printf reports shard progress to the shard's status, if any.
func (sh *Shard) Printf(format string, args ...interface{}) {
	if sh.Status != nil {
		sh.Status.Printf(format, args...)
	}
}

// Epoch runs fn once for each of n shards. All shards run
// concurrently regardless of the session's parallelism, so that they
// may rendezvous at phase barriers and collectives. Epoch returns
// after every shard's function and every task launched by it has
// completed. The first error cancels the remaining shards and is
// returned.
func (s *Session) Epoch(ctx context.Context, name string, n int, fn func(ctx context.Context, sh *Shard) error) ([]*Shard, error) {
	must.Truef(n > 0, "exec.Epoch %s: %d shards", name, n)
	ep := &epoch{
		name:  name,
		index: atomic.AddInt32(&s.epochs, 1) - 1,
		n:     n,
	}
	var group *status.Group
	if s.status != nil {
		group = s.status.Groupf("epoch %s [%d]", name, ep.index)
	}
	shards := make([]*Shard, n)
	g, ctx := errgroup.WithContext(ctx)
	for i := range shards {
		sh := &Shard{Index: i, NumShard: n, sess: s, epoch: ep}
		if group != nil {
			sh.Status = group.Startf("shard %d", i)
		}
		shards[i] = sh
		g.Go(func() error {
			err := fn(metrics.ScopedContext(ctx, &sh.Scope), sh)
			if err == nil {
				err = sh.drain(ctx)
			}
			if sh.Status != nil {
				if err != nil {
					sh.Status.Printf("error: %v", err)
				} else {
					sh.Status.Print("done")
				}
				sh.Status.Done()
			}
			return err
		})
	}
	err := g.Wait()
	if group != nil {
		group.Printf("shards: %d; done", n)
	}
	if err != nil {
		log.Error.Printf("exec.Epoch %s: %v", name, err)
	}
	return shards, err
}

// drain waits for every task launched by the shard.
func (sh *Shard) drain(ctx context.Context) error {
	sh.mu.Lock()
	tasks := sh.tasks
	sh.tasks = nil
	sh.mu.Unlock()
	for _, task := range tasks {
		if _, err := task.Result(ctx); err != nil {
			return err
		}
	}
	return nil
}

// A Launcher describes a leaf task.
type Launcher struct {
	// Op names the operation performed by the task.
	Op string
	// Requirements declare the region shards accessed by the task.
	// The runtime orders the task after previously launched tasks
	// with conflicting requirements.
	Requirements []region.Requirement
	// Wait lists barrier generations that must complete before the
	// task runs.
	Wait []BarrierGen
	// Arrive lists barrier generations at which the task arrives
	// after it completes successfully.
	Arrive []BarrierGen
	// Futures lists futures that must be resolved before the task
	// runs. Do may read them with Get without blocking.
	Futures []*Future
	// Do performs the task's computation, returning its (optional)
	// scalar result.
	Do func(ctx context.Context) (float64, error)
}

// Launch issues the task described by l and returns a future for its
// result. Launch does not block: the task runs asynchronously once
// its dependencies and barriers are satisfied and the session admits
// it.
func (sh *Shard) Launch(ctx context.Context, l Launcher) *Future {
	task := &Task{Name: TaskName{l.Op, sh.Index, sh.NumShard}}
	task.Deps = sh.sess.tracker.Add(task, l.Requirements)
	TasksLaunched.Incr(&sh.Scope, 1)
	sh.mu.Lock()
	sh.tasks = append(sh.tasks, task)
	sh.mu.Unlock()
	go sh.sess.run(metrics.ScopedContext(ctx, &sh.Scope), task, l)
	return taskFuture(task)
}

func (s *Session) run(ctx context.Context, task *Task, l Launcher) {
	task.Set(TaskWaiting)
	for _, dep := range task.Deps {
		state, err := dep.WaitState(ctx, TaskOk)
		if err != nil {
			task.Error(err)
			return
		}
		if state != TaskOk {
			task.Error(depError(task, dep))
			return
		}
	}
	task.Lock()
	task.Deps = nil
	task.Unlock()
	for _, f := range l.Futures {
		if _, err := f.Get(ctx); err != nil {
			task.Error(err)
			return
		}
	}
	for _, b := range l.Wait {
		if err := b.Wait(ctx); err != nil {
			task.Error(err)
			return
		}
	}
	// Slots are acquired only once the task is runnable so that
	// waiting tasks cannot starve the tasks they wait for.
	if err := s.limiter.Acquire(ctx, 1); err != nil {
		task.Error(err)
		return
	}
	task.Set(TaskRunning)
	s.tracer.Event(task, "B", "task", task.Name.String())
	value, err := do(ctx, task, l.Do)
	s.tracer.Event(task, "E", "error", err != nil)
	s.limiter.Release(1)
	if err != nil {
		log.Debug.Printf("%v: %v", task.Name, err)
		task.Error(err)
		return
	}
	for _, b := range l.Arrive {
		b.Arrive()
	}
	task.Complete(value)
}

func do(ctx context.Context, task *Task, fn func(context.Context) (float64, error)) (value float64, err error) {
	defer func() {
		if e := recover(); e != nil {
			stack := debug.Stack()
			err = fmt.Errorf("panic while running task %s: %v\n%s", task.Name, e, string(stack))
			err = errors.E(err, errors.Fatal)
		}
	}()
	if fn == nil {
		return 0, nil
	}
	return fn(ctx)
}
