// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
)

// TaskState represents the runtime state of a Task. TaskState
// values are defined so that their magnitudes correspond with
// task progression.
type TaskState int

const (
	// TaskInit is the initial state of a task. Tasks in state TaskInit
	// have been launched but have not yet been examined by the runtime.
	TaskInit TaskState = iota

	// TaskWaiting indicates that a task is waiting for its
	// dependencies, its barriers, or for a slot in the session's
	// limiter.
	TaskWaiting
	// TaskRunning is the state of a task that's currently being run.
	// After a task is in state TaskRunning, it can only enter a
	// larger-valued state.
	TaskRunning

	// TaskOk indicates that a task has successfully completed;
	// the task's result is available to its future.
	//
	// All TaskState values greater than TaskOk indicate task
	// errors.
	TaskOk

	// TaskErr indicates that the task experienced a failure while
	// running, or that one of its dependencies failed.
	TaskErr

	maxState
)

var states = [...]string{
	TaskInit:    "INIT",
	TaskWaiting: "WAITING",
	TaskRunning: "RUNNING",
	TaskOk:      "OK",
	TaskErr:     "ERROR",
}

// String returns the task's state as an upper-case string.
func (s TaskState) String() string {
	return states[s]
}

// A TaskName uniquely names a task by its constituent components.
type TaskName struct {
	// Op is a string describing the operation that is provided
	// by the task, e.g., "spmv" or "symgs.fwd".
	Op string
	// Shard and NumShard describe the shard that launched the task
	// and the total number of shards in its epoch.
	Shard, NumShard int
}

// String returns a canonical representation of the task name,
// formatted as:
//
//	{n.Op}@{n.NumShard}:{n.Shard}
func (n TaskName) String() string {
	return fmt.Sprintf("%s@%d:%d", n.Op, n.NumShard, n.Shard)
}

// A Task is a single leaf computation launched by a shard. Its
// dependencies are inferred at launch time from the region
// requirements of previously launched tasks.
//
// Tasks embed a mutex and provide a context-aware condition
// variable so that futures and dependent tasks may wait on
// runtime state changes.
type Task struct {
	// Name is the name of the task.
	Name TaskName
	// Deps are the tasks that must complete before this task runs.
	// They are cleared once satisfied.
	Deps []*Task

	sync.Mutex
	waitc chan struct{}

	// state is the task's state. It is protected by the task's lock
	// and state changes are also broadcast on the task's condition
	// variable.
	state TaskState
	// err is defined when state == TaskErr.
	err error
	// value is the scalar produced by the task; defined when
	// state == TaskOk.
	value float64
}

// String returns a short, human-readable string describing the
// task's state.
func (t *Task) String() string {
	// We read state and err without holding the task's mutex so that
	// it is safe to call String even when the lock is held.
	var b bytes.Buffer
	fmt.Fprintf(&b, "task %s %s", t.Name, t.state)
	if t.err != nil {
		fmt.Fprintf(&b, ": %v", t.err)
	}
	return b.String()
}

// Set sets the task's state to the provided state and notifies
// any waiters.
func (t *Task) Set(state TaskState) {
	t.Lock()
	t.state = state
	t.Broadcast()
	t.Unlock()
}

// Complete records the task's value and sets its state to TaskOk.
func (t *Task) Complete(value float64) {
	t.Lock()
	t.value = value
	t.state = TaskOk
	t.Broadcast()
	t.Unlock()
}

// Error sets the task's state to TaskErr and its error to the
// provided error. Waiters are notified.
func (t *Task) Error(err error) {
	t.Lock()
	t.state = TaskErr
	t.err = err
	t.Broadcast()
	t.Unlock()
}

// Err returns the task's error if its state is TaskErr.
func (t *Task) Err() error {
	t.Lock()
	defer t.Unlock()
	if t.state == TaskErr {
		if t.err == nil {
			panic("TaskErr without an err")
		}
		return t.err
	}
	return nil
}

// State returns the task's current state.
func (t *Task) State() TaskState {
	t.Lock()
	state := t.state
	t.Unlock()
	return state
}

// Broadcast notifies waiters of a state change. Broadcast must only
// be called while the task's lock is held.
func (t *Task) Broadcast() {
	if t.waitc != nil {
		close(t.waitc)
		t.waitc = nil
	}
}

// Wait returns after the next call to Broadcast, or if the context
// is complete. The task's lock must be held when calling Wait.
func (t *Task) Wait(ctx context.Context) error {
	if t.waitc == nil {
		t.waitc = make(chan struct{})
	}
	waitc := t.waitc
	t.Unlock()
	var err error
	select {
	case <-waitc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	t.Lock()
	return err
}

// WaitState returns when the task's state is at least the provided state,
// or else when the context is done.
func (t *Task) WaitState(ctx context.Context, state TaskState) (TaskState, error) {
	t.Lock()
	defer t.Unlock()
	var err error
	for t.state < state && err == nil {
		err = t.Wait(ctx)
	}
	return t.state, err
}

// Result waits for the task to complete and returns its value, or the
// error with which it failed.
func (t *Task) Result(ctx context.Context) (float64, error) {
	state, err := t.WaitState(ctx, TaskOk)
	if err != nil {
		return 0, err
	}
	if state != TaskOk {
		return 0, t.Err()
	}
	t.Lock()
	defer t.Unlock()
	return t.value, nil
}

// depError wraps the error of a failed dependency.
func depError(t, dep *Task) error {
	return errors.E(fmt.Sprintf("task %s: dependency %s failed", t.Name, dep.Name), dep.Err())
}
