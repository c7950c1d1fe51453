// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"sync"
	"sync/atomic"
)

// onceTask manages a computation that must be run at most once.
// It's similar to sync.Once, except it also handles and returns errors.
type onceTask struct {
	mu   sync.Mutex
	done uint32
	err  error
}

// Do runs the function do at most once. Successive invocations of Do
// guarantee exactly one invocation of the function do. Do returns
// the error of do's invocation.
func (o *onceTask) Do(do func() error) error {
	if atomic.LoadUint32(&o.done) == 1 {
		return o.err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if atomic.LoadUint32(&o.done) == 0 {
		o.err = do()
		atomic.StoreUint32(&o.done, 1)
	}
	return o.err
}

// onceMap creates values, named by a key, exactly once. Concurrent
// callers asking for the same key receive the same value.
type onceMap struct {
	tasks  sync.Map // key -> *onceTask
	values sync.Map // key -> interface{}
}

// Get returns the value stored under key, calling make to create it
// if it does not yet exist.
func (m *onceMap) Get(key interface{}, make func() interface{}) interface{} {
	taskv, _ := m.tasks.LoadOrStore(key, new(onceTask))
	_ = taskv.(*onceTask).Do(func() error {
		m.values.Store(key, make())
		return nil
	})
	v, _ := m.values.Load(key)
	return v
}
