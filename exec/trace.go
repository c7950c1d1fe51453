// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/bigcg/internal/trace"
)

// A tracer tracks a set of trace events associated with tasks. Trace
// events are logged in the Chrome tracing format and can be
// visualized using its built-in visualization tool
// (chrome://tracing). Each shard is represented as a Chrome
// "process", and task events are tracked by the shard that launched
// them.
//
// To produce easier to interpret visualizations, tracer assigns
// generated virtual "thread IDs" to trace events, and events are
// coalesced into "complete events" (X) at the time of rendering.
type tracer struct {
	mu sync.Mutex

	events     []trace.Event
	taskEvents map[*Task][]trace.Event

	shardPids     map[int]int
	shardTidPools map[int]tidPool

	// firstEvent is used to store the time of the first observed
	// event so that the offsets in the trace are meaningful.
	firstEvent time.Time
}

// tidPool is a pool of (virtual) thread IDs that we use to assign Tids to
// events. Concurrent events are then shown on their own rows. The length
// of the pool is the maximum number of B events without a matching E
// event. The indexes of the slice are the Tids that we allocate, their
// corresponding value indicating whether it is available for allocation.
type tidPool []bool

func newTracer() *tracer {
	return &tracer{
		taskEvents:    make(map[*Task][]trace.Event),
		shardPids:     make(map[int]int),
		shardTidPools: make(map[int]tidPool),
	}
}

// Event logs an event for the provided task with type ph (as in
// Chrome's tracing format). Arguments is a list of interleaved
// key-value pairs that are attached as event metadata. Args must be
// of even length.
func (t *tracer) Event(task *Task, ph string, args ...interface{}) {
	if t == nil {
		return
	}
	if len(args)%2 != 0 {
		panic("trace.Event: invalid arguments")
	}
	var event trace.Event
	event.Args = make(map[string]interface{}, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		event.Args[fmt.Sprint(args[i])] = args[i+1]
	}
	event.Ph = ph
	event.Name = task.Name.Op
	event.Cat = "task"
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstEvent.IsZero() {
		t.firstEvent = time.Now()
		event.Ts = 0
	} else {
		event.Ts = time.Since(t.firstEvent).Nanoseconds() / 1e3
	}
	shard := task.Name.Shard
	pid, ok := t.shardPids[shard]
	if !ok {
		pid = len(t.shardPids) + 1 // pid=0 is reserved for session events
		t.shardPids[shard] = pid
		t.events = append(t.events, trace.Event{
			Pid:  pid,
			Ts:   event.Ts,
			Ph:   "M",
			Name: "process_name",
			Args: map[string]interface{}{
				"name": fmt.Sprintf("shard %d", shard),
			},
		})
	}
	event.Pid = pid
	t.assignTid(shard, ph, t.taskEvents[task], &event)
	t.taskEvents[task] = append(t.taskEvents[task], event)
}

// assignTid assigns a thread ID to event, using the shard's tid pool
// and the type of event. events is the slice of existing events of
// the same task.
func (t *tracer) assignTid(shard int, ph string, events []trace.Event, event *trace.Event) {
	event.Tid = 0
	pool := t.shardTidPools[shard]
	switch ph {
	case "B":
		event.Tid = pool.Acquire()
		t.shardTidPools[shard] = pool
	case "E":
		if len(events) == 0 {
			break
		}
		lastEvent := events[len(events)-1]
		if lastEvent.Ph != "B" {
			break
		}
		event.Tid = lastEvent.Tid
		pool.Release(event.Tid)
	}
}

// Marshal writes the trace captured by t into the writer w in
// Chrome's event tracing format.
func (t *tracer) Marshal(w io.Writer) error {
	t.mu.Lock()
	events := make([]trace.Event, len(t.events))
	copy(events, t.events)
	for _, v := range t.taskEvents {
		events = appendCoalesce(events, v)
	}
	t.mu.Unlock()
	tr := trace.T{Events: events}
	tr.Sort()
	return tr.Encode(w)
}

// appendCoalesce appends a set of events on the provided list,
// first coalescing events so that "B" and "E" events are matched
// into a single "X" event. appendCoalesce also prunes orphan
// events.
func appendCoalesce(list []trace.Event, events []trace.Event) []trace.Event {
	var begIndex = -1
	for _, event := range events {
		if event.Ph == "B" && begIndex < 0 {
			begIndex = len(list)
		}
		if event.Ph == "E" && begIndex >= 0 {
			list[begIndex].Ph = "X"
			list[begIndex].Dur = event.Ts - list[begIndex].Ts
			if list[begIndex].Dur == 0 {
				list[begIndex].Dur = 1
			}
			for k, v := range event.Args {
				if _, ok := list[begIndex].Args[k]; !ok {
					list[begIndex].Args[k] = v
				}
			}
			begIndex = -1
		} else if event.Ph != "E" {
			list = append(list, event)
		} // drop unmatched "E"s
	}
	if begIndex >= 0 {
		// We have an unmatched "B". Drop it.
		copy(list[begIndex:], list[begIndex+1:])
		list = list[:len(list)-1]
	}
	return list
}

// Acquire acquires an available thread ID from pool p. Thread IDs are
// sequential and 1-indexed, preserving 0 for events without meaningful thread
// IDs.
func (p *tidPool) Acquire() int {
	for tid, available := range *p {
		if available {
			(*p)[tid] = false
			return tid + 1
		}
	}
	tid := len(*p)
	*p = append(*p, false)
	return tid + 1
}

// Release releases a tid, a thread ID previously acquired in Acquire. This
// makes it available to be returned from a future call to Acquire.
func (p tidPool) Release(tid int) {
	if p[tid-1] {
		panic("releasing unallocated tid")
	}
	p[tid-1] = true
}

func writeTraceFile(tracer *tracer, path string) {
	w, err := os.Create(path)
	if err != nil {
		log.Error.Printf("error creating trace file at %q: %v", path, err)
		return
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			log.Error.Printf("error closing trace file at %q: %v", path, closeErr)
		}
	}()
	if err := tracer.Marshal(w); err != nil {
		log.Error.Printf("error marshaling to trace file at %q: %v", path, err)
	}
}
