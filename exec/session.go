// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/grailbio/base/eventlog"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigcg/region"
	"github.com/grailbio/bigmachine"
)

// Session represents a bigcg compute session. A session bounds the
// number of concurrently running leaf tasks, infers dependencies
// between the tasks launched in it, and runs SPMD epochs.
//
// A session is started by Start and should be shut down by Shutdown
// when it is no longer needed:
//
//	sess := exec.Start(exec.Parallelism(8))
//	defer sess.Shutdown()
//	_, err := sess.Epoch(ctx, "solve", nshard, func(ctx context.Context, sh *exec.Shard) error {
//		...
//	})
type Session struct {
	index     int32
	p         int
	limiter   *limiter.Limiter
	status    *status.Status
	eventer   eventlog.Eventer
	tracePath string
	system    bigmachine.System

	tracer  *tracer
	tracker *tracker

	epochs int32
}

func newSession() *Session {
	return &Session{
		index:   atomic.AddInt32(&nextSessionIndex, 1) - 1,
		eventer: eventlog.Nop{},
		tracker: newTracker(),
	}
}

// An Option represents a session configuration parameter value.
type Option func(s *Session)

// Parallelism configures the session with the provided target
// parallelism: the maximum number of leaf tasks that run at once.
func Parallelism(p int) Option {
	if p <= 0 {
		panic("exec.Parallelism: p <= 0")
	}
	return func(s *Session) {
		s.p = p
	}
}

// Status configures the session with a status object to which
// epoch and shard statuses are reported.
func Status(status *status.Status) Option {
	return func(s *Session) {
		s.status = status
	}
}

// Eventer configures the session with an Eventer that will be used to log
// session events (for analytics).
func Eventer(e eventlog.Eventer) Option {
	return func(s *Session) {
		s.eventer = e
	}
}

// TracePath configures the path to which a trace event file for the session
// will be written on shutdown.
func TracePath(path string) Option {
	return func(s *Session) {
		s.tracePath = path
	}
}

// System configures the session with a bigmachine system on which
// whole solves may be run remotely. Epochs always run in-process;
// the system is consulted by callers through Session.System.
func System(system bigmachine.System) Option {
	return func(s *Session) {
		s.system = system
	}
}

// nextSessionIndex is the index of the next session that will be started by
// Start.
var nextSessionIndex int32

// Start creates and starts a new session, configuring it according
// to the provided options. If no parallelism is configured, the
// session uses GOMAXPROCS.
func Start(options ...Option) *Session {
	s := newSession()
	for _, opt := range options {
		opt(s)
	}
	if s.p == 0 {
		s.p = runtime.GOMAXPROCS(0)
	}
	s.start()
	return s
}

func (s *Session) start() {
	s.limiter = limiter.New()
	s.limiter.Release(s.p)
	if s.tracePath != "" {
		s.tracer = newTracer()
	}
	s.eventer.Event("bigcg:sessionStart",
		"command", commandLine(os.Args),
		"parallelism", s.p,
		"trace", s.tracePath != "",
		"remote", s.system != nil)
	log.Debug.Printf("exec.Session %d: started with parallelism %d", s.index, s.p)
}

// Parallelism returns the session's leaf task parallelism.
func (s *Session) Parallelism() int {
	return s.p
}

// Status returns the session's status aggregator.
func (s *Session) Status() *status.Status {
	return s.status
}

// Eventer returns the session's eventer.
func (s *Session) Eventer() eventlog.Eventer {
	return s.eventer
}

// System returns the session's bigmachine system, or nil if the
// session is local-only.
func (s *Session) System() bigmachine.System {
	return s.system
}

// Forget drops the session's dependency records for handle h. It
// should be called when h is deallocated.
func (s *Session) Forget(h *region.Handle) {
	s.tracker.Forget(h)
}

// Tracked returns the number of task records the session retains
// for dependency inference. Records of completed tasks are dropped as
// new tasks are launched, and Forget drops all records of a handle.
func (s *Session) Tracked() int {
	return s.tracker.Len()
}

// Shutdown tears down resources associated with this session,
// writing the trace file if one was configured.
func (s *Session) Shutdown() {
	if s.tracePath != "" {
		writeTraceFile(s.tracer, s.tracePath)
	}
}

// commandLine returns args as a command line that can be pasted into
// sh. Every argument is single-quoted, with embedded single quotes
// written as '\''.
func commandLine(args []string) string {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('\'')
		b.WriteString(strings.Replace(arg, "'", `'\''`, -1))
		b.WriteByte('\'')
	}
	return b.String()
}
