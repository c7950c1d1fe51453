// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"runtime"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/eventlog"
)

func init() {
	config.Register("bigcg", func(inst *config.Constructor) {
		sess := newSession()
		inst.IntVar(&sess.p, "parallelism", runtime.GOMAXPROCS(0), "maximum number of concurrently running tasks")
		inst.StringVar(&sess.tracePath, "trace", "", "path to which a Chrome trace of the session is written on shutdown")
		var eventer eventlog.Eventer
		inst.InstanceVar(&eventer, "eventer", "", "the eventer used to log session events")
		inst.InstanceVar(&sess.system, "system", "", "the bigmachine system on which solves are run remotely")
		inst.Doc = "bigcg configures the bigcg runtime"
		inst.New = func() (interface{}, error) {
			if eventer != nil {
				sess.eventer = eventer
			}
			if sess.p <= 0 {
				sess.p = 1
			}
			sess.start()
			return sess, nil
		}
	})
}
