// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigcg

import (
	"fmt"
	"time"

	"github.com/grailbio/bigcg/metrics"
)

var (
	timerTotal   = metrics.NewTimer()
	timerDot     = metrics.NewTimer()
	timerWAXPBY  = metrics.NewTimer()
	timerSPMV    = metrics.NewTimer()
	timerReduce  = metrics.NewTimer()
	timerPrecond = metrics.NewTimer()
	timerHalo    = metrics.NewTimer()

	haloExchanges = metrics.NewCounter()
)

// Times holds the time a shard spent in each phase of CG. Kernels are
// asynchronous, so all times except Reduce measure issue time; Reduce
// is the time spent blocked on collective results.
type Times struct {
	Total        time.Duration
	Dot          time.Duration
	WAXPBY       time.Duration
	SPMV         time.Duration
	Reduce       time.Duration
	Precondition time.Duration
	Halo         time.Duration
}

func readTimes(scope *metrics.Scope) Times {
	return Times{
		Total:        timerTotal.Value(scope),
		Dot:          timerDot.Value(scope),
		WAXPBY:       timerWAXPBY.Value(scope),
		SPMV:         timerSPMV.Value(scope),
		Reduce:       timerReduce.Value(scope),
		Precondition: timerPrecond.Value(scope),
		Halo:         timerHalo.Value(scope),
	}
}

// Sub returns the component-wise difference t-u.
func (t Times) Sub(u Times) Times {
	return Times{
		Total:        t.Total - u.Total,
		Dot:          t.Dot - u.Dot,
		WAXPBY:       t.WAXPBY - u.WAXPBY,
		SPMV:         t.SPMV - u.SPMV,
		Reduce:       t.Reduce - u.Reduce,
		Precondition: t.Precondition - u.Precondition,
		Halo:         t.Halo - u.Halo,
	}
}

func (t Times) String() string {
	return fmt.Sprintf("total=%s dot=%s waxpby=%s spmv=%s reduce=%s mg=%s halo=%s",
		t.Total, t.Dot, t.WAXPBY, t.SPMV, t.Reduce, t.Precondition, t.Halo)
}
