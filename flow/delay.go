// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync/atomic"
)

// DelayFunc emulates per packet processing cost. It is called by user
// transforms.
type DelayFunc func()

// NoDelay returns immediately.
func NoDelay() {}

var spinSink uint64

// SpinDelay returns DelayFunc which busy loops for iterations steps.
func SpinDelay(iterations uint64) DelayFunc {
	if iterations == 0 {
		return NoDelay
	}
	return func() {
		var acc uint64
		for i := uint64(0); i < iterations; i++ {
			acc += 1 + i ^ acc>>7
		}
		// Never true, keeps the loop from being optimized out.
		if acc == 0 {
			atomic.StoreUint64(&spinSink, acc)
		}
	}
}
