// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flow is the main package of NFF-Bricks library and should be
// always imported by user application.
//
// Preparations of construction:
// Initialize creates mempool, opens configured ports and creates one
// scheduler per core. StartSchedulers starts scheduler threads, every
// thread is locked and bound to its core.
//
// Pipeline construction:
// User adds PipelineBuilder functions by AddPipelineToRun. Execute calls
// every builder once per core on scheduler thread of this core with
// queues assigned to the core. Builder constructs pipelines like
//
//	flow.Receive(q).Map(handler).Filter(check).Send(q)
//
// and registers them by AddTask. Pipelines are executed by scheduler
// until Stop is called: each cycle receives one batch, passes it
// through map and filter stages and transmits survivors. Packets which
// failed map stage, were filtered or weren't accepted by transmit queue
// are released and counted.
package flow

import (
	"fmt"
	"os"
)

// CheckFatal is an error handling function for applications. It prints
// error with its stack trace and exits.
func CheckFatal(err error) {
	if err != nil {
		fmt.Printf("checkfail: %+v\n", err)
		os.Exit(1)
	}
}
