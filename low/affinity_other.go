// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package low

import (
	"runtime"

	"github.com/intel-go/nff-bricks/common"
)

// SetAffinity locks calling goroutine to its OS thread. Binding to
// core is supported only on Linux.
func SetAffinity(coreID int) error {
	runtime.LockOSThread()
	return common.WrapWithNFError(nil, "thread affinity is not supported on "+runtime.GOOS, common.SetAffinityErr)
}

// AllowedCPUs returns all cores visible to Go runtime.
func AllowedCPUs() ([]int, error) {
	return common.GetDefaultCPUs(runtime.NumCPU()), nil
}
