// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package low

import (
	"runtime"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/intel-go/nff-bricks/common"
)

// SetAffinity locks calling goroutine to its OS thread and binds the
// thread to given core.
func SetAffinity(coreID int) error {
	// go tool trace shows that each proc executes different goroutine. However it is expected behavior
	// (golang issue #20853) and each goroutine is locked to one OS thread.
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(coreID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return common.WrapWithNFError(err, "can't bind thread to core "+strconv.Itoa(coreID), common.SetAffinityErr)
	}
	return nil
}

// AllowedCPUs returns cores which current process may run on.
func AllowedCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, common.WrapWithNFError(err, "can't get affinity mask", common.Fail)
	}
	cpus := make([]int, 0, set.Count())
	for i := 0; i < len(set)*64; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
