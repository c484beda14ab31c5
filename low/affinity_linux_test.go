// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package low

import (
	"testing"
)

func TestSetAffinity(t *testing.T) {
	cpus, err := AllowedCPUs()
	if err != nil {
		t.Fatal(err)
	}
	if len(cpus) == 0 {
		t.Fatal("no allowed cpus")
	}
	done := make(chan error)
	go func() {
		// Thread stays locked and is destroyed when goroutine exits.
		done <- SetAffinity(cpus[0])
	}()
	if err := <-done; err != nil {
		t.Errorf("SetAffinity(%d): %v", cpus[0], err)
	}
}
