// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocators

import (
	"sync"
	"testing"
)

type counters struct {
	rx, tx uint64
}

type oddSized struct {
	a [13]byte
}

func checkAligned(t *testing.T, addr uintptr) {
	t.Helper()
	if addr%CacheLineSize != 0 {
		t.Errorf("address %#x isn't aligned to %d", addr, CacheLineSize)
	}
}

func TestAllocateAlignment(t *testing.T) {
	for i := 0; i < 1000; i++ {
		c := Allocate(counters{rx: uint64(i)})
		checkAligned(t, c.Addr())
		if c.Get().rx != uint64(i) {
			t.Fatalf("value changed: got %d, want %d", c.Get().rx, i)
		}
		o := Allocate(oddSized{})
		checkAligned(t, o.Addr())
		b := Allocate(byte(i))
		checkAligned(t, b.Addr())
		big := Allocate([300]byte{})
		checkAligned(t, big.Addr())
	}
}

func TestAllocateZeroSize(t *testing.T) {
	c := Allocate(struct{}{})
	if c.IsNil() {
		t.Fatal("zero size value wasn't allocated")
	}
}

func TestCloneSharesValue(t *testing.T) {
	c := Allocate(counters{})
	d := c.Clone()
	if c.Addr() != d.Addr() {
		t.Fatalf("clone changed address: %#x != %#x", c.Addr(), d.Addr())
	}
	d.Get().tx = 10
	if c.Get().tx != 10 {
		t.Errorf("clone doesn't share value")
	}
	checkAligned(t, d.Addr())
}

func TestAllocateConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	addrs := make([]uintptr, 64)
	for i := range addrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addrs[i] = Allocate(counters{}).Addr()
		}(i)
	}
	wg.Wait()
	for _, a := range addrs {
		checkAligned(t, a)
	}
}
