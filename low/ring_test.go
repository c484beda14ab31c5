// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package low

import (
	"sync"
	"testing"

	"github.com/intel-go/nff-bricks/common"
)

func TestNewRingSize(t *testing.T) {
	var sizeTests = []struct {
		count    uint
		expected uint
		code     common.ErrorCode
	}{
		{1, 1, -1},
		{3, 4, -1},
		{1024, 1024, -1},
		{1025, 2048, -1},
		{0, 0, common.RingSizeErr},
		{MaxRingSize + 1, 0, common.RingSizeErr},
	}
	for _, tt := range sizeTests {
		r, err := NewRing("test", tt.count)
		if common.GetNFErrorCode(err) != tt.code {
			t.Errorf("NewRing(%d): got error %v, want code %d", tt.count, err, tt.code)
			continue
		}
		if err == nil && r.Capacity() != tt.expected {
			t.Errorf("NewRing(%d): got capacity %d, want %d", tt.count, r.Capacity(), tt.expected)
		}
	}
}

func TestRingBurstLimits(t *testing.T) {
	r, _ := NewRing("limits", 4)
	mbufs := make([]*Mbuf, 6)
	for i := range mbufs {
		mbufs[i] = &Mbuf{dataLen: uint16(i)}
	}
	if n := r.EnqueueBurst(mbufs); n != 4 {
		t.Fatalf("EnqueueBurst into empty ring: got %d, want 4", n)
	}
	if n := r.EnqueueBurst(mbufs[4:]); n != 0 {
		t.Fatalf("EnqueueBurst into full ring: got %d, want 0", n)
	}
	if r.Count() != 4 {
		t.Fatalf("Count: got %d, want 4", r.Count())
	}
	out := make([]*Mbuf, 3)
	if n := r.DequeueBurst(out); n != 3 {
		t.Fatalf("DequeueBurst: got %d, want 3", n)
	}
	for i, m := range out {
		if m != mbufs[i] {
			t.Errorf("DequeueBurst: position %d has wrong mbuf", i)
		}
	}
	if n := r.DequeueBurst(out); n != 1 || out[0] != mbufs[3] {
		t.Fatalf("DequeueBurst of tail: got %d", n)
	}
	if n := r.DequeueBurst(out); n != 0 {
		t.Fatalf("DequeueBurst from empty ring: got %d, want 0", n)
	}
}

// TestRingOrder checks that every producer's mbufs leave ring in the
// same order as they entered it and nothing is lost or duplicated.
func TestRingOrder(t *testing.T) {
	const producers = 4
	const perProducer = 20000
	r, _ := NewRing("order", 256)

	all := make([][]Mbuf, producers)
	owner := make(map[*Mbuf][2]int)
	for p := range all {
		all[p] = make([]Mbuf, perProducer)
		for i := range all[p] {
			owner[&all[p][i]] = [2]int{p, i}
		}
	}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			burst := make([]*Mbuf, 0, 8)
			for i := 0; i < perProducer; {
				burst = burst[:0]
				for j := i; j < perProducer && len(burst) < cap(burst); j++ {
					burst = append(burst, &all[p][j])
				}
				i += int(r.EnqueueBurst(burst))
			}
		}(p)
	}

	next := make([]int, producers)
	buf := make([]*Mbuf, 16)
	for received := 0; received < producers*perProducer; {
		n := r.DequeueBurst(buf)
		for _, m := range buf[:n] {
			id := owner[m]
			if id[1] != next[id[0]] {
				t.Fatalf("producer %d: got mbuf %d, want %d", id[0], id[1], next[id[0]])
			}
			next[id[0]]++
		}
		received += int(n)
	}
	wg.Wait()
	if r.Count() != 0 {
		t.Errorf("ring isn't empty after test: %d", r.Count())
	}
}
