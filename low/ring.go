// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package low

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/intel-go/nff-bricks/common"
)

// MaxRingSize is the biggest number of entries in one ring.
const MaxRingSize = 1 << 24

type headTail struct {
	head uint32
	tail uint32
	_    cpu.CacheLinePad
}

// Ring is a bounded multi-producer multi-consumer lock-free queue of
// mbufs. Producer and consumer indexes are kept at different cache
// lines. Algorithm is DPDK rte_ring: producer (consumer) reserves
// slots by moving its head with CAS, fills (reads) them and then
// publishes by moving tail in reservation order.
type Ring struct {
	name string
	mask uint32
	size uint32
	_    cpu.CacheLinePad
	prod headTail
	cons headTail
	ring []*Mbuf
}

// NewRing creates ring which can hold at least count mbufs. Count is
// rounded up to power of two.
func NewRing(name string, count uint) (*Ring, error) {
	if count == 0 || count > MaxRingSize {
		return nil, common.WrapWithNFError(nil, "ring "+name+" has invalid size", common.RingSizeErr)
	}
	size := uint32(1)
	for uint(size) < count {
		size <<= 1
	}
	return &Ring{
		name: name,
		mask: size - 1,
		size: size,
		ring: make([]*Mbuf, size),
	}, nil
}

// Name returns name of ring.
func (r *Ring) Name() string {
	return r.name
}

// Capacity returns maximum number of mbufs in ring.
func (r *Ring) Capacity() uint {
	return uint(r.size)
}

// Count returns number of mbufs in ring.
func (r *Ring) Count() uint {
	prodTail := atomic.LoadUint32(&r.prod.tail)
	consTail := atomic.LoadUint32(&r.cons.tail)
	return uint(prodTail - consTail)
}

// EnqueueBurst puts as many mbufs from buffer as there is free space
// for. Returns number of enqueued mbufs which are buffer[:n].
func (r *Ring) EnqueueBurst(buffer []*Mbuf) uint {
	n := uint32(len(buffer))
	if n == 0 {
		return 0
	}
	max := n
	var prodHead, prodNext uint32
	for {
		n = max
		prodHead = atomic.LoadUint32(&r.prod.head)
		consTail := atomic.LoadUint32(&r.cons.tail)
		// Unsigned subtraction, always between 0 and size.
		freeEntries := r.size + consTail - prodHead
		if n > freeEntries {
			if freeEntries == 0 {
				return 0
			}
			n = freeEntries
		}
		prodNext = prodHead + n
		if atomic.CompareAndSwapUint32(&r.prod.head, prodHead, prodNext) {
			break
		}
	}

	for i := uint32(0); i < n; i++ {
		r.ring[(prodHead+i)&r.mask] = buffer[i]
	}

	// Wait for preceding enqueues.
	for atomic.LoadUint32(&r.prod.tail) != prodHead {
		runtime.Gosched()
	}
	atomic.StoreUint32(&r.prod.tail, prodNext)
	return uint(n)
}

// DequeueBurst takes up to len(buffer) mbufs. Returns number of
// dequeued mbufs which are placed to buffer[:n].
func (r *Ring) DequeueBurst(buffer []*Mbuf) uint {
	n := uint32(len(buffer))
	if n == 0 {
		return 0
	}
	max := n
	var consHead, consNext uint32
	for {
		n = max
		consHead = atomic.LoadUint32(&r.cons.head)
		prodTail := atomic.LoadUint32(&r.prod.tail)
		entries := prodTail - consHead
		if n > entries {
			if entries == 0 {
				return 0
			}
			n = entries
		}
		consNext = consHead + n
		if atomic.CompareAndSwapUint32(&r.cons.head, consHead, consNext) {
			break
		}
	}

	for i := uint32(0); i < n; i++ {
		idx := (consHead + i) & r.mask
		buffer[i] = r.ring[idx]
		r.ring[idx] = nil
	}

	// Wait for preceding dequeues.
	for atomic.LoadUint32(&r.cons.tail) != consHead {
		runtime.Gosched()
	}
	atomic.StoreUint32(&r.cons.tail, consNext)
	return uint(n)
}
