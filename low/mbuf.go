// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package low keeps packet memory and kernel facing services: mbufs
// and mempools, lock-free rings, CPU affinity and port drivers which
// move frames between mbufs and network interfaces or capture files.
package low

import (
	"fmt"
	"sync/atomic"

	"github.com/intel-go/nff-bricks/common"
)

// Default mbuf geometry.
const (
	DefaultHeadroom = 128
	DefaultDataRoom = 2048
)

// Mbuf is a message buffer. It owns raw memory of one packet: headroom
// followed by data room. Mbuf is owned by exactly one holder at a time
// unless reference count was explicitly increased by Ref.
type Mbuf struct {
	refcnt  int32
	dataOff uint16
	dataLen uint16
	pool    *Mempool
	buf     []byte
}

// RefCnt returns current reference count.
func (m *Mbuf) RefCnt() int32 {
	return atomic.LoadInt32(&m.refcnt)
}

// Ref adds one more holder of mbuf. Each holder must call Release.
func (m *Mbuf) Ref() *Mbuf {
	atomic.AddInt32(&m.refcnt, 1)
	return m
}

// Release drops one reference. Last reference returns mbuf to its
// mempool.
func (m *Mbuf) Release() {
	switch c := atomic.AddInt32(&m.refcnt, -1); {
	case c == 0:
		m.pool.put(m)
	case c < 0:
		panic(common.WrapWithNFError(nil, fmt.Sprintf("mbuf from %s released with reference count %d", m.pool.name, c+1), common.RefCntViolation))
	}
}

// Pool returns mempool which owns mbuf.
func (m *Mbuf) Pool() *Mempool {
	return m.pool
}

// Data returns packet bytes.
func (m *Mbuf) Data() []byte {
	return m.buf[m.dataOff : m.dataOff+m.dataLen]
}

// DataLen returns amount of data in mbuf.
func (m *Mbuf) DataLen() uint {
	return uint(m.dataLen)
}

// Room returns all space from packet start till buffer end.
func (m *Mbuf) Room() []byte {
	return m.buf[m.dataOff:]
}

// Headroom returns number of bytes available for Prepend.
func (m *Mbuf) Headroom() uint {
	return uint(m.dataOff)
}

// SetDataLen sets length of packet data. Returns false if there is
// not enough space.
func (m *Mbuf) SetDataLen(length uint) bool {
	if length > uint(len(m.buf))-uint(m.dataOff) {
		return false
	}
	m.dataLen = uint16(length)
	return true
}

// WriteData copies data to mbuf and sets its length.
func (m *Mbuf) WriteData(data []byte) bool {
	if !m.SetDataLen(uint(len(data))) {
		return false
	}
	copy(m.Data(), data)
	return true
}

// Prepend prepends length bytes to mbuf data area.
func (m *Mbuf) Prepend(length uint) bool {
	if length > uint(m.dataOff) {
		return false
	}
	m.dataOff -= uint16(length)
	m.dataLen += uint16(length)
	return true
}

// Append appends length bytes to mbuf.
func (m *Mbuf) Append(length uint) bool {
	return m.SetDataLen(uint(m.dataLen) + length)
}

// Adj removes length bytes at mbuf beginning.
func (m *Mbuf) Adj(length uint) bool {
	if length > uint(m.dataLen) {
		return false
	}
	m.dataOff += uint16(length)
	m.dataLen -= uint16(length)
	return true
}

// Trim removes length bytes at the mbuf end.
func (m *Mbuf) Trim(length uint) bool {
	if length > uint(m.dataLen) {
		return false
	}
	m.dataLen -= uint16(length)
	return true
}

func (m *Mbuf) reset() {
	m.dataOff = uint16(m.pool.headroom)
	m.dataLen = 0
}

// Mempool is a pool of mbufs of equal size. Free mbufs are kept in a
// lock-free ring, so allocation and release may happen at any core.
type Mempool struct {
	name     string
	headroom uint
	dataRoom uint
	mbufs    []Mbuf
	free     *Ring
}

// CreateMempool creates and returns a new memory pool with number of
// mbufs each having headroom and dataRoom bytes.
func CreateMempool(name string, number, headroom, dataRoom uint) (*Mempool, error) {
	if number == 0 {
		return nil, common.WrapWithNFError(nil, "mempool "+name+" can't be empty", common.BadArgument)
	}
	if headroom+dataRoom > 1<<16-1 {
		return nil, common.WrapWithNFError(nil, fmt.Sprintf("mempool %s: mbuf size %d is too big", name, headroom+dataRoom), common.BadArgument)
	}
	free, err := NewRing(name+"-free", number)
	if err != nil {
		return nil, err
	}
	mp := &Mempool{
		name:     name,
		headroom: headroom,
		dataRoom: dataRoom,
		mbufs:    make([]Mbuf, number),
		free:     free,
	}
	mbufSize := headroom + dataRoom
	memory := make([]byte, number*mbufSize)
	all := make([]*Mbuf, number)
	for i := range mp.mbufs {
		m := &mp.mbufs[i]
		m.pool = mp
		m.buf = memory[uint(i)*mbufSize : uint(i+1)*mbufSize : uint(i+1)*mbufSize]
		m.reset()
		all[i] = m
	}
	free.EnqueueBurst(all)
	common.LogDebug(common.Initialization, "Created mempool", name, "with", number, "mbufs")
	return mp, nil
}

// Name returns mempool name.
func (mp *Mempool) Name() string {
	return mp.name
}

// Capacity returns total number of mbufs in pool.
func (mp *Mempool) Capacity() uint {
	return uint(len(mp.mbufs))
}

// Available returns number of free mbufs.
func (mp *Mempool) Available() uint {
	return mp.free.Count()
}

// DataRoom returns size of data area of every mbuf.
func (mp *Mempool) DataRoom() uint {
	return mp.dataRoom
}

// Alloc takes one mbuf from pool. Returns nil if pool is exhausted.
func (mp *Mempool) Alloc() *Mbuf {
	var one [1]*Mbuf
	if mp.free.DequeueBurst(one[:]) == 0 {
		return nil
	}
	atomic.StoreInt32(&one[0].refcnt, 1)
	return one[0]
}

// AllocBulk fills mbs with allocated mbufs. Returns number of
// allocated mbufs, it is less than len(mbs) only if pool is exhausted.
func (mp *Mempool) AllocBulk(mbs []*Mbuf) uint {
	n := mp.free.DequeueBurst(mbs)
	for _, m := range mbs[:n] {
		atomic.StoreInt32(&m.refcnt, 1)
	}
	return n
}

func (mp *Mempool) put(m *Mbuf) {
	m.reset()
	var one = [1]*Mbuf{m}
	mp.free.EnqueueBurst(one[:])
}

// ReportState prints used and free space of mempool.
func (mp *Mempool) ReportState() {
	common.LogDebug(common.Debug, "Mempool", mp.name, "used:", mp.Capacity()-mp.Available(), "free:", mp.Available())
}
