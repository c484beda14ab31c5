// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package port

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/intel-go/nff-bricks/allocators"
	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/low"
	"github.com/intel-go/nff-bricks/types"
)

// VirtualPort is an in-memory port. Every queue has receive ring and
// transmit ring. Frames are put to receive rings by Inject or by other
// pipelines and are taken from transmit rings by Drain. In loopback mode
// transmit ring of a queue is its receive ring.
type VirtualPort struct {
	name     string
	mac      types.MACAddress
	pool     *low.Mempool
	loopback bool
	rx       []*low.Ring
	tx       []*low.Ring
	stats    []allocators.CacheAligned[QueueStats]
}

// DefaultRingSize is used for virtual port rings if size isn't set.
const DefaultRingSize = 1024

// VirtualPortConfig describes virtual port. Empty Name and zero MAC are
// generated.
type VirtualPortConfig struct {
	Name     string
	MAC      types.MACAddress
	Queues   int
	RingSize uint
	Loopback bool
}

// NewVirtualPort creates virtual port. Pool is used by Inject.
func NewVirtualPort(cfg VirtualPortConfig, pool *low.Mempool) (*VirtualPort, error) {
	if cfg.Queues <= 0 {
		return nil, common.WrapWithNFError(nil, "virtual port "+cfg.Name+" has no queues", common.PortHasNoQueues)
	}
	if cfg.RingSize == 0 {
		cfg.RingSize = DefaultRingSize
	}
	id := uuid.New()
	if cfg.Name == "" {
		cfg.Name = "virtual-" + id.String()[:8]
	}
	if cfg.MAC.IsZero() {
		copy(cfg.MAC[:], id[:types.EtherAddrLen])
		// Locally administered unicast.
		cfg.MAC[0] = cfg.MAC[0]&^0x01 | 0x02
	}
	p := &VirtualPort{
		name:     cfg.Name,
		mac:      cfg.MAC,
		pool:     pool,
		loopback: cfg.Loopback,
		rx:       make([]*low.Ring, cfg.Queues),
		tx:       make([]*low.Ring, cfg.Queues),
		stats:    newQueueStats(cfg.Queues),
	}
	for q := 0; q < cfg.Queues; q++ {
		var err error
		p.rx[q], err = low.NewRing(cfg.Name+"-rx"+strconv.Itoa(q), cfg.RingSize)
		if err != nil {
			return nil, err
		}
		if cfg.Loopback {
			p.tx[q] = p.rx[q]
			continue
		}
		p.tx[q], err = low.NewRing(cfg.Name+"-tx"+strconv.Itoa(q), cfg.RingSize)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name returns port name.
func (p *VirtualPort) Name() string {
	return p.name
}

// MACAddress returns port address.
func (p *VirtualPort) MACAddress() types.MACAddress {
	return p.mac
}

// Queues returns number of queue pairs.
func (p *VirtualPort) Queues() int {
	return len(p.rx)
}

// Stats returns number of frames received and transmitted by queue q.
func (p *VirtualPort) Stats(q int) (rx, tx uint64) {
	return loadStats(p.stats, q)
}

func (p *VirtualPort) checkQueue(q int) error {
	if q < 0 || q >= len(p.rx) {
		return common.WrapWithNFError(nil, fmt.Sprintf("virtual port %s has no queue %d", p.name, q), common.WrongPort)
	}
	return nil
}

// NewQueue creates cache aligned endpoint of queue q.
func (p *VirtualPort) NewQueue(q int) (AlignedVirtualQueue, error) {
	if err := p.checkQueue(q); err != nil {
		return AlignedVirtualQueue{}, err
	}
	return Align[VirtualQueue](VirtualQueue{
		port:  p,
		q:     q,
		stats: p.stats[q].Get(),
	}), nil
}

// Queue returns endpoint of queue q.
func (p *VirtualPort) Queue(q int) (Queue, error) {
	vq, err := p.NewQueue(q)
	if err != nil {
		return nil, err
	}
	return vq, nil
}

// Inject copies frames to new mbufs and puts them to receive ring of
// queue q. Returns number of injected frames, the rest didn't fit ring
// or pool. Nothing is injected if any frame doesn't fit mbuf.
func (p *VirtualPort) Inject(q int, frames ...[]byte) (uint, error) {
	if err := p.checkQueue(q); err != nil {
		return 0, err
	}
	if p.pool == nil {
		return 0, common.WrapWithNFError(nil, "virtual port "+p.name+" has no mempool", common.AllocMbufErr)
	}
	mbufs := make([]*low.Mbuf, 0, len(frames))
	for _, f := range frames {
		m := p.pool.Alloc()
		if m == nil {
			break
		}
		if !m.WriteData(f) {
			m.Release()
			for _, m := range mbufs {
				m.Release()
			}
			return 0, common.WrapWithNFError(nil, fmt.Sprintf("%d bytes frame doesn't fit mbuf", len(f)), common.BadArgument)
		}
		mbufs = append(mbufs, m)
	}
	n := p.rx[q].EnqueueBurst(mbufs)
	for _, m := range mbufs[n:] {
		m.Release()
	}
	return n, nil
}

// Drain takes up to max mbufs from transmit ring of queue q. Caller
// owns returned mbufs.
func (p *VirtualPort) Drain(q int, max int) []*low.Mbuf {
	if p.checkQueue(q) != nil || max <= 0 {
		return nil
	}
	mbufs := make([]*low.Mbuf, max)
	n := p.tx[q].DequeueBurst(mbufs)
	return mbufs[:n]
}

// Close releases all frames left in rings.
func (p *VirtualPort) Close() error {
	buf := make([]*low.Mbuf, 64)
	release := func(r *low.Ring) {
		for {
			n := r.DequeueBurst(buf)
			if n == 0 {
				return
			}
			for _, m := range buf[:n] {
				m.Release()
			}
		}
	}
	for q := range p.rx {
		release(p.rx[q])
		if !p.loopback {
			release(p.tx[q])
		}
	}
	return nil
}

func (p *VirtualPort) String() string {
	return fmt.Sprintf("%s(%s, %d queues)", p.name, p.mac, len(p.rx))
}

// VirtualQueue is a queue pair of virtual port.
type VirtualQueue struct {
	port  *VirtualPort
	q     int
	stats *QueueStats
}

// Recv takes burst from receive ring.
func (vq *VirtualQueue) Recv(pkts []*low.Mbuf) (uint, error) {
	n := vq.port.rx[vq.q].DequeueBurst(pkts)
	vq.stats.addRx(n)
	return n, nil
}

// Send puts burst to transmit ring. Mbufs which don't fit the ring are
// left to caller.
func (vq *VirtualQueue) Send(pkts []*low.Mbuf) (uint, error) {
	n := vq.port.tx[vq.q].EnqueueBurst(pkts)
	vq.stats.addTx(n)
	moved(pkts, n)
	return n, nil
}

// MACAddress returns port address.
func (vq *VirtualQueue) MACAddress() types.MACAddress {
	return vq.port.mac
}

// Port returns virtual port of queue.
func (vq *VirtualQueue) Port() *VirtualPort {
	return vq.port
}

func (vq *VirtualQueue) String() string {
	return vq.port.name + ":" + strconv.Itoa(vq.q)
}
