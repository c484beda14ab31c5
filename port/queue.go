// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package port

import (
	"fmt"
	"strconv"

	"github.com/intel-go/nff-bricks/allocators"
	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/low"
	"github.com/intel-go/nff-bricks/types"
)

// Port is a driver backed device with fixed number of receive and
// transmit queues.
type Port struct {
	name   string
	mac    types.MACAddress
	driver Driver
	rxqs   int
	txqs   int
	stats  []allocators.CacheAligned[QueueStats]
}

// NewPort wraps driver into port with rxqs receive and txqs transmit
// queues.
func NewPort(driver Driver, rxqs, txqs int) (*Port, error) {
	if rxqs <= 0 && txqs <= 0 {
		return nil, common.WrapWithNFError(nil, "port "+driver.Name()+" has no queues", common.PortHasNoQueues)
	}
	n := rxqs
	if txqs > n {
		n = txqs
	}
	return &Port{
		name:   driver.Name(),
		mac:    driver.MACAddress(),
		driver: driver,
		rxqs:   rxqs,
		txqs:   txqs,
		stats:  newQueueStats(n),
	}, nil
}

// Name returns port name.
func (p *Port) Name() string {
	return p.name
}

// MACAddress returns port hardware address.
func (p *Port) MACAddress() types.MACAddress {
	return p.mac
}

// RxQueues returns number of receive queues.
func (p *Port) RxQueues() int {
	return p.rxqs
}

// TxQueues returns number of transmit queues.
func (p *Port) TxQueues() int {
	return p.txqs
}

// Queues returns number of queue pairs.
func (p *Port) Queues() int {
	if p.rxqs < p.txqs {
		return p.rxqs
	}
	return p.txqs
}

// Queue returns endpoint of receive and transmit queues q.
func (p *Port) Queue(q int) (Queue, error) {
	pq, err := p.NewQueue(q, q)
	if err != nil {
		return nil, err
	}
	return pq, nil
}

// Driver returns underlying driver.
func (p *Port) Driver() Driver {
	return p.driver
}

// Stats returns number of frames received at receive queue q and
// transmitted at transmit queue q.
func (p *Port) Stats(q int) (rx, tx uint64) {
	return loadStats(p.stats, q)
}

// Close closes port driver.
func (p *Port) Close() error {
	return p.driver.Close()
}

func (p *Port) String() string {
	return fmt.Sprintf("%s(%s, %d rx, %d tx)", p.name, p.mac, p.rxqs, p.txqs)
}

// NewQueue creates cache aligned endpoint of receive queue rxq and
// transmit queue txq.
func (p *Port) NewQueue(rxq, txq int) (AlignedPortQueue, error) {
	if rxq < 0 || rxq >= p.rxqs || txq < 0 || txq >= p.txqs {
		return AlignedPortQueue{}, common.WrapWithNFError(nil,
			fmt.Sprintf("port %s has no queue pair %d/%d", p.name, rxq, txq), common.WrongPort)
	}
	return Align[PortQueue](PortQueue{
		port:    p,
		rxq:     rxq,
		txq:     txq,
		rxStats: p.stats[rxq].Get(),
		txStats: p.stats[txq].Get(),
	}), nil
}

// PortQueue is a receive and transmit queue pair of one port. It is
// immutable after creation.
type PortQueue struct {
	port    *Port
	rxq     int
	txq     int
	rxStats *QueueStats
	txStats *QueueStats
}

// Recv receives burst from driver.
func (pq *PortQueue) Recv(pkts []*low.Mbuf) (uint, error) {
	n := pq.port.driver.RecvBurst(pq.rxq, pkts)
	pq.rxStats.addRx(n)
	return n, nil
}

// Send transmits burst to driver.
func (pq *PortQueue) Send(pkts []*low.Mbuf) (uint, error) {
	n := pq.port.driver.SendBurst(pq.txq, pkts)
	pq.txStats.addTx(n)
	moved(pkts, n)
	return n, nil
}

// MACAddress returns port address.
func (pq *PortQueue) MACAddress() types.MACAddress {
	return pq.port.mac
}

// Port returns port of queue pair.
func (pq *PortQueue) Port() *Port {
	return pq.port
}

// RxQueue returns receive queue index.
func (pq *PortQueue) RxQueue() int {
	return pq.rxq
}

// TxQueue returns transmit queue index.
func (pq *PortQueue) TxQueue() int {
	return pq.txq
}

func (pq *PortQueue) String() string {
	if pq.rxq == pq.txq {
		return pq.port.name + ":" + strconv.Itoa(pq.rxq)
	}
	return fmt.Sprintf("%s:%d/%d", pq.port.name, pq.rxq, pq.txq)
}
