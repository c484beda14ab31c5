// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package port provides queue endpoints which pipelines receive frames
// from and transmit frames to. Every endpoint is described by small
// capability interfaces, so pipelines work the same way with driver
// backed port queues and with in-memory virtual queues.
package port

import (
	"fmt"

	"github.com/intel-go/nff-bricks/low"
	"github.com/intel-go/nff-bricks/types"
)

// PacketRx is a receive endpoint.
type PacketRx interface {
	// Recv fills pkts[:n] with received mbufs without waiting. Caller
	// owns returned mbufs. Zero n means nothing is available now.
	Recv(pkts []*low.Mbuf) (uint, error)
}

// PacketTx is a transmit endpoint.
type PacketTx interface {
	// Send takes ownership of pkts[:n] and sets these slots to nil.
	// Mbufs in pkts[n:] weren't accepted and still belong to caller.
	Send(pkts []*low.Mbuf) (uint, error)
}

// PortInfo gives identity of endpoint's port.
type PortInfo interface {
	MACAddress() types.MACAddress
}

// Queue is an endpoint which can both receive and transmit.
type Queue interface {
	PacketRx
	PacketTx
	PortInfo
	fmt.Stringer
}

// Device is a port which queue pairs are handed out to cores.
// Implemented by Port and VirtualPort.
type Device interface {
	Name() string
	MACAddress() types.MACAddress
	// Queues returns number of queue pairs.
	Queues() int
	// Queue returns cache aligned endpoint of queue pair q.
	Queue(q int) (Queue, error)
	Stats(q int) (rx, tx uint64)
	Close() error
	fmt.Stringer
}

// Driver moves frames between mbufs and device queues. Implemented by
// low.RawSocketPort and low.PcapPort.
type Driver interface {
	Name() string
	MACAddress() types.MACAddress
	// RecvBurst fills pkts[:n] without waiting.
	RecvBurst(q int, pkts []*low.Mbuf) uint
	// SendBurst transmits and releases pkts[:n].
	SendBurst(q int, pkts []*low.Mbuf) uint
	Close() error
}

// moved clears slots of mbufs which ownership was transferred.
func moved(pkts []*low.Mbuf, n uint) {
	for i := range pkts[:n] {
		pkts[i] = nil
	}
}
