// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package port

import (
	"github.com/intel-go/nff-bricks/allocators"
	"github.com/intel-go/nff-bricks/low"
	"github.com/intel-go/nff-bricks/types"
)

// Aligned keeps queue endpoint E at its own cache line and forwards
// receive, transmit and identity capabilities to it. Copies of Aligned
// share the same endpoint.
type Aligned[E any, Q interface {
	*E
	Queue
}] struct {
	allocators.CacheAligned[E]
}

// AlignedPortQueue is a cache aligned driver backed queue pair.
type AlignedPortQueue = Aligned[PortQueue, *PortQueue]

// AlignedVirtualQueue is a cache aligned ring backed queue pair.
type AlignedVirtualQueue = Aligned[VirtualQueue, *VirtualQueue]

// Align moves endpoint to cache aligned storage.
func Align[E any, Q interface {
	*E
	Queue
}](e E) Aligned[E, Q] {
	return Aligned[E, Q]{allocators.Allocate(e)}
}

func (a Aligned[E, Q]) queue() Q {
	return Q(a.Get())
}

// Recv forwards to endpoint.
func (a Aligned[E, Q]) Recv(pkts []*low.Mbuf) (uint, error) {
	return a.queue().Recv(pkts)
}

// Send forwards to endpoint.
func (a Aligned[E, Q]) Send(pkts []*low.Mbuf) (uint, error) {
	return a.queue().Send(pkts)
}

// MACAddress forwards to endpoint.
func (a Aligned[E, Q]) MACAddress() types.MACAddress {
	return a.queue().MACAddress()
}

func (a Aligned[E, Q]) String() string {
	return a.queue().String()
}

// Clone returns one more reference to the same endpoint.
func (a Aligned[E, Q]) Clone() Aligned[E, Q] {
	return Aligned[E, Q]{a.CacheAligned.Clone()}
}

// Endpoint returns pointer to wrapped endpoint.
func (a Aligned[E, Q]) Endpoint() Q {
	return a.queue()
}
