// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package low

import (
	"runtime"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/types"
)

// Link describes kernel network interface.
type Link struct {
	Name  string
	Index int
	MAC   types.MACAddress
	MTU   int
}

var errNoPacketSockets = common.WrapWithNFError(nil, "raw packet sockets are not supported on "+runtime.GOOS, common.FailToInitPort)

// LookupLink finds kernel network interface by name.
func LookupLink(name string) (Link, error) {
	return Link{}, errNoPacketSockets
}

// SetLinkUp brings interface up.
func SetLinkUp(name string, promisc bool) error {
	return errNoPacketSockets
}

// RawSocketPort is available only on Linux.
type RawSocketPort struct{}

// OpenRawSocketPort always fails on this platform.
func OpenRawSocketPort(ifname string, queues int, pool *Mempool) (*RawSocketPort, error) {
	return nil, errNoPacketSockets
}

func (p *RawSocketPort) Name() string                       { return "" }
func (p *RawSocketPort) MACAddress() types.MACAddress       { return types.MACAddress{} }
func (p *RawSocketPort) Queues() int                        { return 0 }
func (p *RawSocketPort) RecvBurst(q int, pkts []*Mbuf) uint { return 0 }
func (p *RawSocketPort) SendBurst(q int, pkts []*Mbuf) uint { return 0 }
func (p *RawSocketPort) Close() error                       { return nil }
