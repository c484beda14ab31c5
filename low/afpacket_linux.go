// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package low

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/types"
)

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// RawSocketPort is a driver for kernel network interface which uses one
// non-blocking AF_PACKET socket per queue. Multiple queues of the same
// interface form fanout group, kernel distributes incoming frames
// between them by flow hash.
type RawSocketPort struct {
	link Link
	fds  []int
	pool *Mempool
	sll  unix.SockaddrLinklayer
}

// OpenRawSocketPort opens AF_PACKET sockets for interface ifname. The
// interface is brought up and switched to promiscuous mode.
func OpenRawSocketPort(ifname string, queues int, pool *Mempool) (*RawSocketPort, error) {
	if queues <= 0 {
		return nil, common.WrapWithNFError(nil, "interface "+ifname+" needs at least one queue", common.PortHasNoQueues)
	}
	if err := SetLinkUp(ifname, true); err != nil {
		return nil, err
	}
	link, err := LookupLink(ifname)
	if err != nil {
		return nil, err
	}
	p := &RawSocketPort{
		link: link,
		pool: pool,
		sll: unix.SockaddrLinklayer{
			Protocol: htons(unix.ETH_P_ALL),
			Ifindex:  link.Index,
		},
	}
	fanoutID := (os.Getpid() ^ link.Index) & 0xffff
	for q := 0; q < queues; q++ {
		fd, err := p.openSocket(q, queues, fanoutID)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.fds = append(p.fds, fd)
	}
	common.LogDebug(common.Initialization, "Opened", queues, "AF_PACKET queues at", ifname, link.MAC, "MTU", link.MTU)
	return p, nil
}

func (p *RawSocketPort) openSocket(q, queues, fanoutID int) (int, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return -1, common.WrapWithNFError(err, "can't open packet socket for "+p.link.Name, common.FailToInitPort)
	}
	sll := p.sll
	if err := unix.Bind(fd, &sll); err != nil {
		unix.Close(fd)
		return -1, common.WrapWithNFError(err, "can't bind packet socket to "+p.link.Name, common.FailToInitPort)
	}
	if queues > 1 {
		arg := fanoutID | unix.PACKET_FANOUT_HASH<<16
		if err := unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_FANOUT, arg); err != nil {
			unix.Close(fd)
			return -1, common.WrapWithNFError(err, "can't join fanout group for queue "+strconv.Itoa(q)+" of "+p.link.Name, common.FailToInitPort)
		}
	}
	return fd, nil
}

// Name returns interface name.
func (p *RawSocketPort) Name() string {
	return p.link.Name
}

// MACAddress returns interface hardware address.
func (p *RawSocketPort) MACAddress() types.MACAddress {
	return p.link.MAC
}

// Queues returns number of opened queues.
func (p *RawSocketPort) Queues() int {
	return len(p.fds)
}

// RecvBurst reads up to len(pkts) frames from queue q without waiting.
// Frames sent by this host are skipped.
func (p *RawSocketPort) RecvBurst(q int, pkts []*Mbuf) uint {
	fd := p.fds[q]
	var n uint
	for n < uint(len(pkts)) {
		m := p.pool.Alloc()
		if m == nil {
			break
		}
		length, from, err := unix.Recvfrom(fd, m.Room(), unix.MSG_DONTWAIT|unix.MSG_TRUNC)
		if err != nil {
			m.Release()
			if err != unix.EAGAIN && err != unix.EINTR {
				common.LogDebug(common.Verbose, "Receive from", p.link.Name, "failed:", err)
			}
			break
		}
		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			m.Release()
			continue
		}
		if !m.SetDataLen(uint(length)) {
			common.LogDrop(common.Verbose, "Frame of", length, "bytes doesn't fit mbuf at", p.link.Name)
			m.Release()
			continue
		}
		pkts[n] = m
		n++
	}
	return n
}

// SendBurst transmits frames from pkts at queue q. Transmitted mbufs are
// released. Returns number of transmitted frames which are pkts[:n].
func (p *RawSocketPort) SendBurst(q int, pkts []*Mbuf) uint {
	fd := p.fds[q]
	var n uint
	for _, m := range pkts {
		sll := p.sll
		if err := unix.Sendto(fd, m.Data(), unix.MSG_DONTWAIT, &sll); err != nil {
			if err != unix.EAGAIN && err != unix.ENOBUFS {
				common.LogDebug(common.Verbose, "Send to", p.link.Name, "failed:", err)
			}
			break
		}
		m.Release()
		n++
	}
	return n
}

// Close closes all sockets of port.
func (p *RawSocketPort) Close() error {
	var first error
	for _, fd := range p.fds {
		if err := unix.Close(fd); err != nil && first == nil {
			first = err
		}
	}
	p.fds = nil
	return first
}
