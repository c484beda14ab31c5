// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package packet provides zero-copy views of frames stored in mbufs and
// functionality for fast parsing of their headers.
// The following header types are supported:
//	* L2 Ethernet
//	* L3 IPv4
//	* L4 UDP
//
// Packet parsing
//
// Parsing functions check that frame is long enough for requested
// header and that previous header announces requested protocol. After
// successful parsing header pointers point directly into mbuf memory,
// so changing header fields changes the frame. Failed parsing returns
// error with common.ParseErr code, such frames are dropped by flow
// pipelines.
//
// Ownership
//
// Packet is a view which is owned by pipeline batch slot. It is
// attached to one mbuf at a time and is reused for the next frame.
// Transform functions must not keep Packet or its headers after they
// return.
package packet

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/low"
	"github.com/intel-go/nff-bricks/types"
)

// EtherHdr L2 header from DPDK: lib/librte_ether/rte_ether.h
type EtherHdr struct {
	DAddr     types.MACAddress // Destination address
	SAddr     types.MACAddress // Source address
	EtherType uint16           // Frame type
}

// SwapAddresses exchanges source and destination addresses.
func (hdr *EtherHdr) SwapAddresses() {
	hdr.DAddr, hdr.SAddr = hdr.SAddr, hdr.DAddr
}

func (hdr *EtherHdr) String() string {
	return fmt.Sprintf(`L2 protocol: Ethernet, EtherType: 0x%04x
Ethernet Source: %s
Ethernet Destination: %s
`, SwapBytesUint16(hdr.EtherType), hdr.SAddr, hdr.DAddr)
}

// IPv4Hdr L3 header from DPDK: lib/librte_net/rte_ip.h. Addresses are
// kept as byte arrays so header has no alignment requirements above
// two bytes.
type IPv4Hdr struct {
	VersionIhl     uint8                   // version and header length
	TypeOfService  uint8                   // type of service
	TotalLength    uint16                  // length of packet
	PacketID       uint16                  // packet ID
	FragmentOffset uint16                  // fragmentation offset
	TimeToLive     uint8                   // time to live
	NextProtoID    uint8                   // protocol ID
	HdrChecksum    uint16                  // header checksum
	SrcAddr        [types.IPv4AddrLen]byte // source address
	DstAddr        [types.IPv4AddrLen]byte // destination address
}

// HeaderLen returns header length in bytes taken from Ihl field.
func (hdr *IPv4Hdr) HeaderLen() uint {
	return uint(hdr.VersionIhl&0x0f) << 2
}

func (hdr *IPv4Hdr) String() string {
	return fmt.Sprintf(`    L3 protocol: IPv4, TTL: %d
    IPv4 Source: %s
    IPv4 Destination: %s
`, hdr.TimeToLive, types.IPv4ArrayToString(hdr.SrcAddr), types.IPv4ArrayToString(hdr.DstAddr))
}

// UDPHdr L4 header from DPDK: lib/librte_net/rte_udp.h
type UDPHdr struct {
	SrcPort    uint16 // UDP source port
	DstPort    uint16 // UDP destination port
	DgramLen   uint16 // UDP datagram length
	DgramCksum uint16 // UDP datagram checksum
}

func (hdr *UDPHdr) String() string {
	return fmt.Sprintf(`        L4 protocol: UDP
        L4 Source: %d
        L4 Destination: %d
`, SwapBytesUint16(hdr.SrcPort), SwapBytesUint16(hdr.DstPort))
}

var (
	errShortEther  = common.NewParseError("frame is shorter than Ethernet header")
	errNotIPv4     = common.NewParseError("EtherType isn't IPv4")
	errShortIPv4   = common.NewParseError("frame is shorter than IPv4 header")
	errIPv4Version = common.NewParseError("IPv4 header has wrong version")
	errIPv4Ihl     = common.NewParseError("IPv4 header has invalid length")
	errNotUDP      = common.NewParseError("IPv4 protocol isn't UDP")
	errShortUDP    = common.NewParseError("frame is shorter than UDP header")
)

// Packet is a view of one mbuf with pointers to its parsed headers.
// Pointers are nil until corresponding header is parsed.
type Packet struct {
	Ether *EtherHdr // Pointer to L2 header in mbuf
	IPv4  *IPv4Hdr  // Pointer to L3 header in mbuf
	UDP   *UDPHdr   // Pointer to L4 header in mbuf

	mbuf *low.Mbuf
	// Offset of the first byte after parsed headers.
	dataOff uint
}

// NewPacket creates view attached to mbuf.
func NewPacket(m *low.Mbuf) *Packet {
	p := &Packet{}
	p.Attach(m)
	return p
}

// Attach clears parsed headers and points view to mbuf m.
func (p *Packet) Attach(m *low.Mbuf) {
	*p = Packet{mbuf: m}
}

// Mbuf returns buffer which is viewed by packet.
func (p *Packet) Mbuf() *low.Mbuf {
	return p.mbuf
}

// Bytes returns raw frame bytes.
func (p *Packet) Bytes() []byte {
	return p.mbuf.Data()
}

// Len returns frame length.
func (p *Packet) Len() uint {
	return p.mbuf.DataLen()
}

// Data returns bytes after the last parsed header.
func (p *Packet) Data() []byte {
	return p.mbuf.Data()[p.dataOff:]
}

// AssertExclusive checks that packet's mbuf has exactly one owner. It
// panics with common.RefCntViolation error otherwise: transforms change
// frame in place and shared frame would be changed for other owners.
func (p *Packet) AssertExclusive() {
	if c := p.mbuf.RefCnt(); c != 1 {
		panic(common.WrapWithNFError(nil, fmt.Sprintf("packet is handed to transform with reference count %d", c), common.RefCntViolation))
	}
}

// ParseEthernet sets pointer to Ethernet header.
func (p *Packet) ParseEthernet() (*EtherHdr, error) {
	if p.Ether != nil {
		return p.Ether, nil
	}
	data := p.mbuf.Data()
	if len(data) < types.EtherLen {
		return nil, errShortEther
	}
	p.Ether = (*EtherHdr)(unsafe.Pointer(&data[0]))
	p.dataOff = types.EtherLen
	return p.Ether, nil
}

// ParseIPv4 sets pointers to Ethernet and IPv4 headers. Frame must have
// IPv4 EtherType, correct version and header length which fits frame.
func (p *Packet) ParseIPv4() (*IPv4Hdr, error) {
	if p.IPv4 != nil {
		return p.IPv4, nil
	}
	ether, err := p.ParseEthernet()
	if err != nil {
		return nil, err
	}
	if ether.EtherType != SwapBytesUint16(types.IPV4Number) {
		return nil, errNotIPv4
	}
	data := p.mbuf.Data()
	if len(data) < types.EtherLen+types.IPv4MinLen {
		return nil, errShortIPv4
	}
	hdr := (*IPv4Hdr)(unsafe.Pointer(&data[types.EtherLen]))
	if hdr.VersionIhl>>4 != types.IPv4Version {
		return nil, errIPv4Version
	}
	hlen := hdr.HeaderLen()
	if hlen < types.IPv4MinLen || types.EtherLen+hlen > uint(len(data)) {
		return nil, errIPv4Ihl
	}
	p.IPv4 = hdr
	p.dataOff = types.EtherLen + hlen
	return hdr, nil
}

// ParseUDP sets pointers to Ethernet, IPv4 and UDP headers.
func (p *Packet) ParseUDP() (*UDPHdr, error) {
	if p.UDP != nil {
		return p.UDP, nil
	}
	ipv4, err := p.ParseIPv4()
	if err != nil {
		return nil, err
	}
	if ipv4.NextProtoID != types.UDPNumber {
		return nil, errNotUDP
	}
	data := p.mbuf.Data()
	offset := types.EtherLen + ipv4.HeaderLen()
	if uint(len(data)) < offset+types.UDPLen {
		return nil, errShortUDP
	}
	p.UDP = (*UDPHdr)(unsafe.Pointer(&data[offset]))
	p.dataOff = offset + types.UDPLen
	return p.UDP, nil
}

// Decode parses copy of the frame with gopacket. It is slow and is
// intended for diagnostics and dumps.
func (p *Packet) Decode() gopacket.Packet {
	return gopacket.NewPacket(p.mbuf.Data(), layers.LayerTypeEthernet, gopacket.Default)
}

func (p *Packet) String() string {
	var b strings.Builder
	if p.Ether != nil {
		b.WriteString(p.Ether.String())
	}
	if p.IPv4 != nil {
		b.WriteString(p.IPv4.String())
	}
	if p.UDP != nil {
		b.WriteString(p.UDP.String())
	}
	if b.Len() == 0 {
		fmt.Fprintf(&b, "Unparsed packet of %d bytes\n", p.Len())
	}
	return b.String()
}

// FromBytes allocates mbuf from pool and copies data into it.
func FromBytes(pool *low.Mempool, data []byte) (*Packet, error) {
	m := pool.Alloc()
	if m == nil {
		return nil, common.WrapWithNFError(nil, "mempool "+pool.Name()+" is exhausted", common.AllocMbufErr)
	}
	if !m.WriteData(data) {
		m.Release()
		return nil, common.WrapWithNFError(nil, fmt.Sprintf("%d bytes don't fit mbuf", len(data)), common.BadArgument)
	}
	return NewPacket(m), nil
}

// SwapBytesUint16 swaps uint16 in Little Endian and Big Endian
func SwapBytesUint16(x uint16) uint16 {
	return x<<8 | x>>8
}

// SwapBytesUint32 swaps uint32 in Little Endian and Big Endian
func SwapBytesUint32(x uint32) uint32 {
	return ((x & 0x000000ff) << 24) | ((x & 0x0000ff00) << 8) | ((x & 0x00ff0000) >> 8) | ((x & 0xff000000) >> 24)
}
