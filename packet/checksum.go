// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package packet

import (
	"encoding/binary"

	"github.com/intel-go/nff-bricks/types"
)

// calculateDataChecksum sums data as big endian uint16 words. Odd last
// byte is padded with zero. Returned is checksum with carry.
func calculateDataChecksum(data []byte) uint32 {
	var sum uint32
	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i:]))
	}
	if len(data)&1 != 0 {
		sum += uint32(data[len(data)-1]) << 8
	}
	return sum
}

func reduceChecksum(sum uint32) uint16 {
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return uint16(sum)
}

func calculateIPv4AddrChecksum(hdr *IPv4Hdr) uint32 {
	return uint32(binary.BigEndian.Uint16(hdr.SrcAddr[0:])) +
		uint32(binary.BigEndian.Uint16(hdr.SrcAddr[2:])) +
		uint32(binary.BigEndian.Uint16(hdr.DstAddr[0:])) +
		uint32(binary.BigEndian.Uint16(hdr.DstAddr[2:]))
}

// CalculateIPv4Checksum calculates checksum of IPv4 header of parsed
// packet including options. Returned value is in host byte order,
// HdrChecksum field itself is skipped.
func CalculateIPv4Checksum(p *Packet) uint16 {
	hdr := p.IPv4
	raw := p.Bytes()[types.EtherLen : types.EtherLen+hdr.HeaderLen()]
	sum := calculateDataChecksum(raw) - uint32(SwapBytesUint16(hdr.HdrChecksum))
	return ^reduceChecksum(sum)
}

// CalculateIPv4UDPChecksum calculates UDP checksum for case if L3
// protocol is IPv4. DgramCksum field itself is skipped.
func CalculateIPv4UDPChecksum(p *Packet) uint16 {
	hdr, udp := p.IPv4, p.UDP
	dgramLen := uint(SwapBytesUint16(udp.DgramLen))
	start := types.EtherLen + hdr.HeaderLen()
	end := start + dgramLen
	if end > p.Len() {
		end = p.Len()
	}
	if end < start+types.UDPLen {
		end = start + types.UDPLen
	}
	sum := calculateDataChecksum(p.Bytes()[start:end]) - uint32(SwapBytesUint16(udp.DgramCksum))
	sum += calculateIPv4AddrChecksum(hdr) +
		uint32(hdr.NextProtoID) +
		uint32(dgramLen)
	cksum := ^reduceChecksum(sum)
	if cksum == 0 {
		cksum = 0xffff
	}
	return cksum
}

// UpdateIPv4Checksum recalculates and stores IPv4 header checksum.
func UpdateIPv4Checksum(p *Packet) {
	p.IPv4.HdrChecksum = SwapBytesUint16(CalculateIPv4Checksum(p))
}

// DecrementTTL decrements IPv4 time to live and updates header
// checksum. Returns false if TTL has expired and packet shouldn't be
// forwarded.
func DecrementTTL(p *Packet) bool {
	if p.IPv4.TimeToLive <= 1 {
		return false
	}
	p.IPv4.TimeToLive--
	UpdateIPv4Checksum(p)
	return true
}
