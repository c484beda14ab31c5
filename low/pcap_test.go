// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package low

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func udpFrame(t *testing.T, srcPort uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: 53}
	udp.SetNetworkLayerForChecksum(ip)
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload("payload")); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func pcapStream(t *testing.T, frames ...[]byte) *bytes.Buffer {
	t.Helper()
	var b bytes.Buffer
	w := pcapgo.NewWriter(&b)
	if err := w.WriteFileHeader(PcapSnapLen, layers.LinkTypeEthernet); err != nil {
		t.Fatal(err)
	}
	for _, f := range frames {
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(0, 0), CaptureLength: len(f), Length: len(f)}
		if err := w.WritePacket(ci, f); err != nil {
			t.Fatal(err)
		}
	}
	return &b
}

func TestPcapPortDistributesFrames(t *testing.T) {
	mp := getMempoolForTest(t, 16)
	frames := [][]byte{udpFrame(t, 1), udpFrame(t, 2), udpFrame(t, 3)}
	p, err := NewPcapPortFromStreams("pcap0", pcapStream(t, frames...), nil, 2, false, mp)
	if err != nil {
		t.Fatal(err)
	}
	if p.Pending(0) != 2 || p.Pending(1) != 1 {
		t.Fatalf("frames per queue: %d and %d", p.Pending(0), p.Pending(1))
	}
	pkts := make([]*Mbuf, 4)
	n := p.RecvBurst(0, pkts)
	if n != 2 {
		t.Fatalf("RecvBurst(0): got %d, want 2", n)
	}
	if !bytes.Equal(pkts[0].Data(), frames[0]) || !bytes.Equal(pkts[1].Data(), frames[2]) {
		t.Errorf("queue 0 got wrong frames")
	}
	if n := p.RecvBurst(0, pkts[2:]); n != 0 {
		t.Errorf("RecvBurst from drained queue: got %d", n)
	}
	for _, m := range pkts[:n] {
		m.Release()
	}
}

func TestPcapPortRepeat(t *testing.T) {
	mp := getMempoolForTest(t, 16)
	frame := udpFrame(t, 7)
	p, err := NewPcapPortFromStreams("pcap0", pcapStream(t, frame), nil, 1, true, mp)
	if err != nil {
		t.Fatal(err)
	}
	pkts := make([]*Mbuf, 5)
	if n := p.RecvBurst(0, pkts); n != 5 {
		t.Fatalf("repeating RecvBurst: got %d, want 5", n)
	}
	for _, m := range pkts {
		if !bytes.Equal(m.Data(), frame) {
			t.Errorf("repeated frame differs")
		}
		m.Release()
	}
}

func TestPcapPortWritesFrames(t *testing.T) {
	mp := getMempoolForTest(t, 4)
	var out bytes.Buffer
	p, err := NewPcapPortFromStreams("pcap0", nil, nopWriteCloser{&out}, 1, false, mp)
	if err != nil {
		t.Fatal(err)
	}
	frames := [][]byte{udpFrame(t, 1), udpFrame(t, 2)}
	pkts := make([]*Mbuf, len(frames))
	for i, f := range frames {
		pkts[i] = mp.Alloc()
		pkts[i].WriteData(f)
	}
	if n := p.SendBurst(0, pkts); n != 2 {
		t.Fatalf("SendBurst: got %d, want 2", n)
	}
	if mp.Available() != 4 {
		t.Errorf("sent mbufs weren't released: %d available", mp.Available())
	}
	r, err := pcapgo.NewReader(&out)
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range frames {
		data, _, err := r.ReadPacketData()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(data, f) {
			t.Errorf("frame %d differs", i)
		}
	}
	if p.RecvBurst(0, pkts) != 0 {
		t.Errorf("port without input received frames")
	}
}

func TestOpenPcapPortFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pcap")
	out := filepath.Join(dir, "out.pcap")
	if err := os.WriteFile(in, pcapStream(t, udpFrame(t, 1)).Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	mp := getMempoolForTest(t, 4)
	p, err := OpenPcapPort("file", in, out, 1, false, mp)
	if err != nil {
		t.Fatal(err)
	}
	pkts := make([]*Mbuf, 1)
	if p.RecvBurst(0, pkts) != 1 {
		t.Fatal("frame wasn't read from file")
	}
	p.SendBurst(0, pkts)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if st.Size() <= 24 {
		t.Errorf("output file has no frames: %d bytes", st.Size())
	}
	if _, err := OpenPcapPort("missing", filepath.Join(dir, "none.pcap"), "", 1, false, mp); err == nil {
		t.Error("missing input file accepted")
	}
}
