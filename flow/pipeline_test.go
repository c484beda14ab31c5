// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flow

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/low"
	"github.com/intel-go/nff-bricks/packet"
	"github.com/intel-go/nff-bricks/port"
	"github.com/intel-go/nff-bricks/types"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
)

func getMempoolForTest(t *testing.T, number uint) *low.Mempool {
	t.Helper()
	mp, err := low.CreateMempool(t.Name(), number, low.DefaultHeadroom, low.DefaultDataRoom)
	if err != nil {
		t.Fatal(err)
	}
	return mp
}

func udpFrame(t *testing.T, srcPort uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
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

func srcPortOf(t *testing.T, m *low.Mbuf) uint16 {
	t.Helper()
	udp, err := packet.NewPacket(m).ParseUDP()
	if err != nil {
		t.Fatalf("transmitted frame isn't UDP: %v", err)
	}
	return packet.SwapBytesUint16(udp.SrcPort)
}

func newVirtualQueue(t *testing.T, mp *low.Mempool, ringSize uint) (*port.VirtualPort, port.Queue) {
	t.Helper()
	vp, err := port.NewVirtualPort(port.VirtualPortConfig{Name: "vp", Queues: 1, RingSize: ringSize}, mp)
	if err != nil {
		t.Fatal(err)
	}
	q, err := vp.Queue(0)
	if err != nil {
		t.Fatal(err)
	}
	return vp, q
}

func inject(t *testing.T, vp *port.VirtualPort, frames ...[]byte) {
	t.Helper()
	n, err := vp.Inject(0, frames...)
	if err != nil {
		t.Fatal(err)
	}
	if n != uint(len(frames)) {
		t.Fatalf("injected %d frames of %d", n, len(frames))
	}
}

func swapAddresses(p *packet.Packet) error {
	eth, err := p.ParseEthernet()
	if err != nil {
		return err
	}
	eth.SwapAddresses()
	return nil
}

func parseUDP(p *packet.Packet) error {
	_, err := p.ParseUDP()
	return err
}

// limitedTx accepts at most limit mbufs per Send.
type limitedTx struct {
	limit int
	got   []*low.Mbuf
}

func (tx *limitedTx) Send(pkts []*low.Mbuf) (uint, error) {
	n := len(pkts)
	if n > tx.limit {
		n = tx.limit
	}
	for i := 0; i < n; i++ {
		tx.got = append(tx.got, pkts[i])
		pkts[i] = nil
	}
	return uint(n), nil
}

func (tx *limitedTx) release() {
	for _, m := range tx.got {
		m.Release()
	}
	tx.got = nil
}

func TestPipelineSwapsAddresses(t *testing.T) {
	mp := getMempoolForTest(t, 64)
	vp, q := newVirtualQueue(t, mp, 16)
	inject(t, vp, udpFrame(t, 1), udpFrame(t, 2), udpFrame(t, 3))

	p := Receive(q).Map(swapAddresses, "swap").Send(q)
	p.Execute()

	out := vp.Drain(0, 16)
	if len(out) != 3 {
		t.Fatalf("transmitted %d frames, want 3", len(out))
	}
	for i, m := range out {
		eth, err := packet.NewPacket(m).ParseEthernet()
		if err != nil {
			t.Fatal(err)
		}
		if eth.SAddr != types.NetHWAddressToMAC(dstMAC) || eth.DAddr != types.NetHWAddressToMAC(srcMAC) {
			t.Errorf("frame %d: addresses aren't swapped: %v", i, eth)
		}
		if sp := srcPortOf(t, m); sp != uint16(i+1) {
			t.Errorf("frame %d: source port %d, want %d", i, sp, i+1)
		}
		m.Release()
	}
	stats := p.Stats()
	expected := PipelineStats{Received: 3, Sent: 3, Cycles: 1}
	if stats != expected {
		t.Errorf("Stats: got %+v, want %+v", stats, expected)
	}
	if rx, tx := vp.Stats(0); rx != 3 || tx != 3 {
		t.Errorf("queue counters: got %d/%d, want 3/3", rx, tx)
	}
	if mp.Available() != mp.Capacity() {
		t.Errorf("%d mbufs leaked", mp.Capacity()-mp.Available())
	}
}

func TestPipelineDropsMalformed(t *testing.T) {
	mp := getMempoolForTest(t, 64)
	vp, q := newVirtualQueue(t, mp, 16)
	short := udpFrame(t, 2)[:10]
	inject(t, vp, udpFrame(t, 1), short, udpFrame(t, 3), udpFrame(t, 4))

	p := Receive(q).Map(parseUDP).Send(q)
	p.Execute()

	out := vp.Drain(0, 16)
	if len(out) != 3 {
		t.Fatalf("transmitted %d frames, want 3", len(out))
	}
	for i, want := range []uint16{1, 3, 4} {
		if got := srcPortOf(t, out[i]); got != want {
			t.Errorf("frame %d: source port %d, want %d", i, got, want)
		}
		out[i].Release()
	}
	stats := p.Stats()
	if stats.Received != 4 || stats.Sent != 3 || stats.ParseErrors != 1 || stats.TransformErrors != 0 {
		t.Errorf("Stats: got %+v", stats)
	}
	if mp.Available() != mp.Capacity() {
		t.Errorf("%d mbufs leaked", mp.Capacity()-mp.Available())
	}
}

func TestPipelineCountsTransformErrors(t *testing.T) {
	mp := getMempoolForTest(t, 64)
	vp, q := newVirtualQueue(t, mp, 16)
	inject(t, vp, udpFrame(t, 1), udpFrame(t, 2))

	failSecond := func(p *packet.Packet) error {
		udp, err := p.ParseUDP()
		if err != nil {
			return err
		}
		if packet.SwapBytesUint16(udp.SrcPort) == 2 {
			return errors.New("rejected")
		}
		return nil
	}
	p := Receive(q).Map(failSecond).Send(q)
	p.Execute()

	out := vp.Drain(0, 16)
	if len(out) != 1 || srcPortOf(t, out[0]) != 1 {
		t.Fatalf("transmitted %d frames, want only the first one", len(out))
	}
	out[0].Release()
	if stats := p.Stats(); stats.TransformErrors != 1 || stats.ParseErrors != 0 {
		t.Errorf("Stats: got %+v", stats)
	}
}

func TestPipelineTxFullDrops(t *testing.T) {
	const n, accepted = 5, 3
	mp := getMempoolForTest(t, 64)
	vp, q := newVirtualQueue(t, mp, 16)
	for i := 0; i < n; i++ {
		inject(t, vp, udpFrame(t, uint16(i)))
	}
	tx := &limitedTx{limit: accepted}

	p := Receive(q).Map(swapAddresses).Send(tx)
	p.Execute()

	stats := p.Stats()
	if stats.Sent != accepted || stats.TxDropped != n-accepted {
		t.Errorf("Stats: got %+v, want %d sent and %d dropped", stats, accepted, n-accepted)
	}
	if len(tx.got) != accepted {
		t.Fatalf("transmit endpoint got %d frames, want %d", len(tx.got), accepted)
	}
	if used := mp.Capacity() - mp.Available(); used != accepted {
		t.Errorf("%d mbufs are in use, want %d", used, accepted)
	}
	tx.release()
	if mp.Available() != mp.Capacity() {
		t.Errorf("%d mbufs leaked", mp.Capacity()-mp.Available())
	}
}

func TestPipelineFilterKeepsOrder(t *testing.T) {
	mp := getMempoolForTest(t, 64)
	vp, q := newVirtualQueue(t, mp, 16)
	for i := 0; i < 10; i++ {
		inject(t, vp, udpFrame(t, uint16(i)))
	}
	even := func(p *packet.Packet) bool {
		udp, err := p.ParseUDP()
		return err == nil && packet.SwapBytesUint16(udp.SrcPort)%2 == 0
	}

	p := Receive(q).Filter(even).Map(swapAddresses).Send(q)
	p.Execute()

	out := vp.Drain(0, 16)
	var ports []uint16
	for _, m := range out {
		ports = append(ports, srcPortOf(t, m))
		m.Release()
	}
	expected := []uint16{0, 2, 4, 6, 8}
	if len(ports) != len(expected) {
		t.Fatalf("transmitted ports %v, want %v", ports, expected)
	}
	for i := range expected {
		if ports[i] != expected[i] {
			t.Fatalf("transmitted ports %v, want %v", ports, expected)
		}
	}
	if stats := p.Stats(); stats.Filtered != 5 || stats.Sent != 5 {
		t.Errorf("Stats: got %+v", stats)
	}
}

func TestPipelineEmptyReceive(t *testing.T) {
	mp := getMempoolForTest(t, 8)
	_, q := newVirtualQueue(t, mp, 16)
	called := false
	p := Receive(q).Map(func(*packet.Packet) error {
		called = true
		return nil
	}).Send(q)
	p.Execute()
	p.Execute()

	if called {
		t.Error("transform was called without packets")
	}
	if stats := p.Stats(); stats != (PipelineStats{Cycles: 2}) {
		t.Errorf("Stats: got %+v", stats)
	}
}

func TestPipelineBatchSize(t *testing.T) {
	mp := getMempoolForTest(t, 64)
	vp, q := newVirtualQueue(t, mp, 16)
	for i := 0; i < 5; i++ {
		inject(t, vp, udpFrame(t, uint16(i)))
	}
	p := Receive(q).BatchSize(2).Name("pairs").Send(q)
	if p.Name() != "pairs->vp:0" {
		t.Errorf("Name: got %s", p.Name())
	}
	p.Execute()
	if got := p.Stats().Received; got != 2 {
		t.Errorf("first cycle received %d, want 2", got)
	}
	p.Execute()
	p.Execute()
	if got := p.Stats().Received; got != 5 {
		t.Errorf("three cycles received %d, want 5", got)
	}
	for _, m := range vp.Drain(0, 16) {
		m.Release()
	}
}

func TestPipelineSharedMbufPanics(t *testing.T) {
	mp := getMempoolForTest(t, 8)
	vp, q := newVirtualQueue(t, mp, 16)
	inject(t, vp, udpFrame(t, 1))

	var shared *low.Mbuf
	rx := rxFunc(func(pkts []*low.Mbuf) (uint, error) {
		n, err := q.Recv(pkts)
		if n > 0 {
			shared = pkts[0].Ref()
		}
		return n, err
	})
	p := Receive(rx).Map(swapAddresses).Send(q)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || common.GetNFErrorCode(err) != common.RefCntViolation {
			t.Errorf("recovered %v, want RefCntViolation error", r)
		}
		if shared == nil || shared.RefCnt() != 2 {
			t.Error("transform was entered with shared mbuf")
		}
	}()
	p.Execute()
	t.Error("pipeline accepted mbuf with reference count 2")
}

type rxFunc func(pkts []*low.Mbuf) (uint, error)

func (f rxFunc) Recv(pkts []*low.Mbuf) (uint, error) {
	return f(pkts)
}

func TestSpinDelay(t *testing.T) {
	NoDelay()
	if f := SpinDelay(0); f == nil {
		t.Fatal("SpinDelay(0) is nil")
	}
	delay := SpinDelay(1000)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				delay()
			}
		}()
	}
	wg.Wait()
	if v := atomic.LoadUint64(&spinSink); v != 0 {
		t.Errorf("delay wrote shared sink: %d", v)
	}
}
