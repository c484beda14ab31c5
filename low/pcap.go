// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package low

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/types"
)

type nowFuncT func() time.Time

var now nowFuncT = func() time.Time { return time.Now() }

// PcapSnapLen is a snapshot length written to pcap file header.
const PcapSnapLen = 65536

// PcapPort is a driver which receives frames from pcap file and writes
// transmitted frames to another pcap file. Input frames are distributed
// between receive queues in round-robin order. In repeat mode every
// queue replays its frames endlessly.
type PcapPort struct {
	name   string
	mac    types.MACAddress
	pool   *Mempool
	in     []*queue.Queue
	repeat bool

	mu     sync.Mutex
	writer *pcapgo.Writer
	out    io.WriteCloser
}

// OpenPcapPort reads all frames from inFile and creates outFile. Any of
// file names may be empty: port without input never receives anything,
// port without output drops everything it sends.
func OpenPcapPort(name, inFile, outFile string, rxQueues int, repeat bool, pool *Mempool) (*PcapPort, error) {
	p, err := newPcapPort(name, rxQueues, repeat, pool)
	if err != nil {
		return nil, err
	}
	if inFile != "" {
		f, err := os.Open(inFile)
		if err != nil {
			return nil, common.WrapWithNFError(err, "can't open "+inFile, common.PcapReadFail)
		}
		err = p.load(f)
		f.Close()
		if err != nil {
			return nil, common.WrapWithNFError(err, "can't read "+inFile, common.PcapReadFail)
		}
	}
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return nil, common.WrapWithNFError(err, "can't create "+outFile, common.PcapWriteFail)
		}
		if err := p.setOutput(f); err != nil {
			f.Close()
			return nil, err
		}
	}
	return p, nil
}

// NewPcapPortFromStreams creates pcap port over already opened streams.
// Nil in or out behave like empty file names of OpenPcapPort.
func NewPcapPortFromStreams(name string, in io.Reader, out io.WriteCloser, rxQueues int, repeat bool, pool *Mempool) (*PcapPort, error) {
	p, err := newPcapPort(name, rxQueues, repeat, pool)
	if err != nil {
		return nil, err
	}
	if in != nil {
		if err := p.load(in); err != nil {
			return nil, common.WrapWithNFError(err, "can't read pcap stream of "+name, common.PcapReadFail)
		}
	}
	if out != nil {
		if err := p.setOutput(out); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newPcapPort(name string, rxQueues int, repeat bool, pool *Mempool) (*PcapPort, error) {
	if rxQueues <= 0 {
		return nil, common.WrapWithNFError(nil, "pcap port "+name+" needs at least one queue", common.PortHasNoQueues)
	}
	p := &PcapPort{
		name:   name,
		pool:   pool,
		in:     make([]*queue.Queue, rxQueues),
		repeat: repeat,
	}
	for i := range p.in {
		p.in[i] = queue.New()
	}
	return p, nil
}

func (p *PcapPort) load(r io.Reader) error {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return err
	}
	for i := 0; ; i++ {
		data, _, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		frame := make([]byte, len(data))
		copy(frame, data)
		p.in[i%len(p.in)].Add(frame)
	}
	return nil
}

func (p *PcapPort) setOutput(w io.WriteCloser) error {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(PcapSnapLen, layers.LinkTypeEthernet); err != nil {
		return common.WrapWithNFError(err, "can't write pcap header for "+p.name, common.PcapWriteFail)
	}
	p.writer = writer
	p.out = w
	return nil
}

// SetMACAddress sets address reported for this port.
func (p *PcapPort) SetMACAddress(mac types.MACAddress) {
	p.mac = mac
}

// Name returns port name.
func (p *PcapPort) Name() string {
	return p.name
}

// MACAddress returns configured port address.
func (p *PcapPort) MACAddress() types.MACAddress {
	return p.mac
}

// Pending returns number of frames left for queue q.
func (p *PcapPort) Pending(q int) int {
	return p.in[q].Length()
}

// RecvBurst copies up to len(pkts) frames of queue q to new mbufs.
func (p *PcapPort) RecvBurst(q int, pkts []*Mbuf) uint {
	in := p.in[q]
	var n uint
	for n < uint(len(pkts)) && in.Length() != 0 {
		m := p.pool.Alloc()
		if m == nil {
			break
		}
		frame := in.Remove().([]byte)
		if p.repeat {
			in.Add(frame)
		}
		if !m.WriteData(frame) {
			common.LogDrop(common.Verbose, "Frame of", len(frame), "bytes doesn't fit mbuf at", p.name)
			m.Release()
			if p.repeat {
				break
			}
			continue
		}
		pkts[n] = m
		n++
	}
	return n
}

// SendBurst writes frames to output file and releases them. All frames
// are accepted.
func (p *PcapPort) SendBurst(q int, pkts []*Mbuf) uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range pkts {
		if p.writer != nil {
			data := m.Data()
			ci := gopacket.CaptureInfo{
				Timestamp:     now(),
				CaptureLength: len(data),
				Length:        len(data),
			}
			if err := p.writer.WritePacket(ci, data); err != nil {
				common.LogError(common.Debug, "Write to", p.name, "failed:", err)
			}
		}
		m.Release()
	}
	return uint(len(pkts))
}

// Close closes output file.
func (p *PcapPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out == nil {
		return nil
	}
	err := p.out.Close()
	p.out = nil
	p.writer = nil
	return err
}
