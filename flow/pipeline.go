// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flow

import (
	"fmt"
	"sync/atomic"

	"github.com/intel-go/nff-bricks/allocators"
	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/low"
	"github.com/intel-go/nff-bricks/packet"
	"github.com/intel-go/nff-bricks/port"
)

// BurstSize is a default number of packets in one pipeline batch.
const BurstSize = 32

// MapFunction is a function type for user defined function which
// transforms packets in place. Function receives a packet which mbuf
// is exclusively owned by pipeline. Returned error drops the packet:
// errors with common.ParseErr code are counted as parse errors, others
// as transform errors. It is prohibited to release packet or keep it
// after return.
type MapFunction func(*packet.Packet) error

// FilterFunction is a function type for user defined function which
// decides whether packet should stay in pipeline - return true, or
// should be dropped - return false.
type FilterFunction func(*packet.Packet) bool

type stage struct {
	name   string
	mapFn  MapFunction
	filter FilterFunction
}

// Builder accumulates pipeline stages. Nothing is executed at build
// time.
type Builder struct {
	name      string
	rx        port.PacketRx
	batchSize uint
	stages    []stage
}

// Receive starts pipeline which takes batches from rx.
func Receive(rx port.PacketRx) *Builder {
	return &Builder{
		name:      fmt.Sprint(rx),
		rx:        rx,
		batchSize: BurstSize,
	}
}

// Name sets pipeline name used in logs and counters.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// BatchSize sets maximum number of packets in one batch.
func (b *Builder) BatchSize(n uint) *Builder {
	if n == 0 {
		common.LogWarning(common.Initialization, "Pipeline", b.name, "batch size 0 is replaced by", BurstSize)
		n = BurstSize
	}
	b.batchSize = n
	return b
}

// Map appends transform stage. Optional name is used in logs.
func (b *Builder) Map(fn MapFunction, name ...string) *Builder {
	b.stages = append(b.stages, stage{name: stageName("map", len(b.stages), name), mapFn: fn})
	return b
}

// Filter appends filter stage.
func (b *Builder) Filter(fn FilterFunction, name ...string) *Builder {
	b.stages = append(b.stages, stage{name: stageName("filter", len(b.stages), name), filter: fn})
	return b
}

func stageName(kind string, index int, name []string) string {
	if len(name) > 0 && name[0] != "" {
		return name[0]
	}
	return fmt.Sprintf("%s%d", kind, index)
}

// Send finishes pipeline with transmit endpoint tx.
func (b *Builder) Send(tx port.PacketTx) *Pipeline {
	return &Pipeline{
		name:   b.name + "->" + fmt.Sprint(tx),
		rx:     b.rx,
		tx:     tx,
		stages: append([]stage(nil), b.stages...),
		batch:  make([]*low.Mbuf, b.batchSize),
		views:  make([]packet.Packet, b.batchSize),
		stats:  allocators.Allocate(PipelineStats{}),
	}
}

// PipelineStats are cumulative pipeline counters.
type PipelineStats struct {
	Received        uint64
	Sent            uint64
	ParseErrors     uint64
	TransformErrors uint64
	Filtered        uint64
	TxDropped       uint64
	Cycles          uint64
}

// Pipeline is a receive, transform and transmit chain which is
// executed by one core. Pipeline keeps only counters between cycles.
type Pipeline struct {
	name   string
	rx     port.PacketRx
	tx     port.PacketTx
	stages []stage
	batch  []*low.Mbuf
	views  []packet.Packet
	stats  allocators.CacheAligned[PipelineStats]
}

// Name returns pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("pipeline %s with %d stages", p.name, len(p.stages))
}

// Stats returns snapshot of pipeline counters. It can be called from
// any goroutine.
func (p *Pipeline) Stats() PipelineStats {
	s := p.stats.Get()
	return PipelineStats{
		Received:        atomic.LoadUint64(&s.Received),
		Sent:            atomic.LoadUint64(&s.Sent),
		ParseErrors:     atomic.LoadUint64(&s.ParseErrors),
		TransformErrors: atomic.LoadUint64(&s.TransformErrors),
		Filtered:        atomic.LoadUint64(&s.Filtered),
		TxDropped:       atomic.LoadUint64(&s.TxDropped),
		Cycles:          atomic.LoadUint64(&s.Cycles),
	}
}

// Execute runs exactly one cycle: receive one batch, pass it through
// all stages and transmit survivors. Packets which transmit endpoint
// didn't accept are released and counted as dropped.
func (p *Pipeline) Execute() {
	s := p.stats.Get()
	atomic.AddUint64(&s.Cycles, 1)
	n, err := p.rx.Recv(p.batch)
	if err != nil {
		common.LogDebug(common.Verbose, "Pipeline", p.name, "receive failed:", err)
	}
	if n == 0 {
		return
	}
	atomic.AddUint64(&s.Received, uint64(n))
	count := int(n)
	for i := 0; i < count; i++ {
		p.views[i].Attach(p.batch[i])
	}

	var parseErrors, transformErrors, filtered uint64
	for si := range p.stages {
		st := &p.stages[si]
		kept := 0
		for i := 0; i < count; i++ {
			view := &p.views[i]
			keep := true
			if st.mapFn != nil {
				view.AssertExclusive()
				if err := st.mapFn(view); err != nil {
					keep = false
					if common.IsParseError(err) {
						parseErrors++
					} else {
						transformErrors++
					}
					common.LogDrop(common.Verbose, "Pipeline", p.name, "stage", st.name, "dropped packet:", err)
				}
			} else if !st.filter(view) {
				keep = false
				filtered++
			}
			if !keep {
				view.Mbuf().Release()
				continue
			}
			if kept != i {
				p.batch[kept] = p.batch[i]
				p.views[kept] = *view
			}
			kept++
		}
		for i := kept; i < count; i++ {
			p.batch[i] = nil
			p.views[i] = packet.Packet{}
		}
		count = kept
		if count == 0 {
			break
		}
	}
	if parseErrors != 0 {
		atomic.AddUint64(&s.ParseErrors, parseErrors)
	}
	if transformErrors != 0 {
		atomic.AddUint64(&s.TransformErrors, transformErrors)
	}
	if filtered != 0 {
		atomic.AddUint64(&s.Filtered, filtered)
	}
	if count == 0 {
		return
	}

	sent, err := p.tx.Send(p.batch[:count])
	if err != nil {
		common.LogDebug(common.Verbose, "Pipeline", p.name, "send failed:", err)
	}
	if sent > uint(count) {
		sent = uint(count)
	}
	atomic.AddUint64(&s.Sent, uint64(sent))
	if dropped := uint(count) - sent; dropped != 0 {
		for i := sent; i < uint(count); i++ {
			p.batch[i].Release()
		}
		atomic.AddUint64(&s.TxDropped, uint64(dropped))
	}
	for i := 0; i < count; i++ {
		p.batch[i] = nil
		p.views[i] = packet.Packet{}
	}
}
