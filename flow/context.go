// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flow

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/golang-collections/go-datastructures/queue"
	"github.com/google/uuid"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/devices"
	"github.com/intel-go/nff-bricks/low"
	"github.com/intel-go/nff-bricks/port"
	"github.com/intel-go/nff-bricks/scheduler"
)

// PipelineBuilder is a function which constructs pipelines of one core.
// It is called on scheduler thread of every core with queues assigned
// to this core and registers pipelines by s.AddTask.
type PipelineBuilder func(queues []port.Queue, s scheduler.Scheduler)

// Context owns ports, mempool and schedulers of all cores.
type Context struct {
	id         uuid.UUID
	cfg        Config
	cores      []int
	pool       *low.Mempool
	ports      []port.Device
	queues     [][]port.Queue
	schedulers []*scheduler.StandaloneScheduler

	pending *queue.Queue
	// mu serializes consumers of pending builders.
	mu      sync.Mutex
	started bool
	running int32
	wg      sync.WaitGroup

	plMu       sync.Mutex
	pipelines  []*Pipeline
	server     *http.Server
	serverAddr string
}

// Initialize creates mempool, opens all configured ports and creates
// one scheduler per core. Queue i of every port is assigned to core
// number i modulo number of cores.
func Initialize(cfg *Config) (*Context, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctx := &Context{
		id:      uuid.New(),
		cfg:     *cfg,
		pending: queue.New(4),
	}
	if ctx.cfg.LogType == 0 {
		ctx.cfg.LogType = common.No | common.Initialization | common.Debug
	}
	common.SetLogType(ctx.cfg.LogType)
	if ctx.cfg.BurstSize == 0 {
		ctx.cfg.BurstSize = BurstSize
	}
	if ctx.cfg.MbufNumber == 0 {
		ctx.cfg.MbufNumber = DefaultMbufNumber
	}
	if ctx.cfg.MbufHeadroom == 0 {
		ctx.cfg.MbufHeadroom = low.DefaultHeadroom
	}
	if ctx.cfg.MbufDataRoom == 0 {
		ctx.cfg.MbufDataRoom = low.DefaultDataRoom
	}
	if ctx.cfg.RingSize == 0 {
		ctx.cfg.RingSize = DefaultRingSize
	}

	common.LogTitle(common.Initialization, "------------***------- Initializing context ------***------------")
	var err error
	if ctx.cfg.CPUList != "" {
		ctx.cores, err = common.ParseCPUs(ctx.cfg.CPUList)
	} else {
		ctx.cores, err = low.AllowedCPUs()
		if err != nil {
			common.LogWarning(common.Initialization, "Using all cores:", err)
			ctx.cores, err = common.GetDefaultCPUs(runtime.NumCPU()), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if len(ctx.cores) == 0 {
		return nil, common.WrapWithNFError(nil, "no cores to run schedulers on", common.NotEnoughCores)
	}
	common.LogDebug(common.Initialization, "Context", ctx.id, "uses cores:", ctx.cores)

	ctx.pool, err = low.CreateMempool("mbufs-"+ctx.id.String()[:8], ctx.cfg.MbufNumber, ctx.cfg.MbufHeadroom, ctx.cfg.MbufDataRoom)
	if err != nil {
		return nil, err
	}

	common.LogTitle(common.Initialization, "------------***-------- Initializing ports -------***------------")
	for i := range ctx.cfg.Ports {
		p, err := ctx.openPort(&ctx.cfg.Ports[i])
		if err != nil {
			ctx.closePorts()
			return nil, err
		}
		common.LogDebug(common.Initialization, "Port", p)
		ctx.ports = append(ctx.ports, p)
	}

	ctx.queues = make([][]port.Queue, len(ctx.cores))
	for _, p := range ctx.ports {
		for q := 0; q < p.Queues(); q++ {
			pq, err := p.Queue(q)
			if err != nil {
				ctx.closePorts()
				return nil, err
			}
			k := q % len(ctx.cores)
			ctx.queues[k] = append(ctx.queues[k], pq)
		}
	}

	common.LogTitle(common.Initialization, "------------***------ Initializing scheduler -----***------------")
	ctx.schedulers = make([]*scheduler.StandaloneScheduler, len(ctx.cores))
	for k, core := range ctx.cores {
		ctx.schedulers[k] = scheduler.NewStandaloneScheduler(core)
		common.LogDebug(common.Initialization, "Core", core, "queues:", ctx.queues[k])
	}

	if ctx.cfg.CountersAddress != "" {
		if err := ctx.ServeCounters(ctx.cfg.CountersAddress); err != nil {
			ctx.closePorts()
			return nil, err
		}
	}
	return ctx, nil
}

func (ctx *Context) openPort(pc *PortConfig) (port.Device, error) {
	queues := pc.Queues
	if queues == 0 {
		queues = len(ctx.cores)
	}
	switch pc.Driver {
	case DriverAFPacket:
		if dev, err := devices.GetNetDevice(pc.Name); err == nil {
			common.LogDebug(common.Initialization, "Interface", pc.Name, "driver", dev.Driver, "has", dev.RxQueues, "hardware rx queues")
			if dev.RxQueues > 0 && queues > dev.RxQueues {
				common.LogWarning(common.Initialization, "Interface", pc.Name, "has", dev.RxQueues, "rx queues,", queues, "requested")
			}
		} else if names, lerr := devices.ListNetDevices(); lerr == nil {
			common.LogWarning(common.Initialization, "Interface", pc.Name, "isn't found, available interfaces:", names)
		}
		d, err := low.OpenRawSocketPort(pc.Name, queues, ctx.pool)
		if err != nil {
			return nil, common.WrapWithNFError(err, "can't open port "+pc.Name, common.FailToInitPort)
		}
		p, err := port.NewPort(d, queues, queues)
		if err != nil {
			d.Close()
			return nil, err
		}
		return p, nil
	case DriverPcap:
		d, err := low.OpenPcapPort(pc.Name, pc.PcapIn, pc.PcapOut, queues, pc.Repeat, ctx.pool)
		if err != nil {
			return nil, common.WrapWithNFError(err, "can't open port "+pc.Name, common.FailToInitPort)
		}
		d.SetMACAddress(pc.MAC)
		p, err := port.NewPort(d, queues, queues)
		if err != nil {
			d.Close()
			return nil, err
		}
		return p, nil
	case DriverVirtual:
		p, err := port.NewVirtualPort(port.VirtualPortConfig{
			Name:     pc.Name,
			MAC:      pc.MAC,
			Queues:   queues,
			RingSize: ctx.cfg.RingSize,
			Loopback: pc.Loopback,
		}, ctx.pool)
		if err != nil {
			return nil, common.WrapWithNFError(err, "can't create virtual port "+pc.Name, common.FailToInitPort)
		}
		return p, nil
	}
	return nil, common.WrapWithNFError(nil, "unknown driver "+pc.Driver, common.ConfigErr)
}

func (ctx *Context) closePorts() {
	for _, p := range ctx.ports {
		if err := p.Close(); err != nil {
			common.LogWarning(common.Initialization, "Closing port", p.Name(), "failed:", err)
		}
	}
	ctx.ports = nil
}

// ID returns unique identifier of context.
func (ctx *Context) ID() uuid.UUID {
	return ctx.id
}

// Cores returns cores which schedulers are dedicated to.
func (ctx *Context) Cores() []int {
	return ctx.cores
}

// BurstSize returns configured number of packets in one batch.
func (ctx *Context) BurstSize() uint {
	return ctx.cfg.BurstSize
}

// Mempool returns mempool which ports allocate mbufs from.
func (ctx *Context) Mempool() *low.Mempool {
	return ctx.pool
}

// Ports returns all opened ports in configuration order.
func (ctx *Context) Ports() []port.Device {
	return ctx.ports
}

// Port returns port by name or nil.
func (ctx *Context) Port(name string) port.Device {
	for _, p := range ctx.ports {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Queues returns queues assigned to k-th core of Cores.
func (ctx *Context) Queues(k int) []port.Queue {
	if k < 0 || k >= len(ctx.queues) {
		return nil
	}
	return ctx.queues[k]
}

// SelectQueues returns queues of port portName in the same order.
// Builders use it to pair receive and transmit ports.
func SelectQueues(queues []port.Queue, portName string) []port.Queue {
	var selected []port.Queue
	for _, q := range queues {
		if strings.HasPrefix(q.String(), portName+":") {
			selected = append(selected, q)
		}
	}
	return selected
}

// Schedulers returns schedulers in order of Cores.
func (ctx *Context) Schedulers() []*scheduler.StandaloneScheduler {
	return ctx.schedulers
}

// Running returns number of scheduler threads which haven't exited.
func (ctx *Context) Running() int {
	return int(atomic.LoadInt32(&ctx.running))
}

// StartSchedulers starts one locked OS thread per core. Every thread is
// bound to its core unless Config.NoPinning is set. If any thread
// can't be bound all schedulers are stopped and SetAffinityErr is
// returned.
func (ctx *Context) StartSchedulers() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.started {
		return common.WrapWithNFError(nil, "schedulers are already started", common.BadArgument)
	}
	ctx.started = true
	common.LogTitle(common.Initialization, "------------***------- Starting schedulers ------***------------")
	pinned := make(chan error, len(ctx.schedulers))
	for _, s := range ctx.schedulers {
		ctx.wg.Add(1)
		atomic.AddInt32(&ctx.running, 1)
		go ctx.runScheduler(s, pinned)
	}
	var firstErr error
	for range ctx.schedulers {
		if err := <-pinned; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		common.LogError(common.Initialization, "Can't start schedulers:", firstErr)
		ctx.Stop()
		return firstErr
	}
	return nil
}

func (ctx *Context) runScheduler(s *scheduler.StandaloneScheduler, pinned chan<- error) {
	defer ctx.wg.Done()
	defer atomic.AddInt32(&ctx.running, -1)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if !ctx.cfg.NoPinning {
		if err := low.SetAffinity(s.Core()); err != nil {
			s.Stop()
			pinned <- err
			return
		}
	}
	pinned <- nil
	s.Execute()
}

// AddPipelineToRun adds builder which is called once per core by the
// next Execute.
func (ctx *Context) AddPipelineToRun(b PipelineBuilder) error {
	if b == nil {
		return common.WrapWithNFError(nil, "nil pipeline builder", common.BadArgument)
	}
	if err := ctx.pending.Put(b); err != nil {
		return common.WrapWithNFError(err, "context is closed", common.Fail)
	}
	return nil
}

// Execute calls every pending builder on scheduler thread of every core
// and waits until all calls return.
func (ctx *Context) Execute() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if !ctx.started {
		return common.WrapWithNFError(nil, "schedulers are not started", common.SchedulersNotStarted)
	}
	var waits []<-chan struct{}
	for ctx.pending.Len() > 0 {
		items, err := ctx.pending.Get(ctx.pending.Len())
		if err != nil {
			return common.WrapWithNFError(err, "context is closed", common.Fail)
		}
		for _, item := range items {
			b := item.(PipelineBuilder)
			for k, s := range ctx.schedulers {
				queues := ctx.queues[k]
				done, err := s.Run(func(sch scheduler.Scheduler) {
					b(queues, registrar{ctx: ctx, Scheduler: sch})
				})
				if err != nil {
					return err
				}
				waits = append(waits, done)
			}
		}
	}
	for _, done := range waits {
		<-done
	}
	return nil
}

// registrar remembers pipelines added to scheduler for counters.
type registrar struct {
	scheduler.Scheduler
	ctx *Context
}

func (r registrar) AddTask(task scheduler.Executable) error {
	if err := r.Scheduler.AddTask(task); err != nil {
		return err
	}
	if p, ok := task.(*Pipeline); ok {
		r.ctx.Register(p)
	}
	return nil
}

// Register makes pipeline counters visible in Pipelines and counters
// server. Pipelines added by builders are registered automatically.
func (ctx *Context) Register(p *Pipeline) {
	ctx.plMu.Lock()
	ctx.pipelines = append(ctx.pipelines, p)
	ctx.plMu.Unlock()
}

// Pipelines returns all registered pipelines.
func (ctx *Context) Pipelines() []*Pipeline {
	ctx.plMu.Lock()
	defer ctx.plMu.Unlock()
	return append([]*Pipeline(nil), ctx.pipelines...)
}

// Stop stops all schedulers and waits for their threads to exit.
func (ctx *Context) Stop() {
	for _, s := range ctx.schedulers {
		s.Stop()
	}
	ctx.wg.Wait()
}

// Close stops schedulers, counters server and closes all ports.
func (ctx *Context) Close() error {
	ctx.Stop()
	ctx.stopCounters()
	var firstErr error
	for _, p := range ctx.ports {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	ctx.ports = nil
	ctx.mu.Lock()
	for ctx.pending.Len() > 0 {
		if _, err := ctx.pending.Get(ctx.pending.Len()); err != nil {
			break
		}
	}
	ctx.pending.Dispose()
	ctx.mu.Unlock()
	if ctx.pool != nil {
		ctx.pool.ReportState()
	}
	return firstErr
}

func (ctx *Context) String() string {
	return "context " + ctx.id.String() + ": " + strconv.Itoa(len(ctx.ports)) + " ports, " + strconv.Itoa(len(ctx.cores)) + " cores"
}
