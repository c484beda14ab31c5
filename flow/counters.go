// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/port"
)

// QueueCounters are counters of one queue pair.
type QueueCounters struct {
	Queue     int    `json:"queue"`
	RxPackets uint64 `json:"rx_packets"`
	TxPackets uint64 `json:"tx_packets"`
}

// PortCounters are counters of all queue pairs of one port.
type PortCounters struct {
	Name   string          `json:"name"`
	MAC    string          `json:"mac"`
	Queues []QueueCounters `json:"queues"`
}

// PipelineCounters is a named snapshot of pipeline counters.
type PipelineCounters struct {
	Name  string        `json:"name"`
	Stats PipelineStats `json:"stats"`
}

func portCounters(p port.Device) PortCounters {
	pc := PortCounters{
		Name:   p.Name(),
		MAC:    p.MACAddress().String(),
		Queues: make([]QueueCounters, p.Queues()),
	}
	for q := range pc.Queues {
		rx, tx := p.Stats(q)
		pc.Queues[q] = QueueCounters{Queue: q, RxPackets: rx, TxPackets: tx}
	}
	return pc
}

// PortCounters returns counters of all ports.
func (ctx *Context) PortCounters() []PortCounters {
	counters := make([]PortCounters, 0, len(ctx.ports))
	for _, p := range ctx.ports {
		counters = append(counters, portCounters(p))
	}
	return counters
}

// PipelineCounters returns counters of all registered pipelines.
func (ctx *Context) PipelineCounters() []PipelineCounters {
	pipelines := ctx.Pipelines()
	counters := make([]PipelineCounters, len(pipelines))
	for i, p := range pipelines {
		counters[i] = PipelineCounters{Name: p.Name(), Stats: p.Stats()}
	}
	return counters
}

func (ctx *Context) handler(w http.ResponseWriter, r *http.Request) {
	url := strings.SplitN(r.URL.Path, "/", 3)
	if len(url) < 2 || url[1] == "" {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body>
/<a href="/ports">ports</a> for receive and transmit counters of all port queues
or /ports/name for individual port.<br>
<br>
/<a href="/pipelines">pipelines</a> for counters of all pipelines which include
received, sent, dropped and filtered packets. Using /pipelines/name returns
information about individual pipeline.
</body></html>`)
		return
	}

	var v interface{}
	switch url[1] {
	case "ports":
		if len(url) > 2 && url[2] != "" {
			p := ctx.Port(url[2])
			if p == nil {
				http.Error(w, "Bad port name: "+url[2], http.StatusBadRequest)
				return
			}
			v = portCounters(p)
		} else {
			v = ctx.PortCounters()
		}
	case "pipelines":
		all := ctx.PipelineCounters()
		if len(url) > 2 && url[2] != "" {
			found := false
			for _, pc := range all {
				if pc.Name == url[2] {
					v, found = pc, true
					break
				}
			}
			if !found {
				http.Error(w, "Bad pipeline name: "+url[2], http.StatusBadRequest)
				return
			}
		} else {
			v = all
		}
	default:
		http.Error(w, "Bad request: "+url[1], http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ServeCounters starts HTTP server with JSON counters of ports and
// pipelines at addr. Server is stopped by Close.
func (ctx *Context) ServeCounters(addr string) error {
	if ctx.server != nil {
		return common.WrapWithNFError(nil, "counters server is already started", common.BadArgument)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return common.WrapWithNFError(err, "can't listen at "+addr, common.BadArgument)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", ctx.handler)
	server := &http.Server{Handler: mux}
	ctx.server = server
	ctx.serverAddr = listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			common.LogWarning(common.Initialization, "Error while serving HTTP requests:", err)
			server.Close()
		}
	}()
	common.LogDebug(common.Initialization, "Counters are served at", listener.Addr())
	return nil
}

// CountersAddr returns address counters are served at or empty string.
func (ctx *Context) CountersAddr() string {
	return ctx.serverAddr
}

const countersShutdownTimeout = 5 * time.Second

// stopCounters waits for running handlers before ports are closed.
func (ctx *Context) stopCounters() {
	if ctx.server == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.Background(), countersShutdownTimeout)
	defer cancel()
	if err := ctx.server.Shutdown(sctx); err != nil {
		common.LogWarning(common.Initialization, "Counters server shutdown:", err)
		ctx.server.Close()
	}
	ctx.server = nil
	ctx.serverAddr = ""
}
