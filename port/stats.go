// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package port

import (
	"sync/atomic"

	"github.com/intel-go/nff-bricks/allocators"
)

// QueueStats keeps counters of one queue. Every instance is placed at
// its own cache line because different queues are served by different
// cores.
type QueueStats struct {
	RxPackets uint64
	TxPackets uint64
}

func (s *QueueStats) addRx(n uint) {
	atomic.AddUint64(&s.RxPackets, uint64(n))
}

func (s *QueueStats) addTx(n uint) {
	atomic.AddUint64(&s.TxPackets, uint64(n))
}

// Load returns consistent per counter snapshot.
func (s *QueueStats) Load() (rx, tx uint64) {
	return atomic.LoadUint64(&s.RxPackets), atomic.LoadUint64(&s.TxPackets)
}

func newQueueStats(n int) []allocators.CacheAligned[QueueStats] {
	stats := make([]allocators.CacheAligned[QueueStats], n)
	for i := range stats {
		stats[i] = allocators.Allocate(QueueStats{})
	}
	return stats
}

func loadStats(stats []allocators.CacheAligned[QueueStats], q int) (rx, tx uint64) {
	if q < 0 || q >= len(stats) {
		return 0, 0
	}
	return stats[q].Get().Load()
}
