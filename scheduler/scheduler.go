// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scheduler runs tasks of one core. Scheduler owns ordered task
// list and executes one cycle of every task per iteration on its own
// OS thread until it is stopped. Tasks are never migrated between
// schedulers.
package scheduler

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/golang-collections/go-datastructures/queue"

	"github.com/intel-go/nff-bricks/common"
)

// Executable is a unit of work which is executed repeatedly. Execute
// performs one bounded cycle and returns.
type Executable interface {
	Execute()
}

// ExecutableFunc adapts function to Executable.
type ExecutableFunc func()

// Execute calls f.
func (f ExecutableFunc) Execute() {
	f()
}

// Scheduler accepts tasks for execution.
type Scheduler interface {
	// AddTask appends task to execution list. It can be called before
	// or during execution. Task starts at the next iteration.
	AddTask(task Executable) error
}

// State of scheduler.
type State int32

// Scheduler states.
const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

const pendingBatch = 16

// request is a pending task or closure which must be run on scheduler
// thread.
type request struct {
	task Executable
	run  func(Scheduler)
	done chan struct{}
}

// StandaloneScheduler executes tasks of one core.
type StandaloneScheduler struct {
	core       int
	state      int32
	stop       int32
	pendingCnt int32
	// mu orders puts with disposal of pending queue.
	mu         sync.Mutex
	disposed   bool
	pending    *queue.Queue
	tasks      []Executable
	iterations uint64
	done       chan struct{}
	doneOnce   sync.Once
}

// NewStandaloneScheduler creates idle scheduler for core.
func NewStandaloneScheduler(core int) *StandaloneScheduler {
	return &StandaloneScheduler{
		core:    core,
		pending: queue.New(pendingBatch),
		done:    make(chan struct{}),
	}
}

// Core returns core which scheduler is dedicated to.
func (s *StandaloneScheduler) Core() int {
	return s.core
}

// State returns current state.
func (s *StandaloneScheduler) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Iterations returns number of completed loop iterations.
func (s *StandaloneScheduler) Iterations() uint64 {
	return atomic.LoadUint64(&s.iterations)
}

// TaskCount returns number of registered tasks. It is precise only on
// scheduler thread or after scheduler has stopped.
func (s *StandaloneScheduler) TaskCount() int {
	return len(s.tasks)
}

// Done returns channel which is closed after execution loop exits.
func (s *StandaloneScheduler) Done() <-chan struct{} {
	return s.done
}

// AddTask appends task to the end of execution list.
func (s *StandaloneScheduler) AddTask(task Executable) error {
	if task == nil {
		return common.WrapWithNFError(nil, "nil task", common.BadArgument)
	}
	return s.put(request{task: task})
}

// Run schedules f to be called once on scheduler thread before the
// next iteration. Returned channel is closed after f returns. If
// scheduler is stopped before f was called, the channel is closed
// without calling f.
func (s *StandaloneScheduler) Run(f func(Scheduler)) (<-chan struct{}, error) {
	done := make(chan struct{})
	if err := s.put(request{run: f, done: done}); err != nil {
		return nil, err
	}
	return done, nil
}

func (s *StandaloneScheduler) put(r request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || atomic.LoadInt32(&s.stop) != 0 {
		return common.WrapWithNFError(nil, "scheduler of core "+strconv.Itoa(s.core)+" is stopped", common.SchedulerStopped)
	}
	if err := s.pending.Put(r); err != nil {
		return common.WrapWithNFError(err, "scheduler of core "+strconv.Itoa(s.core)+" is stopped", common.SchedulerStopped)
	}
	atomic.AddInt32(&s.pendingCnt, 1)
	return nil
}

// drainPending moves pending tasks to execution list and runs pending
// closures. Closures may add tasks, they are taken at the same call.
func (s *StandaloneScheduler) drainPending() {
	for atomic.LoadInt32(&s.pendingCnt) > 0 {
		// Scheduler thread is the only consumer so Get never waits.
		items, err := s.pending.Get(pendingBatch)
		if err != nil {
			return
		}
		atomic.AddInt32(&s.pendingCnt, -int32(len(items)))
		for _, item := range items {
			r := item.(request)
			if r.task != nil {
				s.tasks = append(s.tasks, r.task)
				continue
			}
			r.run(s)
			close(r.done)
		}
	}
}

// Execute runs scheduling loop in the calling goroutine until Stop is
// called. Each iteration takes pending requests and executes one cycle
// of every task in registration order.
func (s *StandaloneScheduler) Execute() {
	if !atomic.CompareAndSwapInt32(&s.state, int32(Idle), int32(Running)) {
		common.LogWarning(common.Debug, "Scheduler of core", s.core, "is already", s.State())
		return
	}
	common.LogDebug(common.Debug, "Scheduler of core", s.core, "started")
	defer s.finish()
	for atomic.LoadInt32(&s.stop) == 0 {
		s.drainPending()
		for _, t := range s.tasks {
			t.Execute()
		}
		atomic.AddUint64(&s.iterations, 1)
	}
}

// Stop requests loop to exit. Current iteration is completed. Stop may
// be called from any goroutine and any number of times. Scheduler which
// never ran becomes stopped immediately.
func (s *StandaloneScheduler) Stop() {
	atomic.StoreInt32(&s.stop, 1)
	if atomic.CompareAndSwapInt32(&s.state, int32(Idle), int32(Stopped)) {
		s.finish()
	}
}

func (s *StandaloneScheduler) finish() {
	s.doneOnce.Do(func() {
		atomic.StoreInt32(&s.state, int32(Stopped))
		// Closures which were never run are reported as done.
		s.mu.Lock()
		s.disposed = true
		for s.pending.Len() > 0 {
			items, err := s.pending.Get(s.pending.Len())
			if err != nil {
				break
			}
			for _, item := range items {
				if r := item.(request); r.done != nil {
					close(r.done)
				}
			}
		}
		s.pending.Dispose()
		atomic.StoreInt32(&s.pendingCnt, 0)
		s.mu.Unlock()
		close(s.done)
		common.LogDebug(common.Debug, "Scheduler of core", s.core, "stopped after", s.Iterations(), "iterations")
	})
}
