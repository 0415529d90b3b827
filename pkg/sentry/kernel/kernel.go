// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kernel provides the task and process model of the kernel core and
// the dispatcher that runs tasks on its single logical processor.
//
// Each Task is backed by a goroutine. The dispatcher hands a permit to
// exactly one task at a time and waits until that task yields, blocks or
// exits. User programs are Go functions that make system calls through
// Task.Syscall.
//
// Lock order:
//
//	Process.mu
//		primitive mu (ksync)
//			Scheduler.mu
//				Task.mu
//	Kernel.mu
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/log"
	"taskcore.dev/taskcore/pkg/metric"
	"taskcore.dev/taskcore/pkg/sentry/kernel/sched"
	"taskcore.dev/taskcore/pkg/sentry/ktime"
)

// ErrAllBlocked is returned by Run when live tasks remain but none is
// runnable and no timer can wake one.
var ErrAllBlocked = errors.New("all live tasks are blocked")

var dispatches = metric.MustCreateNewUint64Metric("/sched/dispatches", "Number of times a task was given the processor.")

// Config configures a Kernel.
type Config struct {
	// Policy is the ready queue selection policy.
	Policy sched.Policy

	// BigStride is the dividend of the stride pass. Zero means
	// sched.DefaultBigStride.
	BigStride uint64

	// DefaultPriority is the priority of new tasks. Zero means
	// sched.DefaultPriority.
	DefaultPriority int64

	// Clock is the kernel time source. Nil means a new SyntheticClock.
	Clock ktime.Clock

	// SyscallTable handles Task.Syscall.
	SyscallTable *SyscallTable
}

// Kernel owns the ready queue, the clock and all processes.
type Kernel struct {
	bigStride       uint64
	defaultPriority int64
	clock           ktime.Clock
	table           *SyscallTable

	sched *sched.Scheduler[*Task]

	// switched receives one value each time the running task gives up the
	// processor.
	switched chan struct{}

	// ready is signalled when a task is woken outside the dispatcher, e.g.
	// by a host timer.
	ready chan struct{}

	// stop is closed when Run returns; parked task goroutines exit.
	stop     chan struct{}
	stopOnce sync.Once

	// live is the number of tasks that have not exited.
	live atomic.Int32

	mu sync.Mutex
	// processes and nextPID are protected by mu.
	processes map[ThreadID]*Process
	nextPID   ThreadID
}

// New returns a kernel with no processes.
func New(cfg Config) (*Kernel, error) {
	if cfg.SyscallTable == nil {
		return nil, fmt.Errorf("no syscall table")
	}
	if cfg.BigStride == 0 {
		cfg.BigStride = sched.DefaultBigStride
	}
	if cfg.DefaultPriority == 0 {
		cfg.DefaultPriority = sched.DefaultPriority
	}
	if cfg.DefaultPriority < 2 {
		return nil, fmt.Errorf("default priority %d is below the minimum of 2", cfg.DefaultPriority)
	}
	if cfg.Clock == nil {
		cfg.Clock = ktime.NewSyntheticClock()
	}
	return &Kernel{
		bigStride:       cfg.BigStride,
		defaultPriority: cfg.DefaultPriority,
		clock:           cfg.Clock,
		table:           cfg.SyscallTable,
		sched:           sched.New[*Task](cfg.Policy),
		switched:        make(chan struct{}),
		ready:           make(chan struct{}, 1),
		stop:            make(chan struct{}),
		processes:       make(map[ThreadID]*Process),
		nextPID:         1,
	}, nil
}

// Clock returns the kernel's time source.
func (k *Kernel) Clock() ktime.Clock {
	return k.clock
}

// SyscallTable returns the table used by Task.Syscall.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.table
}

// Scheduler returns the ready queue.
func (k *Kernel) Scheduler() *sched.Scheduler[*Task] {
	return k.sched
}

// LiveTasks returns the number of tasks that have not exited.
func (k *Kernel) LiveTasks() int {
	return int(k.live.Load())
}

// Process returns the process with the given pid.
func (k *Kernel) Process(pid ThreadID) (*Process, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.processes[pid]
	return p, ok
}

// enqueue makes t runnable.
func (k *Kernel) enqueue(t *Task) {
	k.sched.Add(t)
	select {
	case k.ready <- struct{}{}:
	default:
	}
}

// Run dispatches tasks until none is left alive. It returns ErrAllBlocked if
// the remaining tasks can never run again, or ctx.Err() if ctx is cancelled
// between dispatches. Run may be called only once.
func (k *Kernel) Run(ctx context.Context) error {
	defer k.stopOnce.Do(func() { close(k.stop) })
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if k.live.Load() == 0 {
			return nil
		}
		t, ok := k.sched.Fetch()
		if !ok {
			if err := k.idle(ctx); err != nil {
				return err
			}
			continue
		}
		k.dispatch(t)
	}
}

// idle waits for a task to become runnable.
func (k *Kernel) idle(ctx context.Context) error {
	if a, ok := k.clock.(ktime.Advancer); ok {
		if a.AdvanceToNext() {
			return nil
		}
		return ErrAllBlocked
	}
	if k.clock.Pending() == 0 && k.sched.Len() == 0 {
		return ErrAllBlocked
	}
	select {
	case <-k.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch runs t until it gives up the processor.
func (k *Kernel) dispatch(t *Task) {
	if k.sched.Policy() == sched.Stride {
		t.Advance(k.bigStride)
	}
	t.mu.Lock()
	if t.status != rcore.TaskReady {
		t.mu.Unlock()
		panic(fmt.Sprintf("dispatching task %v in state %v", t, t.status))
	}
	t.status = rcore.TaskRunning
	if t.firstRun < 0 {
		t.firstRun = k.clock.NowMS()
	}
	t.mu.Unlock()
	dispatches.Increment()
	if log.IsLogging(log.Debug) {
		log.Debugf("dispatch %v stride %d", t, t.Stride())
	}
	t.permit <- struct{}{}
	<-k.switched
}
