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

package kernel

import (
	"fmt"
	"sync"

	"taskcore.dev/taskcore/pkg/errors/kerr"
	"taskcore.dev/taskcore/pkg/log"
	"taskcore.dev/taskcore/pkg/sentry/kernel/ksync"
	"taskcore.dev/taskcore/pkg/sentry/kernel/ledger"
)

// Process is a group of tasks sharing synchronization handles and a
// resource ledger.
type Process struct {
	// immutable
	k       *Kernel
	pid     ThreadID
	name    string
	entries []EntryFunc

	// mu serializes the process's system calls that touch shared state. It
	// is dropped while a task is off the processor.
	mu sync.Mutex

	// tasks is indexed by thread id. A reaped task leaves nil. Protected by
	// mu.
	tasks []*Task

	// Handle tables. Protected by mu.
	locks    slotTable[ksync.Lock]
	sems     slotTable[ksync.Semaphore]
	condvars slotTable[ksync.Condvar]

	// detect enables the safety check on acquisitions. Protected by mu.
	detect bool

	// ledger has its own lock, but is only mutated with mu held so that it
	// stays in step with the primitives.
	ledger *ledger.Ledger

	// live is the number of tasks that have not exited. Protected by mu.
	live int

	// done is closed when the last task exits.
	done chan struct{}
}

// CreateProcess creates a process whose main thread runs entries[0] with
// argument 0. The remaining entries may be started with thread_create by
// index.
func (k *Kernel) CreateProcess(name string, entries ...EntryFunc) (*Process, error) {
	if len(entries) == 0 || entries[0] == nil {
		return nil, fmt.Errorf("process %q has no main entry point", name)
	}
	k.mu.Lock()
	p := &Process{
		k:       k,
		pid:     k.nextPID,
		name:    name,
		entries: entries,
		ledger:  ledger.New(),
		done:    make(chan struct{}),
	}
	k.nextPID++
	k.processes[p.pid] = p
	k.mu.Unlock()

	p.mu.Lock()
	t := p.newTaskLocked(entries[0], 0)
	p.mu.Unlock()
	k.enqueue(t)
	log.Infof("created process %q pid[%d]", name, p.pid)
	return p, nil
}

// Preconditions: p.mu is locked.
func (p *Process) newTaskLocked(entry EntryFunc, arg int64) *Task {
	tid := ThreadID(len(p.tasks))
	t := p.k.newTask(p, tid, entry, arg)
	p.tasks = append(p.tasks, t)
	p.live++
	return t
}

// PID returns the process id.
func (p *Process) PID() ThreadID {
	return p.pid
}

// Name returns the name given at creation.
func (p *Process) Name() string {
	return p.name
}

// Task returns the task with the given thread id, if it has not been reaped.
func (p *Process) Task(tid ThreadID) (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tid < 0 || int(tid) >= len(p.tasks) || p.tasks[tid] == nil {
		return nil, false
	}
	return p.tasks[tid], true
}

// Ledger returns the process's resource ledger.
func (p *Process) Ledger() *ledger.Ledger {
	return p.ledger
}

// Done returns a channel that is closed when every task of p has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// DeadlockDetection reports whether acquisitions are checked for safety.
func (p *Process) DeadlockDetection() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detect
}

// taskExited zeroes t's ledger rows.
func (p *Process) taskExited(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger.Exit(int(t.tid))
	p.live--
	if p.live == 0 {
		close(p.done)
		log.Infof("process %q pid[%d] exited", p.name, p.pid)
	}
}

// ThreadCreate starts a new thread running the process entry point with
// the given index. It returns the new thread id.
func (t *Task) ThreadCreate(entry int64, arg int64) (ThreadID, error) {
	p := t.p
	p.mu.Lock()
	if entry < 0 || entry >= int64(len(p.entries)) || p.entries[entry] == nil {
		p.mu.Unlock()
		return 0, kerr.EINVAL
	}
	nt := p.newTaskLocked(p.entries[entry], arg)
	p.mu.Unlock()
	t.k.enqueue(nt)
	return nt.tid, nil
}

// WaitTID reaps the exited thread tid and returns its exit code. It fails
// with ESRCH if tid is the caller or does not exist, and with EAGAIN if the
// thread is still running.
func (t *Task) WaitTID(tid ThreadID) (int64, error) {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if tid == t.tid || tid < 0 || int(tid) >= len(p.tasks) || p.tasks[tid] == nil {
		return 0, kerr.ESRCH
	}
	code, exited := p.tasks[tid].ExitCode()
	if !exited {
		return 0, kerr.EAGAIN
	}
	p.tasks[tid] = nil
	return code, nil
}

