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
	"runtime"
	"sync"

	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/ilist"
	"taskcore.dev/taskcore/pkg/log"
	"taskcore.dev/taskcore/pkg/sentry/kernel/sched"
)

// ThreadID is a generic thread identifier. Process ids and thread ids share
// this type; thread ids are local to their process.
type ThreadID int32

// String returns a decimal representation of the ThreadID.
func (tid ThreadID) String() string {
	return fmt.Sprintf("%d", tid)
}

// EntryFunc is the body of a user thread. Its return value is the thread's
// exit code.
type EntryFunc func(t *Task, arg int64) int64

// Task is a thread of a user process.
type Task struct {
	// Entry links the Task into the ready queue.
	ilist.Entry[*Task]

	// StrideState is the task's stride scheduling state.
	sched.StrideState

	// immutable
	k     *Kernel
	p     *Process
	tid   ThreadID
	entry EntryFunc
	arg   int64

	// permit is sent on by the dispatcher to let the task run.
	permit chan struct{}

	mu sync.Mutex
	// status is protected by mu.
	status rcore.TaskStatus
	// wakePending records a Wake received while the task was still running;
	// the next Block returns immediately. Protected by mu.
	wakePending bool
	// exitCode is valid once status is TaskZombie. Protected by mu.
	exitCode int64
	// firstRun is the clock time of the first dispatch, or -1. Protected by
	// mu.
	firstRun int64
	// syscallTimes counts syscalls by number. Protected by mu.
	syscallTimes [rcore.MaxSyscallNum]uint32

	// killed is set when the kernel stops while the task is parked. Only
	// accessed by the task goroutine.
	killed bool
}

// newTask creates a Ready task and starts its goroutine. The caller adds it
// to the ready queue.
func (k *Kernel) newTask(p *Process, tid ThreadID, entry EntryFunc, arg int64) *Task {
	t := &Task{
		k:        k,
		p:        p,
		tid:      tid,
		entry:    entry,
		arg:      arg,
		permit:   make(chan struct{}, 1),
		status:   rcore.TaskReady,
		firstRun: -1,
	}
	if err := t.SetPriority(k.defaultPriority); err != nil {
		panic(fmt.Sprintf("invalid default priority %d: %v", k.defaultPriority, err))
	}
	k.live.Add(1)
	go t.run()
	return t
}

// String implements fmt.Stringer.String.
func (t *Task) String() string {
	return fmt.Sprintf("pid[%d] tid[%d]", t.p.pid, t.tid)
}

// Kernel returns the kernel t runs on.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Process returns the process t belongs to.
func (t *Task) Process() *Process {
	return t.p
}

// ThreadID returns t's thread id within its process.
func (t *Task) ThreadID() ThreadID {
	return t.tid
}

// Status returns t's current state.
func (t *Task) Status() rcore.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// ExitCode returns t's exit code and whether t has exited.
func (t *Task) ExitCode() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode, t.status == rcore.TaskZombie
}

// run is the task goroutine.
func (t *Task) run() {
	defer func() {
		if !t.killed {
			t.k.switched <- struct{}{}
		}
	}()
	t.waitPermit()
	t.exit(t.entry(t, t.arg))
}

// waitPermit parks the goroutine until the dispatcher lets it run. If the
// kernel stops first, the goroutine exits.
func (t *Task) waitPermit() {
	select {
	case <-t.permit:
	case <-t.k.stop:
		t.killed = true
		runtime.Goexit()
	}
}

// Block gives up the processor until Wake is called. If Wake was already
// called since the last Block, Block returns immediately.
//
// Preconditions: t is running and the caller holds no locks.
func (t *Task) Block() {
	t.mu.Lock()
	if t.wakePending {
		t.wakePending = false
		t.mu.Unlock()
		return
	}
	t.status = rcore.TaskBlocked
	t.mu.Unlock()
	t.k.switched <- struct{}{}
	t.waitPermit()
}

// Wake makes a blocked task runnable. Waking a task that is still running
// records the wake for its next Block.
func (t *Task) Wake() {
	t.mu.Lock()
	switch {
	case t.status == rcore.TaskBlocked:
		t.status = rcore.TaskReady
		t.mu.Unlock()
		t.k.enqueue(t)
	case t.status == rcore.TaskRunning && !t.wakePending:
		t.wakePending = true
		t.mu.Unlock()
	default:
		s, pending := t.status, t.wakePending
		t.mu.Unlock()
		panic(fmt.Sprintf("waking %v in state %v (wake pending: %v)", t, s, pending))
	}
}

// Yield gives up the processor and re-enters the ready queue.
//
// Preconditions: t is running and the caller holds no locks.
func (t *Task) Yield() {
	t.mu.Lock()
	t.status = rcore.TaskReady
	t.mu.Unlock()
	t.k.sched.Add(t)
	t.k.switched <- struct{}{}
	t.waitPermit()
}

// Sleep blocks t for at least ms milliseconds of kernel time.
func (t *Task) Sleep(ms int64) {
	if ms <= 0 {
		return
	}
	deadline := t.k.clock.NowMS() + ms
	t.k.clock.AddTimer(deadline, sleepListener{t})
	t.Block()
}

type sleepListener struct {
	t *Task
}

// NotifyTimer implements ktime.Listener.NotifyTimer.
func (l sleepListener) NotifyTimer(int64) {
	l.t.Wake()
}

// Exit terminates t with the given code. It does not return.
func (t *Task) Exit(code int64) {
	t.exit(code)
	runtime.Goexit()
}

// exit marks t as exited. The deferred handler in run gives up the processor.
func (t *Task) exit(code int64) {
	t.mu.Lock()
	t.status = rcore.TaskZombie
	t.exitCode = code
	t.mu.Unlock()
	t.p.taskExited(t)
	t.k.live.Add(-1)
	log.Debugf("%v exited with code %d", t, code)
}

// Info returns the task_info view of t.
func (t *Task) Info() rcore.TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	info := rcore.TaskInfo{
		Status:       t.status,
		SyscallTimes: t.syscallTimes,
	}
	if t.firstRun >= 0 {
		info.Time = uint64(t.k.clock.NowMS() - t.firstRun)
	}
	return info
}
