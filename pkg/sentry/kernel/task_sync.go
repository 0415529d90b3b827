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
	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/errors/kerr"
	"taskcore.dev/taskcore/pkg/log"
	"taskcore.dev/taskcore/pkg/metric"
	"taskcore.dev/taskcore/pkg/sentry/kernel/ksync"
)

var refused = metric.MustCreateNewUint64Metric("/ledger/refused", "Number of acquisitions refused by deadlock detection.",
	metric.NewField("kind", []string{rcore.ResourceLock.String(), rcore.ResourceSemaphore.String()}))

// lockedTask is the ksync.Task view of a task running a system call with its
// process mutex held. The mutex is dropped while the task is off the
// processor and retaken before it continues.
type lockedTask struct {
	t *Task
}

// Block implements ksync.Task.Block.
func (lt lockedTask) Block() {
	lt.t.p.mu.Unlock()
	// Deferred so that the mutex is held again if the goroutine exits
	// while parked.
	defer lt.t.p.mu.Lock()
	lt.t.Block()
}

// Wake implements ksync.Task.Wake.
func (lt lockedTask) Wake() {
	lt.t.Wake()
}

// Yield implements ksync.Task.Yield.
func (lt lockedTask) Yield() {
	lt.t.p.mu.Unlock()
	defer lt.t.p.mu.Lock()
	lt.t.Yield()
}

// String implements fmt.Stringer.String.
func (lt lockedTask) String() string {
	return lt.t.String()
}

// tidOf returns the thread id of a task woken by a primitive.
func tidOf(woken ksync.Task) int {
	return int(woken.(lockedTask).t.tid)
}

// acquireLocked records t's request for a resource in the ledger, running
// the safety check if detection is enabled. granted reports whether a free
// instance was allocated; otherwise the caller will wait for a hand-off.
//
// Preconditions: p.mu is locked.
func (p *Process) acquireLocked(t *Task, kind rcore.ResourceKind, id int) (granted bool, err error) {
	tid := int(t.tid)
	if !p.detect {
		return p.ledger.Grant(kind, id, tid), nil
	}
	granted, err = p.ledger.Request(kind, id, tid)
	if err != nil {
		refused.Increment(kind.String())
		log.Warningf("%v: %v %d refused, would deadlock", t, kind, id)
	}
	return granted, err
}

// EnableDeadlockDetect turns the safety check on or off for t's process.
func (t *Task) EnableDeadlockDetect(enabled bool) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	t.p.detect = enabled
}

// MutexCreate creates a lock and returns its handle.
func (t *Task) MutexCreate(blocking bool) int {
	kind := ksync.Spin
	if blocking {
		kind = ksync.Blocking
	}
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.locks.Add(ksync.NewLock(kind))
	p.ledger.AddResource(rcore.ResourceLock, id, 1)
	return id
}

// MutexLock acquires lock id, giving up the processor while it is held by
// another task.
func (t *Task) MutexLock(id int64) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks.Get(id)
	if !ok {
		return kerr.EBADF
	}
	granted, err := p.acquireLocked(t, rcore.ResourceLock, int(id))
	if err != nil {
		return err
	}
	l.Lock(lockedTask{t})
	// A blocking lock is handed over by the unlocker, which also moves the
	// allocation. A spin lock is won by polling.
	if !granted && l.Kind() == ksync.Spin {
		p.ledger.Acquired(rcore.ResourceLock, int(id), int(t.tid))
	}
	return nil
}

// MutexUnlock releases lock id, which t must hold.
func (t *Task) MutexUnlock(id int64) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks.Get(id)
	if !ok {
		return kerr.EBADF
	}
	return p.unlockLocked(t, l, int(id))
}

// Preconditions: p.mu is locked.
func (p *Process) unlockLocked(t *Task, l *ksync.Lock, id int) error {
	if p.ledger.Allocation(rcore.ResourceLock, id, int(t.tid)) == 0 {
		return kerr.EINVAL
	}
	woken, err := l.Unlock(lockedTask{t})
	if err != nil {
		return err
	}
	if woken != nil {
		p.ledger.Transfer(rcore.ResourceLock, id, int(t.tid), tidOf(woken))
	} else {
		p.ledger.Release(rcore.ResourceLock, id, int(t.tid))
	}
	return nil
}

// SemaphoreCreate creates a semaphore with the given count and returns its
// handle.
func (t *Task) SemaphoreCreate(count int64) (int, error) {
	if count < 0 {
		return 0, kerr.EINVAL
	}
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.sems.Add(ksync.NewSemaphore(count))
	p.ledger.AddResource(rcore.ResourceSemaphore, id, count)
	return id, nil
}

// SemaphoreUp releases one instance of semaphore id. If t holds none, the
// instance is new.
func (t *Task) SemaphoreUp(id int64) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sems.Get(id)
	if !ok {
		return kerr.EBADF
	}
	tid := int(t.tid)
	holder := p.ledger.Allocation(rcore.ResourceSemaphore, int(id), tid) > 0
	woken := s.Up()
	switch {
	case holder && woken != nil:
		p.ledger.Transfer(rcore.ResourceSemaphore, int(id), tid, tidOf(woken))
	case holder:
		p.ledger.Release(rcore.ResourceSemaphore, int(id), tid)
	case woken != nil:
		p.ledger.Deposit(int(id))
		p.ledger.Acquired(rcore.ResourceSemaphore, int(id), tidOf(woken))
	default:
		p.ledger.Deposit(int(id))
	}
	return nil
}

// SemaphoreDown acquires one instance of semaphore id, giving up the
// processor until one is handed over if none is free.
func (t *Task) SemaphoreDown(id int64) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sems.Get(id)
	if !ok {
		return kerr.EBADF
	}
	if _, err := p.acquireLocked(t, rcore.ResourceSemaphore, int(id)); err != nil {
		return err
	}
	s.Down(lockedTask{t})
	return nil
}

// CondvarCreate creates a condition variable and returns its handle.
func (t *Task) CondvarCreate() int {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.condvars.Add(ksync.NewCondvar())
}

// CondvarSignal wakes one waiter of condvar id, if any.
func (t *Task) CondvarSignal(id int64) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.condvars.Get(id)
	if !ok {
		return kerr.EBADF
	}
	c.Signal()
	return nil
}

// CondvarWait releases lock lockID and waits on condvar id. The lock is not
// held when CondvarWait returns.
func (t *Task) CondvarWait(id, lockID int64) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.condvars.Get(id)
	if !ok {
		return kerr.EBADF
	}
	l, ok := p.locks.Get(lockID)
	if !ok {
		return kerr.EBADF
	}
	return c.Wait(lockedTask{t}, func() error {
		return p.unlockLocked(t, l, int(lockID))
	})
}
