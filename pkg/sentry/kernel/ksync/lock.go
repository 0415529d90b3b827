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

package ksync

import (
	"fmt"
	"sync"
	"time"

	"taskcore.dev/taskcore/pkg/errors/kerr"
	"taskcore.dev/taskcore/pkg/log"
)

// LockKind selects how a Lock waits.
type LockKind int

const (
	// Spin locks poll their state, yielding the processor between polls.
	Spin LockKind = iota

	// Blocking locks queue contenders and hand ownership directly to the
	// oldest one on unlock.
	Blocking
)

// String implements fmt.Stringer.String.
func (k LockKind) String() string {
	switch k {
	case Spin:
		return "spin"
	case Blocking:
		return "blocking"
	default:
		return fmt.Sprintf("LockKind(%d)", int(k))
	}
}

// ErrNotHeld is returned when a task unlocks a lock it does not own.
var ErrNotHeld = kerr.EINVAL

// Lock is a mutual exclusion lock owned by a task.
type Lock struct {
	kind LockKind

	mu sync.Mutex
	// owner is nil when the lock is free. Protected by mu.
	owner Task
	// waiters is only used by blocking locks. Protected by mu.
	waiters waitQueue

	spinLog log.Logger
}

// NewLock returns a free lock of the given kind.
func NewLock(kind LockKind) *Lock {
	l := &Lock{kind: kind}
	if kind == Spin {
		l.spinLog = log.BasicRateLimitedLogger(time.Second)
	}
	return l
}

// Kind returns the kind the lock was created with.
func (l *Lock) Kind() LockKind {
	return l.kind
}

// TryLock acquires the lock for t if it is free.
func (l *Lock) TryLock(t Task) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != nil {
		return false
	}
	l.owner = t
	return true
}

// Lock acquires the lock for t, giving up the processor until it succeeds.
func (l *Lock) Lock(t Task) {
	if l.kind == Spin {
		for polls := 0; !l.TryLock(t); polls++ {
			if polls == 0 {
				blocks.Increment("lock")
			}
			l.spinLog.Debugf("spin lock contended, %d polls", polls+1)
			t.Yield()
		}
		return
	}

	l.mu.Lock()
	if l.owner == nil {
		l.owner = t
		l.mu.Unlock()
		return
	}
	l.waiters.push(t)
	l.mu.Unlock()
	blocks.Increment("lock")
	// Unlock makes t the owner before waking it.
	t.Block()
}

// Unlock releases the lock held by t. For a blocking lock with waiters,
// ownership passes directly to the oldest waiter, which is woken and
// returned.
func (l *Lock) Unlock(t Task) (woken Task, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != t || t == nil {
		return nil, ErrNotHeld
	}
	next := l.waiters.pop()
	l.owner = next
	if next != nil {
		next.Wake()
	}
	return next, nil
}

// Owner returns the task holding the lock, or nil.
func (l *Lock) Owner() Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Waiters returns the number of tasks queued on the lock.
func (l *Lock) Waiters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.len()
}
