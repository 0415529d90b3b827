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
	"sync"
)

// Condvar is a condition variable. Signals are not buffered: a Signal with no
// waiter is lost. A woken task does not hold the lock it waited with.
type Condvar struct {
	mu sync.Mutex
	// waiters is protected by mu.
	waiters waitQueue
}

// NewCondvar returns a condition variable with no waiters.
func NewCondvar() *Condvar {
	return &Condvar{}
}

// Wait queues t, calls unlock to release the caller's lock, and blocks until
// signalled. If unlock fails, t is dequeued and the error is returned without
// blocking.
func (c *Condvar) Wait(t Task, unlock func() error) error {
	c.mu.Lock()
	w := c.waiters.push(t)
	c.mu.Unlock()

	if err := unlock(); err != nil {
		c.mu.Lock()
		c.waiters.remove(w)
		c.mu.Unlock()
		return err
	}
	blocks.Increment("condvar")
	t.Block()
	return nil
}

// Signal wakes the oldest waiter, if any, and returns it.
func (c *Condvar) Signal() (woken Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	woken = c.waiters.pop()
	if woken != nil {
		woken.Wake()
	}
	return woken
}

// Waiters returns the number of queued tasks.
func (c *Condvar) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters.len()
}
