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

package ktime

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SyntheticClock is a Clock whose current time is set manually by calling
// Store, Add, or AdvanceToNext.
type SyntheticClock struct {
	mu sync.Mutex

	// now is the Clock's current time. Writes to now require that mu is
	// locked.
	now atomic.Int64

	// timers is protected by mu.
	timers timerSet
}

// NewSyntheticClock returns a SyntheticClock at time 0.
func NewSyntheticClock() *SyntheticClock {
	return &SyntheticClock{timers: newTimerSet()}
}

// NowMS implements Clock.NowMS.
func (c *SyntheticClock) NowMS() int64 {
	return c.now.Load()
}

// AddTimer implements Clock.AddTimer.
func (c *SyntheticClock) AddTimer(deadline int64, l Listener) {
	c.mu.Lock()
	now := c.now.Load()
	if deadline <= now {
		c.mu.Unlock()
		l.NotifyTimer(now)
		return
	}
	c.timers.add(deadline, l)
	c.mu.Unlock()
}

// Pending implements Clock.Pending.
func (c *SyntheticClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers.len()
}

// NextDeadline returns the earliest pending deadline.
func (c *SyntheticClock) NextDeadline() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers.next()
}

// Store sets c's current time to now and notifies expired timers.
//
// Preconditions: now >= c.NowMS().
func (c *SyntheticClock) Store(now int64) {
	c.mu.Lock()
	if cur := c.now.Load(); now < cur {
		c.mu.Unlock()
		panic(fmt.Sprintf("synthetic clock moved backwards from %d to %d", cur, now))
	}
	c.now.Store(now)
	expired := c.timers.popExpired(now)
	c.mu.Unlock()
	for _, t := range expired {
		t.listener.NotifyTimer(now)
	}
}

// Add increases c's current time by delta milliseconds and notifies expired
// timers.
func (c *SyntheticClock) Add(delta int64) {
	c.Store(c.NowMS() + delta)
}

// AdvanceToNext implements Advancer.AdvanceToNext.
func (c *SyntheticClock) AdvanceToNext() bool {
	deadline, ok := c.NextDeadline()
	if !ok {
		return false
	}
	c.Store(deadline)
	return true
}
