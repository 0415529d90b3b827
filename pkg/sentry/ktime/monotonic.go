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
	"time"

	"golang.org/x/sys/unix"
)

// MonotonicClock is a Clock backed by the host's CLOCK_MONOTONIC. Timers fire
// from a background goroutine started by NewMonotonicClock and stopped by
// Stop.
type MonotonicClock struct {
	// base is the host monotonic time, in nanoseconds, at creation.
	base int64

	mu sync.Mutex
	// timers is protected by mu.
	timers timerSet
	// firing is the number of expired timers whose listeners have not yet
	// returned. Protected by mu.
	firing int
	// kick is signalled whenever the earliest deadline may have changed.
	kick chan struct{}
	done chan struct{}
	stop sync.Once
}

func monotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		panic(fmt.Sprintf("clock_gettime(CLOCK_MONOTONIC): %v", err))
	}
	return ts.Nano()
}

// NewMonotonicClock returns a MonotonicClock whose time 0 is now.
func NewMonotonicClock() *MonotonicClock {
	c := &MonotonicClock{
		base:   monotonicNanos(),
		timers: newTimerSet(),
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// NowMS implements Clock.NowMS.
func (c *MonotonicClock) NowMS() int64 {
	return (monotonicNanos() - c.base) / int64(time.Millisecond)
}

// AddTimer implements Clock.AddTimer.
func (c *MonotonicClock) AddTimer(deadline int64, l Listener) {
	if now := c.NowMS(); deadline <= now {
		l.NotifyTimer(now)
		return
	}
	c.mu.Lock()
	c.timers.add(deadline, l)
	c.mu.Unlock()
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Pending implements Clock.Pending.
func (c *MonotonicClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers.len() + c.firing
}

// Stop terminates the timer goroutine. Pending timers never fire.
func (c *MonotonicClock) Stop() {
	c.stop.Do(func() { close(c.done) })
}

func (c *MonotonicClock) run() {
	t := time.NewTimer(time.Hour)
	defer t.Stop()
	for {
		now := c.NowMS()
		c.mu.Lock()
		expired := c.timers.popExpired(now)
		next, ok := c.timers.next()
		c.firing = len(expired)
		c.mu.Unlock()
		for _, e := range expired {
			e.listener.NotifyTimer(now)
			c.mu.Lock()
			c.firing--
			c.mu.Unlock()
		}
		if len(expired) > 0 {
			// Listeners may have added timers.
			continue
		}

		wait := time.Hour
		if ok {
			wait = time.Duration(next-now) * time.Millisecond
		}
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(wait)
		select {
		case <-c.done:
			return
		case <-c.kick:
		case <-t.C:
		}
	}
}
