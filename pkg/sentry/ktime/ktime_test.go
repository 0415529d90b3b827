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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testRecorder struct {
	vals []int
}

func (r *testRecorder) listener(val int) Listener {
	return ListenerFunc(func(int64) {
		r.vals = append(r.vals, val)
	})
}

func TestSyntheticClockNow(t *testing.T) {
	c := NewSyntheticClock()
	if got := c.NowMS(); got != 0 {
		t.Errorf("new SyntheticClock: NowMS() = %v, want 0", got)
	}
	c.Store(1000)
	if got := c.NowMS(); got != 1000 {
		t.Errorf("after Store: NowMS() = %v, want 1000", got)
	}
	c.Add(10)
	if got := c.NowMS(); got != 1010 {
		t.Errorf("after Add: NowMS() = %v, want 1010", got)
	}
}

func TestSyntheticClockBackwardsPanics(t *testing.T) {
	c := NewSyntheticClock()
	c.Store(5)
	defer func() {
		if recover() == nil {
			t.Errorf("Store(4) after Store(5) did not panic")
		}
	}()
	c.Store(4)
}

func TestSyntheticTimerOrder(t *testing.T) {
	c := NewSyntheticClock()
	var r testRecorder

	// Timers sharing a deadline fire in insertion order.
	c.AddTimer(2, r.listener(0))
	c.AddTimer(4, r.listener(1))
	c.AddTimer(5, r.listener(2))
	c.AddTimer(6, r.listener(3))
	c.AddTimer(6, r.listener(4))

	for _, step := range []struct {
		now  int64
		want []int
	}{
		{1, nil},
		{2, []int{0}},
		{3, []int{0}},
		{5, []int{0, 1, 2}},
		{6, []int{0, 1, 2, 3, 4}},
		{9, []int{0, 1, 2, 3, 4}},
	} {
		c.Store(step.now)
		if diff := cmp.Diff(step.want, r.vals); diff != "" {
			t.Errorf("at time %d (-want +got):\n%s", step.now, diff)
		}
	}
	if got := c.Pending(); got != 0 {
		t.Errorf("Pending() got: %d, expected: 0", got)
	}
}

func TestSyntheticPastDeadlineFiresImmediately(t *testing.T) {
	c := NewSyntheticClock()
	c.Store(10)
	var r testRecorder
	c.AddTimer(10, r.listener(7))
	if diff := cmp.Diff([]int{7}, r.vals); diff != "" {
		t.Errorf("past deadline (-want +got):\n%s", diff)
	}
	if got := c.Pending(); got != 0 {
		t.Errorf("Pending() got: %d, expected: 0", got)
	}
}

func TestAdvanceToNext(t *testing.T) {
	c := NewSyntheticClock()
	var r testRecorder
	if c.AdvanceToNext() {
		t.Fatalf("AdvanceToNext on empty clock got true, expected false")
	}
	c.AddTimer(30, r.listener(1))
	c.AddTimer(20, r.listener(0))
	if d, ok := c.NextDeadline(); !ok || d != 20 {
		t.Fatalf("NextDeadline got: (%d, %v), expected: (20, true)", d, ok)
	}
	if !c.AdvanceToNext() {
		t.Fatalf("AdvanceToNext got false, expected true")
	}
	if got := c.NowMS(); got != 20 {
		t.Errorf("NowMS() got: %d, expected: 20", got)
	}
	if diff := cmp.Diff([]int{0}, r.vals); diff != "" {
		t.Errorf("after first advance (-want +got):\n%s", diff)
	}
	c.AdvanceToNext()
	if diff := cmp.Diff([]int{0, 1}, r.vals); diff != "" {
		t.Errorf("after second advance (-want +got):\n%s", diff)
	}
}

func TestListenerMayAddTimers(t *testing.T) {
	c := NewSyntheticClock()
	var r testRecorder
	c.AddTimer(1, ListenerFunc(func(now int64) {
		r.vals = append(r.vals, 0)
		c.AddTimer(now+1, r.listener(1))
	}))
	c.Store(1)
	c.Store(2)
	if diff := cmp.Diff([]int{0, 1}, r.vals); diff != "" {
		t.Errorf("chained timers (-want +got):\n%s", diff)
	}
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	defer c.Stop()

	start := c.NowMS()
	l, ch := NewChannelNotifier()
	c.AddTimer(start+20, l)
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatalf("timer did not fire")
	}
	if got := c.NowMS(); got < start+20 {
		t.Errorf("timer fired at %d, before deadline %d", got, start+20)
	}
	// The listener has returned once the firing timer is no longer pending.
	for deadline := time.Now().Add(10 * time.Second); c.Pending() != 0; {
		if time.Now().After(deadline) {
			t.Fatalf("Pending() stuck at %d", c.Pending())
		}
		time.Sleep(time.Millisecond)
	}
}
