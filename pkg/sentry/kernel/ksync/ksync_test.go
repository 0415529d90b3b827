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
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
	"taskcore.dev/taskcore/pkg/errors/kerr"
)

// testTask is a Task backed by a goroutine. A wake that arrives before Block
// is kept, as the kernel's tasks do.
type testTask struct {
	name   string
	woken  chan struct{}
	yields atomic.Int32
}

func newTestTask(name string) *testTask {
	return &testTask{name: name, woken: make(chan struct{}, 1)}
}

func (t *testTask) Block() { <-t.woken }

func (t *testTask) Wake() {
	select {
	case t.woken <- struct{}{}:
	default:
		panic(fmt.Sprintf("%s woken twice", t.name))
	}
}

func (t *testTask) Yield() {
	t.yields.Add(1)
	runtime.Gosched()
}

func (t *testTask) String() string { return t.name }

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// blocked reports whether done is still open after a short grace period.
func blocked(done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	case <-time.After(20 * time.Millisecond):
		return true
	}
}

func TestBlockingLockHandOff(t *testing.T) {
	l := NewLock(Blocking)
	a, b := newTestTask("a"), newTestTask("b")
	l.Lock(a)

	var g errgroup.Group
	g.Go(func() error {
		l.Lock(b)
		if owner := l.Owner(); owner != b {
			return fmt.Errorf("owner after wake got: %v, expected: b", owner)
		}
		return nil
	})
	waitFor(t, "b to queue", func() bool { return l.Waiters() == 1 })

	woken, err := l.Unlock(a)
	if err != nil {
		t.Fatalf("Unlock(a) got error: %v", err)
	}
	if woken != b {
		t.Errorf("Unlock woke: %v, expected: b", woken)
	}
	// Ownership passed directly; the lock was never free.
	if owner := l.Owner(); owner != b {
		t.Errorf("owner after Unlock got: %v, expected: b", owner)
	}
	if err := g.Wait(); err != nil {
		t.Error(err)
	}
}

func TestBlockingLockFIFO(t *testing.T) {
	l := NewLock(Blocking)
	holder := newTestTask("holder")
	l.Lock(holder)

	var (
		g     errgroup.Group
		tasks []*testTask
	)
	for i := 0; i < 4; i++ {
		i := i
		w := newTestTask(fmt.Sprintf("w%d", i))
		tasks = append(tasks, w)
		g.Go(func() error {
			l.Lock(w)
			return nil
		})
		waitFor(t, w.name+" to queue", func() bool { return l.Waiters() == i+1 })
	}

	var order []string
	cur := Task(holder)
	for range tasks {
		next, err := l.Unlock(cur)
		if err != nil {
			t.Fatalf("Unlock(%v): %v", cur, err)
		}
		order = append(order, next.(*testTask).name)
		cur = next
	}
	if woken, err := l.Unlock(cur); woken != nil || err != nil {
		t.Errorf("final Unlock got: (%v, %v), expected: (nil, nil)", woken, err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"w0", "w1", "w2", "w3"}, order); diff != "" {
		t.Errorf("wake order mismatch (-want +got):\n%s", diff)
	}
	if owner := l.Owner(); owner != nil {
		t.Errorf("owner after last Unlock got: %v, expected: nil", owner)
	}
}

func TestUnlockNotHeld(t *testing.T) {
	for _, kind := range []LockKind{Spin, Blocking} {
		kind := kind
		t.Run(kind.String(), func(t *testing.T) {
			l := NewLock(kind)
			a, b := newTestTask("a"), newTestTask("b")
			if _, err := l.Unlock(a); !kerr.Equals(ErrNotHeld, err) {
				t.Errorf("Unlock of free lock got: %v, expected: %v", err, ErrNotHeld)
			}
			l.Lock(a)
			if _, err := l.Unlock(b); !kerr.Equals(ErrNotHeld, err) {
				t.Errorf("Unlock by non-owner got: %v, expected: %v", err, ErrNotHeld)
			}
			if owner := l.Owner(); owner != a {
				t.Errorf("owner after failed Unlock got: %v, expected: a", owner)
			}
		})
	}
}

func TestSpinLock(t *testing.T) {
	l := NewLock(Spin)
	a, b := newTestTask("a"), newTestTask("b")
	l.Lock(a)
	if l.TryLock(b) {
		t.Fatalf("TryLock of held lock succeeded")
	}

	done := make(chan struct{})
	go func() {
		l.Lock(b)
		close(done)
	}()
	waitFor(t, "b to spin", func() bool { return b.yields.Load() > 0 })
	if l.Waiters() != 0 {
		t.Errorf("spin lock queued a waiter")
	}
	woken, err := l.Unlock(a)
	if woken != nil || err != nil {
		t.Errorf("Unlock got: (%v, %v), expected: (nil, nil)", woken, err)
	}
	<-done
	if owner := l.Owner(); owner != b {
		t.Errorf("owner got: %v, expected: b", owner)
	}
}

func TestSemaphore(t *testing.T) {
	s := NewSemaphore(1)
	a, b, c := newTestTask("a"), newTestTask("b"), newTestTask("c")
	s.Down(a)
	if got := s.Count(); got != 0 {
		t.Fatalf("Count after Down got: %d, expected: 0", got)
	}

	var g errgroup.Group
	g.Go(func() error { s.Down(b); return nil })
	waitFor(t, "b to wait", func() bool { return s.Count() == -1 })
	g.Go(func() error { s.Down(c); return nil })
	waitFor(t, "c to wait", func() bool { return s.Count() == -2 })

	if woken := s.Up(); woken != b {
		t.Errorf("first Up woke: %v, expected: b", woken)
	}
	if woken := s.Up(); woken != c {
		t.Errorf("second Up woke: %v, expected: c", woken)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if woken := s.Up(); woken != nil {
		t.Errorf("Up with no waiters woke: %v", woken)
	}
	if got := s.Count(); got != 1 {
		t.Errorf("final Count got: %d, expected: 1", got)
	}
}

func TestCondvarSignalNotBuffered(t *testing.T) {
	cv := NewCondvar()
	l := NewLock(Blocking)
	a := newTestTask("a")

	if woken := cv.Signal(); woken != nil {
		t.Fatalf("Signal with no waiters woke: %v", woken)
	}

	l.Lock(a)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := cv.Wait(a, func() error { _, err := l.Unlock(a); return err }); err != nil {
			t.Errorf("Wait got error: %v", err)
		}
	}()
	waitFor(t, "a to wait", func() bool { return cv.Waiters() == 1 })
	if !blocked(done) {
		t.Fatalf("Wait returned on an earlier signal")
	}
	if owner := l.Owner(); owner != nil {
		t.Errorf("Wait did not release the lock, owner: %v", owner)
	}

	if woken := cv.Signal(); woken != a {
		t.Errorf("Signal woke: %v, expected: a", woken)
	}
	<-done
	// No automatic re-acquire.
	if owner := l.Owner(); owner != nil {
		t.Errorf("owner after wake got: %v, expected: nil", owner)
	}
}

func TestCondvarWaitUnlockFails(t *testing.T) {
	cv := NewCondvar()
	l := NewLock(Blocking)
	a := newTestTask("a")
	err := cv.Wait(a, func() error { _, err := l.Unlock(a); return err })
	if !kerr.Equals(ErrNotHeld, err) {
		t.Errorf("Wait with unheld lock got: %v, expected: %v", err, ErrNotHeld)
	}
	if n := cv.Waiters(); n != 0 {
		t.Errorf("Waiters after failed Wait got: %d, expected: 0", n)
	}
}

func TestCondvarFIFO(t *testing.T) {
	cv := NewCondvar()
	var g errgroup.Group
	var tasks []*testTask
	for i := 0; i < 3; i++ {
		i := i
		w := newTestTask(fmt.Sprintf("w%d", i))
		tasks = append(tasks, w)
		g.Go(func() error { return cv.Wait(w, func() error { return nil }) })
		waitFor(t, w.name+" to wait", func() bool { return cv.Waiters() == i+1 })
	}
	for _, want := range tasks {
		if got := cv.Signal(); got != want {
			t.Errorf("Signal woke: %v, expected: %v", got, want)
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
