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

// Package sched implements the kernel's ready queue.
//
// The queue is shared by every process. It supports two selection policies:
// FIFO, and stride scheduling, where the entity with the smallest
// accumulated stride runs next and each dispatch advances its stride by
// BigStride / priority.
package sched

import (
	"fmt"
	"sync"

	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/errors/kerr"
	"taskcore.dev/taskcore/pkg/ilist"
)

const (
	// DefaultBigStride is the default dividend of the per-dispatch pass.
	DefaultBigStride = 1 << 20

	// DefaultPriority is the priority of new tasks.
	DefaultPriority = 16
)

// Policy selects the next entity to run.
type Policy int

const (
	// FIFO runs entities in the order they became ready.
	FIFO Policy = iota

	// Stride runs the ready entity with the smallest stride.
	Stride
)

// String implements fmt.Stringer.String.
func (p Policy) String() string {
	switch p {
	case FIFO:
		return "fifo"
	case Stride:
		return "stride"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Set implements flag.Value.Set.
func (p *Policy) Set(v string) error {
	switch v {
	case "fifo":
		*p = FIFO
	case "stride":
		*p = Stride
	default:
		return fmt.Errorf("invalid scheduling policy %q", v)
	}
	return nil
}

// Get implements flag.Getter.Get.
func (p *Policy) Get() any {
	return *p
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	return p.Set(string(b))
}

// Entity is an element of the ready queue.
type Entity[E any] interface {
	ilist.Element[E]

	// Stride returns the entity's accumulated stride.
	Stride() uint64
}

// Scheduler is the ready queue. It never blocks.
type Scheduler[E Entity[E]] struct {
	policy Policy

	mu sync.Mutex
	// queue is protected by mu.
	queue ilist.List[E]
	// n is the length of queue. Protected by mu.
	n int
}

// New returns an empty scheduler with the given policy.
func New[E Entity[E]](policy Policy) *Scheduler[E] {
	return &Scheduler[E]{policy: policy}
}

// Policy returns the scheduler's selection policy.
func (s *Scheduler[E]) Policy() Policy {
	return s.policy
}

// Add appends e to the ready queue.
//
// Preconditions: e is not queued.
func (s *Scheduler[E]) Add(e E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.PushBack(e)
	s.n++
}

// Fetch removes and returns the next entity to run. ok is false if the
// queue is empty.
func (s *Scheduler[E]) Fetch() (e E, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy == FIFO {
		e, ok = s.queue.PopFront()
	} else {
		e, ok = s.minStrideLocked()
		if ok {
			s.queue.Remove(e)
		}
	}
	if ok {
		s.n--
	}
	return e, ok
}

// minStrideLocked returns the first entity with the smallest stride.
//
// Preconditions: s.mu is locked.
func (s *Scheduler[E]) minStrideLocked() (E, bool) {
	var zero E
	best := s.queue.Front()
	if best == zero {
		return zero, false
	}
	bestStride := best.Stride()
	for e := best.Next(); e != zero; e = e.Next() {
		if st := e.Stride(); st < bestStride {
			best, bestStride = e, st
		}
	}
	return best, true
}

// Len returns the number of queued entities.
func (s *Scheduler[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// StrideState is the per-task stride scheduling state. The zero value has
// stride 0 and DefaultPriority. It is safe for concurrent use.
type StrideState struct {
	mu       sync.Mutex
	stride   uint64
	priority int64
}

// Stride returns the accumulated stride.
func (s *StrideState) Stride() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stride
}

// Priority returns the current priority.
func (s *StrideState) Priority() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priorityLocked()
}

// Preconditions: s.mu is locked.
func (s *StrideState) priorityLocked() int64 {
	if s.priority == 0 {
		return DefaultPriority
	}
	return s.priority
}

// SetPriority changes the priority used for future passes. The accumulated
// stride is left as is. A priority above bigStride would make the pass zero
// and let the task run forever, so passes are floored at one. Priorities below rcore.MinPriority are rejected with
// EINVAL.
func (s *StrideState) SetPriority(p int64) error {
	if p < rcore.MinPriority {
		return kerr.EINVAL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priority = p
	return nil
}

// Pass returns bigStride / priority, and at least one.
func (s *StrideState) Pass(bigStride uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passLocked(bigStride)
}

// Preconditions: s.mu is locked.
func (s *StrideState) passLocked(bigStride uint64) uint64 {
	if pass := bigStride / uint64(s.priorityLocked()); pass > 0 {
		return pass
	}
	return 1
}

// Advance adds one pass to the stride. The dispatcher calls it each time the
// task is picked to run.
func (s *StrideState) Advance(bigStride uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stride += s.passLocked(bigStride)
}
