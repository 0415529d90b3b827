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

// Semaphore is a counting semaphore. A negative count is the number of
// waiters.
type Semaphore struct {
	mu sync.Mutex
	// count and waiters are protected by mu.
	count   int64
	waiters waitQueue
}

// NewSemaphore returns a semaphore with the given count.
//
// Preconditions: count >= 0.
func NewSemaphore(count int64) *Semaphore {
	if count < 0 {
		panic("negative semaphore count")
	}
	return &Semaphore{count: count}
}

// Down decrements the count, blocking t if it becomes negative until a
// matching Up hands it an instance.
func (s *Semaphore) Down(t Task) {
	s.mu.Lock()
	s.count--
	if s.count >= 0 {
		s.mu.Unlock()
		return
	}
	s.waiters.push(t)
	s.mu.Unlock()
	blocks.Increment("semaphore")
	t.Block()
}

// Up increments the count. If tasks were waiting, the oldest is woken and
// returned.
func (s *Semaphore) Up() (woken Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.count
	s.count++
	if old >= 0 {
		return nil
	}
	woken = s.waiters.pop()
	if woken == nil {
		panic("semaphore count negative with no waiters")
	}
	woken.Wake()
	return woken
}

// Count returns the current count.
func (s *Semaphore) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
