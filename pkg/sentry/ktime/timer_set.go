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
	"github.com/google/btree"
)

// timer is an entry in a timerSet.
type timer struct {
	deadline int64
	// seq orders timers with equal deadlines by insertion.
	seq      uint64
	listener Listener
}

func timerLess(a, b timer) bool {
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.seq < b.seq
}

// timerSet is a set of timers ordered by deadline, then insertion order. It
// is not synchronized.
type timerSet struct {
	tree *btree.BTreeG[timer]
	seq  uint64
}

func newTimerSet() timerSet {
	return timerSet{tree: btree.NewG(16, timerLess)}
}

func (s *timerSet) add(deadline int64, l Listener) {
	s.seq++
	s.tree.ReplaceOrInsert(timer{deadline: deadline, seq: s.seq, listener: l})
}

// next returns the earliest deadline.
func (s *timerSet) next() (int64, bool) {
	t, ok := s.tree.Min()
	return t.deadline, ok
}

// popExpired removes and returns every timer with deadline <= now, in order.
func (s *timerSet) popExpired(now int64) []timer {
	var expired []timer
	for {
		t, ok := s.tree.Min()
		if !ok || t.deadline > now {
			return expired
		}
		s.tree.DeleteMin()
		expired = append(expired, t)
	}
}

func (s *timerSet) len() int {
	return s.tree.Len()
}
