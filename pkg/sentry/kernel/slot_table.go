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

// slotTable maps small integer handles to objects. A removed handle leaves a
// hole that the next Add reuses before the table grows. It is not
// synchronized.
type slotTable[T any] struct {
	slots []*T
}

// Add stores v in the first free slot and returns its handle.
func (s *slotTable[T]) Add(v *T) int {
	for id, cur := range s.slots {
		if cur == nil {
			s.slots[id] = v
			return id
		}
	}
	s.slots = append(s.slots, v)
	return len(s.slots) - 1
}

// Get returns the object with handle id.
func (s *slotTable[T]) Get(id int64) (*T, bool) {
	if id < 0 || id >= int64(len(s.slots)) || s.slots[id] == nil {
		return nil, false
	}
	return s.slots[id], true
}

// Remove frees handle id.
func (s *slotTable[T]) Remove(id int64) bool {
	if _, ok := s.Get(id); !ok {
		return false
	}
	s.slots[id] = nil
	return true
}

// Len returns the number of occupied slots.
func (s *slotTable[T]) Len() int {
	n := 0
	for _, v := range s.slots {
		if v != nil {
			n++
		}
	}
	return n
}
