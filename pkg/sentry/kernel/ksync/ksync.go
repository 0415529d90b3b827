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

// Package ksync implements the synchronization primitives exposed to user
// tasks: locks, counting semaphores and condition variables.
//
// Primitives know nothing about resource accounting. Operations that release
// a resource report the task they handed it to, so that callers can keep
// their own bookkeeping in step.
//
// Lock ordering: callers' locks > primitive mu > scheduler locks.
package ksync

import (
	"taskcore.dev/taskcore/pkg/ilist"
	"taskcore.dev/taskcore/pkg/metric"
)

// Task is the view of a kernel task needed to block and wake it.
type Task interface {
	// Block gives up the processor until Wake is called. If Wake was called
	// since the last Block returned, Block returns immediately.
	Block()

	// Wake makes a task blocked in Block runnable again.
	Wake()

	// Yield gives up the processor but leaves the task runnable.
	Yield()
}

var blocks = metric.MustCreateNewUint64Metric("/sync/blocks", "Number of times a task blocked on a primitive.",
	metric.NewField("primitive", []string{"lock", "semaphore", "condvar"}))

// waiter is an entry in a waitQueue.
type waiter struct {
	ilist.Entry[*waiter]
	task Task
}

// waitQueue is a FIFO queue of blocked tasks. It is not synchronized.
type waitQueue struct {
	list ilist.List[*waiter]
}

func (q *waitQueue) push(t Task) *waiter {
	w := &waiter{task: t}
	q.list.PushBack(w)
	return w
}

// pop removes the oldest waiter and returns its task, or nil.
func (q *waitQueue) pop() Task {
	w, ok := q.list.PopFront()
	if !ok {
		return nil
	}
	return w.task
}

func (q *waitQueue) remove(w *waiter) {
	q.list.Remove(w)
}

func (q *waitQueue) len() int {
	return q.list.Len()
}
