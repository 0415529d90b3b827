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

// Package ledger tracks, per process, how many instances of each lock and
// semaphore every thread holds and waits for, and refuses requests that
// would leave the process in an unsafe state (Banker's algorithm).
//
// A Ledger holds three matrices indexed by thread and resource column:
//
//	available[c]     free instances of column c
//	allocation[t][c] instances of c held by thread t
//	need[t][c]       instances of c thread t is waiting for
//
// For every column, available[c] + sum over t of allocation[t][c] equals the
// column's total instance count. Locks have a single instance; semaphores
// start with their initial count and grow when a thread that holds none of
// them calls up. Instances held by a thread when it exits are retired.
//
// A request that can be satisfied at once becomes an allocation. A request
// for a resource with no free instance stays in need until the primitive hands
// the resource over, at which point the releaser calls Transfer (or the
// waiter calls Acquired).
package ledger

import (
	"fmt"
	"sync"

	"github.com/mohae/deepcopy"
	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/errors/kerr"
)

// ErrWouldDeadlock is returned by Request when granting the request could
// deadlock the process.
var ErrWouldDeadlock = kerr.EDEADLK

// Resource identifies a ledger column.
type Resource struct {
	Kind rcore.ResourceKind
	ID   int
}

// String implements fmt.Stringer.String.
func (r Resource) String() string {
	return fmt.Sprintf("%s %d", r.Kind, r.ID)
}

// row is one thread's allocation and need vectors.
type row struct {
	allocation []int64
	need       []int64
}

// Ledger is the resource tracker of a single process. It is safe for
// concurrent use.
type Ledger struct {
	mu sync.Mutex

	// columns maps a resource to its column index.
	columns map[Resource]int

	// resources is the inverse of columns.
	resources []Resource

	available []int64
	total     []int64

	// rows is indexed by thread id and grown on first touch.
	rows []*row
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{columns: make(map[Resource]int)}
}

// AddResource appends a column for a newly created resource with the given
// number of free instances, and zero-extends every thread row.
//
// Preconditions: the resource has not been added before; instances >= 0.
func (l *Ledger) AddResource(kind rcore.ResourceKind, id int, instances int64) {
	if instances < 0 {
		panic(fmt.Sprintf("ledger: negative instance count %d for %s %d", instances, kind, id))
	}
	r := Resource{Kind: kind, ID: id}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.columns[r]; ok {
		panic(fmt.Sprintf("ledger: %v added twice", r))
	}
	l.columns[r] = len(l.resources)
	l.resources = append(l.resources, r)
	l.available = append(l.available, instances)
	l.total = append(l.total, instances)
	for _, rw := range l.rows {
		if rw != nil {
			rw.allocation = append(rw.allocation, 0)
			rw.need = append(rw.need, 0)
		}
	}
}

// Preconditions: l.mu is locked.
func (l *Ledger) columnLocked(kind rcore.ResourceKind, id int) int {
	c, ok := l.columns[Resource{Kind: kind, ID: id}]
	if !ok {
		panic(fmt.Sprintf("ledger: unknown resource %s %d", kind, id))
	}
	return c
}

// rowLocked returns tid's row, creating it and zero-extending it to the
// current number of columns as needed.
//
// Preconditions: l.mu is locked.
func (l *Ledger) rowLocked(tid int) *row {
	if tid < 0 {
		panic(fmt.Sprintf("ledger: negative thread id %d", tid))
	}
	for len(l.rows) <= tid {
		l.rows = append(l.rows, nil)
	}
	rw := l.rows[tid]
	if rw == nil {
		rw = &row{}
		l.rows[tid] = rw
	}
	if n := len(l.resources); len(rw.allocation) < n {
		rw.allocation = append(rw.allocation, make([]int64, n-len(rw.allocation))...)
		rw.need = append(rw.need, make([]int64, n-len(rw.need))...)
	}
	return rw
}

// Request records that tid wants one instance of the resource and runs the
// safety check. If the resulting state is unsafe the need is rolled back and
// ErrWouldDeadlock is returned. Otherwise granted reports whether a free
// instance was allocated immediately; if not, the need stays recorded until
// Transfer or Acquired.
//
// Preconditions: tid has no pending need.
func (l *Ledger) Request(kind rcore.ResourceKind, id int, tid int) (granted bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.columnLocked(kind, id)
	rw := l.rowLocked(tid)
	l.checkNoPendingLocked(rw, tid)
	rw.need[c]++
	if !l.safeLocked() {
		rw.need[c]--
		return false, ErrWouldDeadlock
	}
	return l.commitLocked(rw, c), nil
}

// Grant is Request without the safety check, used when deadlock detection is
// disabled.
//
// Preconditions: tid has no pending need.
func (l *Ledger) Grant(kind rcore.ResourceKind, id int, tid int) (granted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.columnLocked(kind, id)
	rw := l.rowLocked(tid)
	l.checkNoPendingLocked(rw, tid)
	rw.need[c]++
	return l.commitLocked(rw, c)
}

// commitLocked turns the need of rw for column c into an allocation if an
// instance is free.
//
// Preconditions: l.mu is locked; rw.need[c] == 1.
func (l *Ledger) commitLocked(rw *row, c int) bool {
	if l.available[c] == 0 {
		return false
	}
	l.available[c]--
	rw.allocation[c]++
	rw.need[c]--
	return true
}

// Preconditions: l.mu is locked.
func (l *Ledger) checkNoPendingLocked(rw *row, tid int) {
	for c, n := range rw.need {
		if n != 0 {
			panic(fmt.Sprintf("ledger: thread %d requests while waiting for %v", tid, l.resources[c]))
		}
	}
}

// Release returns one instance of the resource held by tid.
//
// Preconditions: tid holds at least one instance.
func (l *Ledger) Release(kind rcore.ResourceKind, id int, tid int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.columnLocked(kind, id)
	l.releaseLocked(l.rowLocked(tid), c, tid)
	l.available[c]++
}

// Preconditions: l.mu is locked.
func (l *Ledger) releaseLocked(rw *row, c int, tid int) {
	if rw.allocation[c] == 0 {
		panic(fmt.Sprintf("ledger: thread %d releases %v it does not hold", tid, l.resources[c]))
	}
	rw.allocation[c]--
}

// Transfer moves one instance of the resource from the thread releasing it to
// the waiter the primitive handed it to. available is unchanged.
//
// Preconditions: from holds an instance; to has a pending need for it.
func (l *Ledger) Transfer(kind rcore.ResourceKind, id int, from, to int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.columnLocked(kind, id)
	l.releaseLocked(l.rowLocked(from), c, from)
	l.acquireLocked(l.rowLocked(to), c, to, false)
}

// Acquired converts tid's pending need into an allocation of a free instance.
//
// Preconditions: tid has a pending need for the resource and an instance is
// available.
func (l *Ledger) Acquired(kind rcore.ResourceKind, id int, tid int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.columnLocked(kind, id)
	l.acquireLocked(l.rowLocked(tid), c, tid, true)
}

// Preconditions: l.mu is locked.
func (l *Ledger) acquireLocked(rw *row, c int, tid int, fromAvailable bool) {
	if rw.need[c] == 0 {
		panic(fmt.Sprintf("ledger: thread %d acquires %v without a pending request", tid, l.resources[c]))
	}
	if fromAvailable {
		if l.available[c] == 0 {
			panic(fmt.Sprintf("ledger: thread %d acquires %v with none available", tid, l.resources[c]))
		}
		l.available[c]--
	}
	rw.need[c]--
	rw.allocation[c]++
}

// Deposit adds a new free instance of a semaphore, for an up by a thread that
// holds none of it.
func (l *Ledger) Deposit(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.columnLocked(rcore.ResourceSemaphore, id)
	l.available[c]++
	l.total[c]++
}

// Exit zeroes tid's rows permanently. It is called when a thread exits.
// Instances the thread still holds are never freed, so they are retired from
// the column's total: the safety check cannot count on them coming back.
func (l *Ledger) Exit(tid int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tid >= len(l.rows) || l.rows[tid] == nil {
		return
	}
	rw := l.rows[tid]
	for c, a := range rw.allocation {
		l.total[c] -= a
		rw.allocation[c] = 0
	}
	for c := range rw.need {
		rw.need[c] = 0
	}
}

// Allocation returns the number of instances of the resource tid holds.
func (l *Ledger) Allocation(kind rcore.ResourceKind, id int, tid int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.columnLocked(kind, id)
	if tid >= len(l.rows) || l.rows[tid] == nil || c >= len(l.rows[tid].allocation) {
		return 0
	}
	return l.rows[tid].allocation[c]
}

// Available returns the number of free instances of the resource.
func (l *Ledger) Available(kind rcore.ResourceKind, id int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available[l.columnLocked(kind, id)]
}

// IsSafe runs the safety check on the current state.
func (l *Ledger) IsSafe() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.safeLocked()
}

// safeLocked reports whether every thread can finish in some order, each
// acquiring its remaining need from the instances freed by those before it.
//
// Preconditions: l.mu is locked.
func (l *Ledger) safeLocked() bool {
	work := make([]int64, len(l.available))
	copy(work, l.available)
	finish := make([]bool, len(l.rows))
	remaining := 0
	for t, rw := range l.rows {
		if rw == nil {
			finish[t] = true
			continue
		}
		remaining++
	}
	for remaining > 0 {
		progress := false
		for t, rw := range l.rows {
			if finish[t] || !fits(rw.need, work) {
				continue
			}
			for c, a := range rw.allocation {
				work[c] += a
			}
			finish[t] = true
			remaining--
			progress = true
		}
		if !progress {
			return false
		}
	}
	return true
}

// fits reports whether need <= work componentwise. need may be shorter than
// work when the row predates newer columns.
func fits(need, work []int64) bool {
	for c, n := range need {
		if n > work[c] {
			return false
		}
	}
	return true
}

// State is a point-in-time copy of a Ledger.
type State struct {
	Resources  []Resource `json:"resources" yaml:"resources"`
	Available  []int64    `json:"available" yaml:"available"`
	Total      []int64    `json:"total" yaml:"total"`
	Allocation [][]int64  `json:"allocation" yaml:"allocation"`
	Need       [][]int64  `json:"need" yaml:"need"`
}

// Snapshot returns a deep copy of the ledger's matrices. Rows of threads that
// never touched the ledger are all zero.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := State{
		Resources:  l.resources,
		Available:  l.available,
		Total:      l.total,
		Allocation: make([][]int64, len(l.rows)),
		Need:       make([][]int64, len(l.rows)),
	}
	n := len(l.resources)
	zero := make([]int64, n)
	for t, rw := range l.rows {
		s.Allocation[t], s.Need[t] = zero, zero
		if rw != nil {
			s.Allocation[t] = append(rw.allocation[:len(rw.allocation):len(rw.allocation)], zero[len(rw.allocation):]...)
			s.Need[t] = append(rw.need[:len(rw.need):len(rw.need)], zero[len(rw.need):]...)
		}
	}
	return deepcopy.Copy(s).(State)
}

// CheckConservation panics if any column's allocations and free instances do
// not add up to its total.
func (l *Ledger) CheckConservation() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c := range l.resources {
		sum := l.available[c]
		if sum < 0 {
			panic(fmt.Sprintf("ledger: negative available %d for %v", sum, l.resources[c]))
		}
		for _, rw := range l.rows {
			if rw != nil && c < len(rw.allocation) {
				if rw.allocation[c] < 0 {
					panic(fmt.Sprintf("ledger: negative allocation for %v", l.resources[c]))
				}
				sum += rw.allocation[c]
			}
		}
		if sum != l.total[c] {
			panic(fmt.Sprintf("ledger: %v has %d instances accounted, want %d", l.resources[c], sum, l.total[c]))
		}
	}
}
