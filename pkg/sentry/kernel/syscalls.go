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

import (
	"fmt"
	"sort"

	"taskcore.dev/taskcore/pkg/errors/kerr"
	"taskcore.dev/taskcore/pkg/log"
	"taskcore.dev/taskcore/pkg/metric"
)

// SyscallArgument is an argument passed to a syscall handler. Value holds
// integer arguments; Ref stands in for a user pointer to a structure the
// handler fills in.
type SyscallArgument struct {
	Value int64
	Ref   any
}

// Int returns the argument as an integer.
func (a SyscallArgument) Int() int64 {
	return a.Value
}

// SyscallArguments represents the set of arguments passed to a syscall.
type SyscallArguments [6]SyscallArgument

// Int returns an integer SyscallArgument.
func Int(v int64) SyscallArgument {
	return SyscallArgument{Value: v}
}

// Ref returns a SyscallArgument referring to an output structure.
func Ref(v any) SyscallArgument {
	return SyscallArgument{Ref: v}
}

// SyscallFn is a syscall implementation. The returned value is placed in the
// caller's return register unless err is non-nil, in which case err's code
// is.
type SyscallFn func(t *Task, args SyscallArguments) (int64, error)

// Syscall includes the syscall implementation and related information.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation of the syscall.
	Fn SyscallFn

	// Note describes the call's semantics.
	Note string
}

// SyscallTable is a lookup table of system calls.
type SyscallTable struct {
	// Name identifies the ABI.
	Name string

	// Table is the collection of functions.
	Table map[uintptr]Syscall
}

// Lookup returns the syscall with number sysno.
func (s *SyscallTable) Lookup(sysno uintptr) (Syscall, bool) {
	sc, ok := s.Table[sysno]
	return sc, ok
}

// Numbers returns the table's syscall numbers in ascending order.
func (s *SyscallTable) Numbers() []uintptr {
	nums := make([]uintptr, 0, len(s.Table))
	for n := range s.Table {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

var syscallCounter = metric.MustCreateNewUint64Metric("/syscalls/count", "Number of system calls made, by name.",
	metric.NewField("name", nil))

// Syscall executes system call sysno on behalf of t and returns the value of
// the return register.
func (t *Task) Syscall(sysno uintptr, args ...SyscallArgument) int64 {
	var a SyscallArguments
	if len(args) > len(a) {
		panic(fmt.Sprintf("syscall %d called with %d arguments", sysno, len(args)))
	}
	copy(a[:], args)

	if sysno < uintptr(len(t.syscallTimes)) {
		t.mu.Lock()
		t.syscallTimes[sysno]++
		t.mu.Unlock()
	}

	sc, ok := t.k.table.Lookup(sysno)
	if !ok {
		log.Warningf("%v: unknown syscall %d", t, sysno)
		return kerr.ReturnValue(0, kerr.ENOSYS)
	}
	syscallCounter.Increment(sc.Name)
	log.Debugf("%v sys_%s", t, sc.Name)

	rv, err := sc.Fn(t, a)
	if err != nil {
		log.Debugf("%v sys_%s: %v", t, sc.Name, err)
	}
	return kerr.ReturnValue(rv, err)
}
