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

// Package rcore contains the system call ABI of the teaching kernel: call
// numbers, return conventions and the structures copied out to user tasks.
package rcore

// Syscall numbers.
const (
	SYS_EXIT                   = 93
	SYS_SLEEP                  = 101
	SYS_YIELD                  = 124
	SYS_SET_PRIORITY           = 140
	SYS_GET_TIME               = 169
	SYS_GETPID                 = 172
	SYS_TASK_INFO              = 410
	SYS_THREAD_CREATE          = 460
	SYS_GETTID                 = 461
	SYS_WAITTID                = 462
	SYS_MUTEX_CREATE           = 463
	SYS_MUTEX_LOCK             = 464
	SYS_MUTEX_UNLOCK           = 466
	SYS_SEMAPHORE_CREATE       = 467
	SYS_SEMAPHORE_UP           = 468
	SYS_ENABLE_DEADLOCK_DETECT = 469
	SYS_SEMAPHORE_DOWN         = 470
	SYS_CONDVAR_CREATE         = 471
	SYS_CONDVAR_SIGNAL         = 472
	SYS_CONDVAR_WAIT           = 473
)

// MaxSyscallNum bounds the syscall numbers tracked in TaskInfo.
const MaxSyscallNum = 500

// Syscall return values.
const (
	// RetSuccess is returned by calls that have no other result.
	RetSuccess = 0

	// RetFailure is the generic failure: bad handle or bad argument.
	RetFailure = -1

	// RetStillRunning is returned by waittid when the thread has not exited.
	RetStillRunning = -2

	// RetDeadlock is returned when a request is refused because granting
	// it could deadlock the process.
	RetDeadlock = -0xdead
)

// MinPriority is the lowest priority accepted by set_priority.
const MinPriority = 2

// TaskStatus is the life cycle state of a task.
type TaskStatus int

// Task states.
const (
	TaskReady TaskStatus = iota
	TaskRunning
	TaskBlocked
	TaskZombie
)

// String implements fmt.Stringer.String.
func (s TaskStatus) String() string {
	switch s {
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskBlocked:
		return "Blocked"
	case TaskZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// TaskInfo is the structure filled in by task_info.
type TaskInfo struct {
	// Status is the task state at the time of the call.
	Status TaskStatus

	// SyscallTimes counts the invocations of each syscall number.
	SyscallTimes [MaxSyscallNum]uint32

	// Time is the number of milliseconds since the task first ran.
	Time uint64
}

// ResourceKind identifies the class of a ledger resource.
type ResourceKind int

// Resource kinds tracked by the deadlock ledger.
const (
	ResourceLock      ResourceKind = 0
	ResourceSemaphore ResourceKind = 1
)

// String implements fmt.Stringer.String.
func (k ResourceKind) String() string {
	switch k {
	case ResourceLock:
		return "lock"
	case ResourceSemaphore:
		return "semaphore"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ResourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
