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

// Package rcore provides the syscall table of the teaching kernel ABI.
package rcore

import (
	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/sentry/kernel"
	"taskcore.dev/taskcore/pkg/sentry/syscalls"
)

// Table is the syscall table, keyed by the numbers in abi/rcore.
var Table = &kernel.SyscallTable{
	Name: "rcore",
	Table: map[uintptr]kernel.Syscall{
		rcore.SYS_EXIT:                   syscalls.SupportedWithNote("exit", Exit, "Terminates the calling thread."),
		rcore.SYS_SLEEP:                  syscalls.SupportedWithNote("sleep", Sleep, "Blocks for at least the given milliseconds."),
		rcore.SYS_YIELD:                  syscalls.Supported("yield", Yield),
		rcore.SYS_SET_PRIORITY:           syscalls.SupportedWithNote("set_priority", SetPriority, "Priorities below 2 are rejected."),
		rcore.SYS_GET_TIME:               syscalls.Supported("get_time", GetTime),
		rcore.SYS_GETPID:                 syscalls.Supported("getpid", Getpid),
		rcore.SYS_TASK_INFO:              syscalls.Supported("task_info", TaskInfo),
		rcore.SYS_THREAD_CREATE:          syscalls.SupportedWithNote("thread_create", ThreadCreate, "Entry is an index into the process's entry points."),
		rcore.SYS_GETTID:                 syscalls.Supported("gettid", Gettid),
		rcore.SYS_WAITTID:                syscalls.SupportedWithNote("waittid", Waittid, "Returns -2 while the thread runs."),
		rcore.SYS_MUTEX_CREATE:           syscalls.SupportedWithNote("mutex_create", MutexCreate, "Argument 1 creates a blocking lock, 0 a spin lock."),
		rcore.SYS_MUTEX_LOCK:             syscalls.Supported("mutex_lock", MutexLock),
		rcore.SYS_MUTEX_UNLOCK:           syscalls.Supported("mutex_unlock", MutexUnlock),
		rcore.SYS_SEMAPHORE_CREATE:       syscalls.Supported("semaphore_create", SemaphoreCreate),
		rcore.SYS_SEMAPHORE_UP:           syscalls.Supported("semaphore_up", SemaphoreUp),
		rcore.SYS_ENABLE_DEADLOCK_DETECT: syscalls.SupportedWithNote("enable_deadlock_detect", EnableDeadlockDetect, "Per process; off by default."),
		rcore.SYS_SEMAPHORE_DOWN:         syscalls.Supported("semaphore_down", SemaphoreDown),
		rcore.SYS_CONDVAR_CREATE:         syscalls.Supported("condvar_create", CondvarCreate),
		rcore.SYS_CONDVAR_SIGNAL:         syscalls.Supported("condvar_signal", CondvarSignal),
		rcore.SYS_CONDVAR_WAIT:           syscalls.SupportedWithNote("condvar_wait", CondvarWait, "Releases the lock; returns without it."),
	},
}
