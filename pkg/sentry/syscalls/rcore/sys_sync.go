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

package rcore

import (
	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/errors/kerr"
	"taskcore.dev/taskcore/pkg/sentry/kernel"
)

// MutexCreate handles: mutex_create(blocking)
func MutexCreate(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	switch args[0].Int() {
	case 0:
		return int64(t.MutexCreate(false)), nil
	case 1:
		return int64(t.MutexCreate(true)), nil
	default:
		return 0, kerr.EINVAL
	}
}

// MutexLock handles: mutex_lock(id)
func MutexLock(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return rcore.RetSuccess, t.MutexLock(args[0].Int())
}

// MutexUnlock handles: mutex_unlock(id)
func MutexUnlock(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return rcore.RetSuccess, t.MutexUnlock(args[0].Int())
}

// SemaphoreCreate handles: semaphore_create(count)
func SemaphoreCreate(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	id, err := t.SemaphoreCreate(args[0].Int())
	return int64(id), err
}

// SemaphoreUp handles: semaphore_up(id)
func SemaphoreUp(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return rcore.RetSuccess, t.SemaphoreUp(args[0].Int())
}

// SemaphoreDown handles: semaphore_down(id)
func SemaphoreDown(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return rcore.RetSuccess, t.SemaphoreDown(args[0].Int())
}

// CondvarCreate handles: condvar_create()
func CondvarCreate(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.CondvarCreate()), nil
}

// CondvarSignal handles: condvar_signal(id)
func CondvarSignal(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return rcore.RetSuccess, t.CondvarSignal(args[0].Int())
}

// CondvarWait handles: condvar_wait(condvar_id, mutex_id)
func CondvarWait(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return rcore.RetSuccess, t.CondvarWait(args[0].Int(), args[1].Int())
}

// EnableDeadlockDetect handles: enable_deadlock_detect(enabled)
func EnableDeadlockDetect(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	switch args[0].Int() {
	case 0:
		t.EnableDeadlockDetect(false)
	case 1:
		t.EnableDeadlockDetect(true)
	default:
		return 0, kerr.EINVAL
	}
	return rcore.RetSuccess, nil
}
