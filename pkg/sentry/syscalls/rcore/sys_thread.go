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

// Exit handles: exit(code)
func Exit(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	t.Exit(args[0].Int())
	panic("unreachable")
}

// Yield handles: yield()
func Yield(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	t.Yield()
	return rcore.RetSuccess, nil
}

// SetPriority handles: set_priority(prio)
func SetPriority(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	prio := args[0].Int()
	if err := t.SetPriority(prio); err != nil {
		return 0, err
	}
	return prio, nil
}

// Getpid handles: getpid()
func Getpid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.Process().PID()), nil
}

// Gettid handles: gettid()
func Gettid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.ThreadID()), nil
}

// ThreadCreate handles: thread_create(entry, arg)
func ThreadCreate(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	tid, err := t.ThreadCreate(args[0].Int(), args[1].Int())
	return int64(tid), err
}

// Waittid handles: waittid(tid)
func Waittid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return t.WaitTID(kernel.ThreadID(args[0].Int()))
}

// TaskInfo handles: task_info(info)
func TaskInfo(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	info, ok := args[0].Ref.(*rcore.TaskInfo)
	if !ok || info == nil {
		return 0, kerr.EINVAL
	}
	*info = t.Info()
	return rcore.RetSuccess, nil
}
