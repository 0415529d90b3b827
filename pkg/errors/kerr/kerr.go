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

// Package kerr contains the syscall error values of the kernel core exported
// as error interface pointers. This allows for fast comparison and return
// operations comparable to errno constants.
package kerr

import (
	goerrors "errors"
	"fmt"

	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/errors"
)

// The following errors are returned by syscall handlers. Several share the
// generic failure value -1; they remain distinct so that callers and logs can
// tell a bad handle from a bad argument.
var (
	noError *errors.Error = nil
	EINVAL                = errors.New(rcore.RetFailure, "invalid argument")
	EBADF                 = errors.New(rcore.RetFailure, "bad handle")
	ESRCH                 = errors.New(rcore.RetFailure, "no such thread")
	ENOSYS                = errors.New(rcore.RetFailure, "invalid system call number")
	EAGAIN                = errors.New(rcore.RetStillRunning, "thread still running")
	EDEADLK               = errors.New(rcore.RetDeadlock, "resource deadlock would occur")
)

// ToError converts a kerr to an error, mapping the typed nil to a nil
// interface.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// Equals compares a kerr to a given error.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == noError
	}
	var ke *errors.Error
	if !goerrors.As(err, &ke) {
		return false
	}
	return e == ke
}

// ReturnValue converts the result of a syscall handler into the value stored
// in the caller's return register. Handlers may only fail with errors
// declared in this package; anything else is a kernel bug.
func ReturnValue(rv int64, err error) int64 {
	if err == nil {
		return rv
	}
	var ke *errors.Error
	if !goerrors.As(err, &ke) {
		panic(fmt.Sprintf("syscall returned untranslatable error %v (%T)", err, err))
	}
	return ke.Code()
}
