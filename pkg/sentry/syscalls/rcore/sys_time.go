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

// Sleep handles: sleep(ms)
func Sleep(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	ms := args[0].Int()
	if ms < 0 {
		return 0, kerr.EINVAL
	}
	t.Sleep(ms)
	return rcore.RetSuccess, nil
}

// GetTime handles: get_time()
func GetTime(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return t.Kernel().Clock().NowMS(), nil
}
