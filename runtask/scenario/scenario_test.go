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


package scenario

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/sentry/kernel"
	"taskcore.dev/taskcore/pkg/sentry/kernel/ledger"
	"taskcore.dev/taskcore/pkg/sentry/kernel/sched"
	rcoresys "taskcore.dev/taskcore/pkg/sentry/syscalls/rcore"
)

func run(t *testing.T, file string) (Report, error) {
	t.Helper()
	s, err := Load(filepath.Join("testdata", file))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	k, err := kernel.New(kernel.Config{Policy: sched.FIFO, SyscallTable: rcoresys.Table})
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	r, err := s.Start(k)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = k.Run(ctx)
	return r.Report(), err
}

type step struct {
	TID    kernel.ThreadID
	Step   int
	Result int64
}

func steps(trace []Event) []step {
	var s []step
	for _, e := range trace {
		s = append(s, step{TID: e.TID, Step: e.Step, Result: e.Result})
	}
	return s
}

func TestHandOff(t *testing.T) {
	rep, err := run(t, "handoff.yaml")
	if err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report not OK: finished %t, mismatches %v", rep.Finished, rep.Mismatches)
	}
	want := []step{
		{0, 0, 0}, {0, 1, 0}, {0, 2, 1}, {0, 3, 0}, {0, 4, 0},
		{1, 0, 0}, {1, 1, 0},
		{0, 5, 7},
	}
	if diff := cmp.Diff(want, steps(rep.Trace)); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if rep.Detect {
		t.Errorf("detect got: %t, expected: false", rep.Detect)
	}
}

func TestDeadlockRefused(t *testing.T) {
	rep, err := run(t, "deadlock.yaml")
	if err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report not OK: finished %t, mismatches %v", rep.Finished, rep.Mismatches)
	}
	if got := rep.Trace[0].Call; got != "enable_deadlock_detect" {
		t.Errorf("first call got: %q, expected: enable_deadlock_detect", got)
	}
	if !rep.Detect {
		t.Errorf("detect got: %t, expected: true", rep.Detect)
	}
	want := ledger.State{
		Resources: []ledger.Resource{
			{Kind: rcore.ResourceLock, ID: 0},
			{Kind: rcore.ResourceSemaphore, ID: 0},
		},
		Available:  []int64{1, 1},
		Total:      []int64{1, 1},
		Allocation: [][]int64{{0, 0}, {0, 0}, {0, 0}},
		Need:       [][]int64{{0, 0}, {0, 0}, {0, 0}},
	}
	if diff := cmp.Diff(want, rep.Ledger); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}
}

func TestUndetectedDeadlock(t *testing.T) {
	rep, err := run(t, "deadlock-undetected.yaml")
	if !errors.Is(err, kernel.ErrAllBlocked) {
		t.Fatalf("Run got error: %v, expected: %v", err, kernel.ErrAllBlocked)
	}
	if rep.Finished {
		t.Errorf("process finished, expected it to stay blocked")
	}
	if got, want := rep.Ledger.Available, []int64{0, 0}; !cmp.Equal(got, want) {
		t.Errorf("available got: %v, expected: %v", got, want)
	}
}

func TestExpectMismatch(t *testing.T) {
	s, err := Parse([]byte(`
name: mismatch
threads:
  - steps:
      - call: mutex_unlock
        args: [3]
        expect: 0
      - call: getpid
`))
	if err != nil {
		t.Fatal(err)
	}
	k, err := kernel.New(kernel.Config{SyscallTable: rcoresys.Table})
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Start(k)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	rep := r.Report()
	if rep.OK() {
		t.Fatalf("report OK, expected a mismatch")
	}
	want := []string{"tid[0] step 0 mutex_unlock[3] got: -1, expected: 0"}
	if diff := cmp.Diff(want, rep.Mismatches); diff != "" {
		t.Errorf("mismatches (-want +got):\n%s", diff)
	}
	if got := rep.Trace[1].Result; got != int64(rep.PID) {
		t.Errorf("getpid got: %d, expected: %d", got, rep.PID)
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		err  string
	}{
		{name: "unknown key", doc: "name: x\nthreads:\n  - steps: []\n    priority: 3\n", err: "priority"},
		{name: "no threads", doc: "name: x\n", err: "no threads"},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil || !strings.Contains(err.Error(), tc.err) {
				t.Errorf("Parse() got error: %v, expected: %q", err, tc.err)
			}
		})
	}
}

func TestStartErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		err  string
	}{
		{name: "unknown syscall", doc: "threads:\n  - steps:\n      - call: fork\n", err: `unknown syscall "fork"`},
		{name: "call and join", doc: "threads:\n  - steps:\n      - call: yield\n        join: 1\n", err: "exclusive"},
		{name: "too many args", doc: "threads:\n  - steps:\n      - call: yield\n        args: [1, 2, 3, 4, 5, 6, 7]\n", err: "too many"},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s, err := Parse([]byte(tc.doc))
			if err != nil {
				t.Fatal(err)
			}
			k, err := kernel.New(kernel.Config{SyscallTable: rcoresys.Table})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := s.Start(k); err == nil || !strings.Contains(err.Error(), tc.err) {
				t.Errorf("Start() got error: %v, expected: %q", err, tc.err)
			}
		})
	}
}

func TestSleepTime(t *testing.T) {
	s, err := Parse([]byte(`
name: sleeper
threads:
  - steps:
      - call: sleep
        args: [5]
        expect: 0
      - call: get_time
        expect: 5
`))
	if err != nil {
		t.Fatal(err)
	}
	k, err := kernel.New(kernel.Config{SyscallTable: rcoresys.Table})
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Start(k)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	rep := r.Report()
	if !rep.OK() {
		t.Fatalf("report not OK: finished %t, mismatches %v", rep.Finished, rep.Mismatches)
	}
	want := []Event{
		{TID: 0, Step: 0, Call: "sleep", Args: []int64{5}, Result: 0, TimeMS: 5},
		{TID: 0, Step: 1, Call: "get_time", Result: 5, TimeMS: 5},
	}
	if diff := cmp.Diff(want, rep.Trace, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}
