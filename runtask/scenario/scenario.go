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


// Package scenario runs scripted processes on the kernel.
//
// A scenario is a YAML document describing the threads of one process. Thread
// 0 is the main thread; thread i is entry point i and is started with
// thread_create(i, arg). Each thread issues its steps in order and records
// every call in a trace.
//
//	name: hand-off
//	threads:
//	  - steps:
//	      - call: mutex_create
//	        args: [1]
//	        expect: 0
//	      - call: thread_create
//	        args: [1, 0]
//	      - join: 1
//	  - steps:
//	      - call: mutex_lock
//	        args: [0]
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/sentry/kernel"
	"taskcore.dev/taskcore/pkg/sentry/kernel/ledger"
)

// Scenario is a scripted process.
type Scenario struct {
	// Name names the process.
	Name string `yaml:"name"`

	// Detect enables deadlock detection before the main thread's first step.
	Detect bool `yaml:"detect"`

	// Threads holds the entry points. Threads[0] is the main thread.
	Threads []Thread `yaml:"threads"`
}

// Thread is one entry point.
type Thread struct {
	// Exit is the value returned by the entry point after its last step.
	Exit int64 `yaml:"exit"`

	Steps []Step `yaml:"steps"`
}

// Step is a single system call, or a join on another thread.
type Step struct {
	// Call is the syscall name, e.g. "mutex_lock".
	Call string `yaml:"call,omitempty"`

	// Args are the integer arguments of Call.
	Args []int64 `yaml:"args,omitempty"`

	// Join, if set, yields until the thread with this id exits and records
	// its exit code.
	Join *int64 `yaml:"join,omitempty"`

	// Expect, if set, is the required return value.
	Expect *int64 `yaml:"expect,omitempty"`
}

// Event is one recorded step.
type Event struct {
	TID    kernel.ThreadID `json:"tid" yaml:"tid"`
	Step   int             `json:"step" yaml:"step"`
	Call   string          `json:"call" yaml:"call"`
	Args   []int64         `json:"args,omitempty" yaml:"args,omitempty,flow"`
	Result int64           `json:"result" yaml:"result"`
	TimeMS int64           `json:"time_ms" yaml:"time_ms"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if len(s.Threads) == 0 {
		return nil, fmt.Errorf("scenario %q has no threads", s.Name)
	}
	return &s, nil
}

// resolve maps every step to a syscall number of table.
func (s *Scenario) resolve(table *kernel.SyscallTable) ([][]uintptr, error) {
	byName := make(map[string]uintptr)
	for _, num := range table.Numbers() {
		sc, _ := table.Lookup(num)
		byName[sc.Name] = num
	}
	nums := make([][]uintptr, len(s.Threads))
	for i, th := range s.Threads {
		nums[i] = make([]uintptr, len(th.Steps))
		for j, st := range th.Steps {
			switch {
			case st.Join != nil && st.Call != "":
				return nil, fmt.Errorf("thread %d step %d: call and join are exclusive", i, j)
			case st.Join != nil:
				continue
			}
			num, ok := byName[st.Call]
			if !ok {
				return nil, fmt.Errorf("thread %d step %d: unknown syscall %q", i, j, st.Call)
			}
			if len(st.Args) > len(kernel.SyscallArguments{}) {
				return nil, fmt.Errorf("thread %d step %d: too many arguments", i, j)
			}
			nums[i][j] = num
		}
	}
	return nums, nil
}

// Run is a started scenario.
type Run struct {
	s *Scenario
	p *kernel.Process

	mu sync.Mutex
	// events and mismatches are protected by mu.
	events     []Event
	mismatches []string
}

// Start creates the scenario's process on k. The process runs when the
// kernel's dispatcher runs.
func (s *Scenario) Start(k *kernel.Kernel) (*Run, error) {
	nums, err := s.resolve(k.SyscallTable())
	if err != nil {
		return nil, err
	}
	r := &Run{s: s}
	entries := make([]kernel.EntryFunc, len(s.Threads))
	for i := range s.Threads {
		entries[i] = r.entry(i, nums[i])
	}
	p, err := k.CreateProcess(s.Name, entries...)
	if err != nil {
		return nil, err
	}
	r.p = p
	return r, nil
}

func (r *Run) entry(idx int, nums []uintptr) kernel.EntryFunc {
	th := r.s.Threads[idx]
	return func(t *kernel.Task, _ int64) int64 {
		if idx == 0 && r.s.Detect {
			rv := t.Syscall(rcore.SYS_ENABLE_DEADLOCK_DETECT, kernel.Int(1))
			r.record(t, -1, "enable_deadlock_detect", []int64{1}, rv, nil)
		}
		for j, st := range th.Steps {
			if st.Join != nil {
				r.record(t, j, "join", []int64{*st.Join}, join(t, *st.Join), st.Expect)
				continue
			}
			args := make([]kernel.SyscallArgument, len(st.Args))
			for n, v := range st.Args {
				args[n] = kernel.Int(v)
			}
			if nums[j] == rcore.SYS_TASK_INFO {
				args = []kernel.SyscallArgument{kernel.Ref(&rcore.TaskInfo{})}
			}
			r.record(t, j, st.Call, st.Args, t.Syscall(nums[j], args...), st.Expect)
		}
		return th.Exit
	}
}

// join yields until thread tid exits and returns its exit code, or -1 if
// there is no such thread.
func join(t *kernel.Task, tid int64) int64 {
	for {
		rv := t.Syscall(rcore.SYS_WAITTID, kernel.Int(tid))
		if rv != rcore.RetStillRunning {
			return rv
		}
		t.Syscall(rcore.SYS_YIELD)
	}
}

func (r *Run) record(t *kernel.Task, step int, call string, args []int64, result int64, expect *int64) {
	e := Event{
		TID:    t.ThreadID(),
		Step:   step,
		Call:   call,
		Args:   args,
		Result: result,
		TimeMS: t.Kernel().Clock().NowMS(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if expect != nil && *expect != result {
		r.mismatches = append(r.mismatches, fmt.Sprintf("tid[%d] step %d %s%v got: %d, expected: %d", e.TID, step, call, args, result, *expect))
	}
}

// Process returns the scenario's process.
func (r *Run) Process() *kernel.Process {
	return r.p
}

// Report is the outcome of a scenario.
type Report struct {
	Name       string       `json:"name" yaml:"name"`
	PID        int32        `json:"pid" yaml:"pid"`
	Finished   bool         `json:"finished" yaml:"finished"`
	Detect     bool         `json:"detect" yaml:"detect"`
	Trace      []Event      `json:"trace" yaml:"trace"`
	Mismatches []string     `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`
	Ledger     ledger.State `json:"ledger" yaml:"ledger"`
}

// Report returns the trace so far and the process's ledger.
func (r *Run) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	finished := false
	select {
	case <-r.p.Done():
		finished = true
	default:
	}
	return Report{
		Name:       r.s.Name,
		PID:        int32(r.p.PID()),
		Finished:   finished,
		Detect:     r.p.DeadlockDetection(),
		Trace:      append([]Event(nil), r.events...),
		Mismatches: append([]string(nil), r.mismatches...),
		Ledger:     r.p.Ledger().Snapshot(),
	}
}

// OK reports whether the process exited and every expectation held.
func (rep *Report) OK() bool {
	return rep.Finished && len(rep.Mismatches) == 0
}
