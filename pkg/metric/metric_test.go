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

package metric

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
)

func TestIncrement(t *testing.T) {
	m := MustCreateNewUint64Metric("/test/increment", "a test counter", NewField("kind", []string{"lock", "semaphore"}))
	m.Increment("lock")
	m.IncrementBy(3, "semaphore")
	m.Increment("semaphore")
	if got, want := m.Value("lock"), uint64(1); got != want {
		t.Errorf("Value(lock) got: %d, expected: %d", got, want)
	}
	if got, want := m.Value("semaphore"), uint64(4); got != want {
		t.Errorf("Value(semaphore) got: %d, expected: %d", got, want)
	}
}

func TestRegistrationErrors(t *testing.T) {
	if _, err := NewUint64Metric("/test/dup", "first"); err != nil {
		t.Fatalf("NewUint64Metric got error: %v", err)
	}
	if _, err := NewUint64Metric("/test/dup", "second"); err == nil {
		t.Errorf("NewUint64Metric(duplicate) got nil error, expected failure")
	}
	if _, err := NewUint64Metric("no/leading/slash", "bad"); err == nil {
		t.Errorf("NewUint64Metric(bad name) got nil error, expected failure")
	}
	f := NewField("x", nil)
	if _, err := NewUint64Metric("/test/dupfield", "bad", f, f); err == nil {
		t.Errorf("NewUint64Metric(duplicate field) got nil error, expected failure")
	}
}

func TestDisallowedValuePanics(t *testing.T) {
	m := MustCreateNewUint64Metric("/test/disallowed", "strict", NewField("kind", []string{"lock"}))
	defer func() {
		if recover() == nil {
			t.Errorf("Increment(disallowed) did not panic")
		}
	}()
	m.Increment("condvar")
}

func TestWritePrometheus(t *testing.T) {
	calls := MustCreateNewUint64Metric("/test/export/calls", "calls by name", NewField("name", nil))
	total := MustCreateNewUint64Metric("/test/export/total", "plain counter")
	MustCreateNewUint64Metric("/test/export/unused", "never incremented")
	calls.IncrementBy(2, "mutex_lock")
	calls.Increment("sem_up")
	total.IncrementBy(7)

	var buf bytes.Buffer
	if err := WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if strings.Contains(buf.String(), "unused") {
		t.Errorf("output contains a metric with no values:\n%s", buf.String())
	}
	families, err := (&expfmt.TextParser{}).TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("TextToMetricFamilies: %v", err)
	}

	got := map[string]float64{}
	for _, m := range families["taskcore_test_export_calls"].GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "name" {
				got[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	want := map[string]float64{"mutex_lock": 2, "sem_up": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	tf, ok := families["taskcore_test_export_total"]
	if !ok {
		t.Fatalf("taskcore_test_export_total missing from %v", families)
	}
	if v := tf.GetMetric()[0].GetCounter().GetValue(); v != 7 {
		t.Errorf("total got: %v, expected: %v", v, 7)
	}
}
