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

package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(expected, tw.lines); diff != "" {
		t.Fatalf("Writer lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLevelFiltering(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}
	l.Debugf("hidden %d\n", 1)
	l.Infof("shown %d\n", 2)
	l.Warningf("shown %d\n", 3)
	if diff := cmp.Diff([]string{"shown 2\n", "shown 3\n"}, tw.lines); diff != "" {
		t.Errorf("logged lines mismatch (-want +got):\n%s", diff)
	}

	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
}

func TestGoogleEmitterFormat(t *testing.T) {
	tw := &testWriter{}
	g := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2026, time.March, 7, 9, 4, 5, 123456000, time.UTC)
	g.Emit(0, Warning, ts, "tid[%d] refused", 3)
	if len(tw.lines) != 1 {
		t.Fatalf("GoogleEmitter wrote %d lines, expected 1", len(tw.lines))
	}
	line := tw.lines[0]
	if !strings.HasPrefix(line, "W0307 09:04:05.123456 ") {
		t.Errorf("GoogleEmitter header got: %q", line)
	}
	if !strings.Contains(line, "log_test.go:") {
		t.Errorf("GoogleEmitter line %q does not name the caller", line)
	}
	if !strings.HasSuffix(line, "] tid[3] refused\n") {
		t.Errorf("GoogleEmitter message got: %q", line)
	}
}

func TestJSONEmitter(t *testing.T) {
	tw := &testWriter{}
	e := JSONEmitter{&Writer{Next: tw}}
	e.Emit(0, Info, time.Unix(0, 0).UTC(), "pid[%d]", 1)
	if len(tw.lines) != 2 || tw.lines[1] != "\n" {
		t.Fatalf("JSONEmitter lines got: %q", tw.lines)
	}
	var got jsonLog
	if err := json.Unmarshal([]byte(tw.lines[0]), &got); err != nil {
		t.Fatalf("json.Unmarshal(%q) failed: %v", tw.lines[0], err)
	}
	if got.Msg != "pid[1]" || got.Level != Info {
		t.Errorf("JSONEmitter got: %+v", got)
	}
	if !strings.HasPrefix(got.Caller, "log_test.go:") {
		t.Errorf("JSONEmitter caller got: %q", got.Caller)
	}
}

func TestLogrusEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	e := NewLogrusEmitter(l, logrus.Fields{"scenario": "philosophers"})

	e.Emit(0, Warning, time.Now(), "lock %d would deadlock", 0)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json.Unmarshal(%q) failed: %v", buf.String(), err)
	}
	for key, want := range map[string]string{
		"msg":      "lock 0 would deadlock",
		"level":    "warning",
		"scenario": "philosophers",
	} {
		if got := entry[key]; got != want {
			t.Errorf("entry[%q] got: %v, expected: %v", key, got, want)
		}
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	base := &BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}
	rl := RateLimitedLoggerBurst(base, time.Hour, 2)
	for i := 0; i < 5; i++ {
		rl.Debugf("spin %d\n", i)
	}
	if diff := cmp.Diff([]string{"spin 0\n", "spin 1\n"}, tw.lines); diff != "" {
		t.Errorf("rate limited lines mismatch (-want +got):\n%s", diff)
	}
}

func TestMultiEmitter(t *testing.T) {
	file, stderr := &testWriter{}, &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &MultiEmitter{&Writer{Next: file}, &Writer{Next: stderr}}}
	l.Infof("both %d\n", 1)
	expected := []string{"both 1\n"}
	if diff := cmp.Diff(expected, file.lines); diff != "" {
		t.Errorf("first emitter mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(expected, stderr.lines); diff != "" {
		t.Errorf("second emitter mismatch (-want +got):\n%s", diff)
	}
}

type recordingTestLogger struct {
	lines []string
}

func (r *recordingTestLogger) Logf(format string, v ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func TestTestEmitter(t *testing.T) {
	r := &recordingTestLogger{}
	l := &BasicLogger{Level: Debug, Emitter: &TestEmitter{r}}
	l.Warningf("slow tick %d", 7)
	if diff := cmp.Diff([]string{">>> Warning slow tick 7"}, r.lines); diff != "" {
		t.Errorf("logged lines mismatch (-want +got):\n%s", diff)
	}
}
