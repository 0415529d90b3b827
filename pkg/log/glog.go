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
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog.
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// pid is the space-padded process id written in the threadid column. The
// glog package logger uses 7 spaces of padding.
var pid = []byte(fmt.Sprintf("%7d", os.Getpid()))

// glogTimestamp is the mmdd hh:mm:ss.uuuuuu part of the header.
const glogTimestamp = "0102 15:04:05.000000"

// appendCaller appends "file:line" of the frame depth+1 levels above the
// caller of appendCaller.
func appendCaller(b []byte, depth int) []byte {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return append(b, "x:0"...)
	}
	if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
		file = file[slash+1:]
	}
	b = append(b, file...)
	b = append(b, ':')
	return strconv.AppendInt(b, int64(line), 10)
}

// levelLetter is the first column of a log line.
func levelLetter(level Level) byte {
	switch level {
	case Debug:
		return 'D'
	case Info:
		return 'I'
	default:
		return 'W'
	}
}

// Emit emits the message, google-style. Log lines have this form:
//
//	Lmmdd hh:mm:ss.uuuuuu threadid file:line] msg...
//
// The format string is not expanded here; the underlying emitter does that.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	var local [256]byte
	b := append(local[:0], levelLetter(level))
	b = timestamp.AppendFormat(b, glogTimestamp)
	b = append(b, ' ')
	b = append(b, pid...)
	b = append(b, ' ')
	b = appendCaller(b, depth+1)
	b = append(b, "] "...)
	b = append(b, format...)
	b = append(b, '\n')

	g.Emitter.Emit(depth+1, level, timestamp, string(b), args...)
}
