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
	"time"

	"github.com/sirupsen/logrus"
)

// LogrusEmitter forwards messages to a logrus logger. Fields attached to the
// emitter are added to every entry, which lets embedders tag the kernel's
// output (for example with a scenario name) in their own log pipeline.
type LogrusEmitter struct {
	Logger *logrus.Logger
	Fields logrus.Fields
}

// NewLogrusEmitter returns an emitter writing to l. All levels are forwarded;
// filtering is done by the BasicLogger in front of the emitter.
func NewLogrusEmitter(l *logrus.Logger, fields logrus.Fields) *LogrusEmitter {
	l.SetLevel(logrus.DebugLevel)
	return &LogrusEmitter{Logger: l, Fields: fields}
}

// Emit implements Emitter.Emit.
func (e *LogrusEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	entry := e.Logger.WithFields(e.Fields).WithTime(timestamp).
		WithField("caller", string(appendCaller(nil, depth+1)))
	msg := fmt.Sprintf(format, v...)
	switch level {
	case Warning:
		entry.Warn(msg)
	case Info:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}
