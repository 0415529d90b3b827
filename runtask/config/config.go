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


// Package config provides basic infrastructure to set configuration settings
// for runtask. Each setting has a corresponding command line flag and an
// optional key in a TOML configuration file.
package config

import (
	"fmt"

	"taskcore.dev/taskcore/pkg/abi/rcore"
	"taskcore.dev/taskcore/pkg/log"
	"taskcore.dev/taskcore/pkg/sentry/kernel/sched"
)

// Config holds configuration that is not part of a scenario.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name and a toml tag with the file key.
//  3. Register a new flag in flags.go, with name and description.
//  4. Add any necessary validation into validate().
type Config struct {
	// Policy is the scheduling policy of the dispatcher.
	Policy sched.Policy `flag:"policy" toml:"policy"`

	// BigStride is the dividend of the stride pass.
	BigStride uint64 `flag:"big-stride" toml:"big_stride"`

	// DefaultPriority is the priority of new tasks.
	DefaultPriority int64 `flag:"priority" toml:"priority"`

	// Clock selects the kernel time source.
	Clock ClockType `flag:"clock" toml:"clock"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFormat is the log format, "text", "json" or "logrus".
	LogFormat string `flag:"log-format" toml:"log_format"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log" toml:"log"`

	// AlsoLogToStderr sends log messages to stderr as well as LogFilename.
	AlsoLogToStderr bool `flag:"alsologtostderr" toml:"alsologtostderr"`

	// MetricsOutput is where metrics are written after a run. Empty
	// disables metrics, "-" is stdout.
	MetricsOutput string `flag:"metrics-output" toml:"metrics_output"`
}

func (c *Config) validate() error {
	switch c.Policy {
	case sched.FIFO, sched.Stride:
	default:
		return fmt.Errorf("invalid scheduling policy %v", c.Policy)
	}
	if c.BigStride == 0 {
		return fmt.Errorf("big stride must be positive")
	}
	if c.DefaultPriority < rcore.MinPriority {
		return fmt.Errorf("default priority %d is below the minimum %d", c.DefaultPriority, rcore.MinPriority)
	}
	switch c.Clock {
	case ClockSynthetic, ClockMonotonic:
	default:
		return fmt.Errorf("invalid clock %v", c.Clock)
	}
	switch c.LogFormat {
	case "text", "json", "logrus":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	log.Infof("\t\tPolicy: %v", c.Policy)
	log.Infof("\t\tBigStride: %d", c.BigStride)
	log.Infof("\t\tDefaultPriority: %d", c.DefaultPriority)
	log.Infof("\t\tClock: %v", c.Clock)
	log.Infof("\t\tDebug: %t", c.Debug)
	log.Infof("\t\tLogFormat: %s", c.LogFormat)
	log.Infof("\t\tLogFilename: %q", c.LogFilename)
	log.Infof("\t\tAlsoLogToStderr: %t", c.AlsoLogToStderr)
	log.Infof("\t\tMetricsOutput: %q", c.MetricsOutput)
}

// ClockType is the kernel time source.
type ClockType int

const (
	// ClockSynthetic is a clock that only moves when every task is blocked.
	ClockSynthetic ClockType = iota

	// ClockMonotonic follows the host's monotonic clock.
	ClockMonotonic
)

func clockTypePtr(v ClockType) *ClockType {
	return &v
}

// Set implements flag.Value.Set.
func (c *ClockType) Set(v string) error {
	switch v {
	case "synthetic":
		*c = ClockSynthetic
	case "monotonic":
		*c = ClockMonotonic
	default:
		return fmt.Errorf("invalid clock %q", v)
	}
	return nil
}

// Get implements flag.Getter.Get.
func (c *ClockType) Get() any {
	return *c
}

// String implements fmt.Stringer.String.
func (c ClockType) String() string {
	switch c {
	case ClockSynthetic:
		return "synthetic"
	case ClockMonotonic:
		return "monotonic"
	}
	return fmt.Sprintf("ClockType(%d)", int(c))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClockType) UnmarshalText(b []byte) error {
	return c.Set(string(b))
}
