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

// Package metric provides counters that can be exported in the Prometheus
// text exposition format.
package metric

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Field contains the field name and allowed values for the metric which is
// used in registration of the metric.
type Field struct {
	// name is the metric field name.
	name string

	// allowedValues is the list of allowed values for the field. A nil list
	// accepts any value.
	allowedValues []string
}

// NewField defines a new Field that can be used to break down a metric.
func NewField(name string, allowedValues []string) Field {
	return Field{
		name:          name,
		allowedValues: allowedValues,
	}
}

func (f Field) allows(v string) bool {
	if f.allowedValues == nil {
		return true
	}
	for _, a := range f.allowedValues {
		if a == v {
			return true
		}
	}
	return false
}

// Uint64Metric encapsulates a uint64 that represents some kind of metric to be
// monitored, optionally broken down by fields.
type Uint64Metric struct {
	name        string
	description string
	fields      []Field

	mu sync.RWMutex
	// values maps the joined field values to their counter.
	values map[string]*atomic.Uint64
}

var (
	registryMu sync.Mutex
	allMetrics = map[string]*Uint64Metric{}
)

// NewUint64Metric creates and registers a new cumulative metric with the given
// name. Names are slash-separated paths such as "/sched/dispatches".
func NewUint64Metric(name string, description string, fields ...Field) (*Uint64Metric, error) {
	if !strings.HasPrefix(name, "/") {
		return nil, fmt.Errorf("metric name %q must start with '/'", name)
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.name]; ok {
			return nil, fmt.Errorf("metric %q has duplicate field %q", name, f.name)
		}
		seen[f.name] = struct{}{}
	}
	m := &Uint64Metric{
		name:        name,
		description: description,
		fields:      fields,
		values:      make(map[string]*atomic.Uint64),
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := allMetrics[name]; ok {
		return nil, fmt.Errorf("metric %q already registered", name)
	}
	allMetrics[name] = m
	return m, nil
}

// MustCreateNewUint64Metric calls NewUint64Metric and panics if it returns an
// error.
func MustCreateNewUint64Metric(name string, description string, fields ...Field) *Uint64Metric {
	m, err := NewUint64Metric(name, description, fields...)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %s", name, err))
	}
	return m
}

func (m *Uint64Metric) key(fieldValues []string) string {
	if len(fieldValues) != len(m.fields) {
		panic(fmt.Sprintf("metric %q: got %d field values, want %d", m.name, len(fieldValues), len(m.fields)))
	}
	for i, v := range fieldValues {
		if !m.fields[i].allows(v) {
			panic(fmt.Sprintf("metric %q: value %q not allowed for field %q", m.name, v, m.fields[i].name))
		}
	}
	return strings.Join(fieldValues, "\x00")
}

func (m *Uint64Metric) counter(fieldValues []string) *atomic.Uint64 {
	k := m.key(fieldValues)
	m.mu.RLock()
	c, ok := m.values[k]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.values[k]; ok {
		return c
	}
	c = new(atomic.Uint64)
	m.values[k] = c
	return c
}

// Value returns the current value of the metric for the given set of fields.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) Value(fieldValues ...string) uint64 {
	return m.counter(fieldValues).Load()
}

// Increment increments the metric field by 1.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) Increment(fieldValues ...string) {
	m.counter(fieldValues).Add(1)
}

// IncrementBy increments the metric by v.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) IncrementBy(v uint64, fieldValues ...string) {
	m.counter(fieldValues).Add(v)
}

// point is a single labeled value of a metric.
type point struct {
	labels []string
	value  uint64
}

// points returns the current values sorted by label values.
func (m *Uint64Metric) points() []point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps := make([]point, 0, len(m.values))
	for k, c := range m.values {
		var labels []string
		if len(m.fields) > 0 {
			labels = strings.Split(k, "\x00")
		}
		ps = append(ps, point{labels: labels, value: c.Load()})
	}
	sort.Slice(ps, func(i, j int) bool {
		return strings.Join(ps[i].labels, "\x00") < strings.Join(ps[j].labels, "\x00")
	})
	return ps
}

// registered returns all metrics sorted by name.
func registered() []*Uint64Metric {
	registryMu.Lock()
	defer registryMu.Unlock()
	ms := make([]*Uint64Metric, 0, len(allMetrics))
	for _, m := range allMetrics {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].name < ms[j].name })
	return ms
}
