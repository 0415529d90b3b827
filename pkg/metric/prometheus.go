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
	"fmt"
	"io"
	"strings"
)

// ExporterPrefix is prepended to all exported metric names.
const ExporterPrefix = "taskcore_"

// promName converts a slash-separated metric path to a Prometheus metric name.
func promName(name string) string {
	return ExporterPrefix + strings.ReplaceAll(strings.TrimPrefix(name, "/"), "/", "_")
}

func escapeHelp(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\\", "\\\\"), "\n", "\\n")
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.ReplaceAll(s, "\\", "\\\\"), "\n", "\\n"), "\"", "\\\"")
}

// WritePrometheus writes every registered metric that has at least one value
// to w in the Prometheus text exposition format.
func WritePrometheus(w io.Writer) error {
	for _, m := range registered() {
		ps := m.points()
		if len(ps) == 0 {
			continue
		}
		name := promName(m.name)
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", name, escapeHelp(m.description), name); err != nil {
			return err
		}
		for _, p := range ps {
			var sb strings.Builder
			sb.WriteString(name)
			if len(p.labels) > 0 {
				sb.WriteByte('{')
				for i, v := range p.labels {
					if i > 0 {
						sb.WriteByte(',')
					}
					fmt.Fprintf(&sb, "%s=\"%s\"", m.fields[i].name, escapeLabel(v))
				}
				sb.WriteByte('}')
			}
			if _, err := fmt.Fprintf(w, "%s %d\n", sb.String(), p.value); err != nil {
				return err
			}
		}
	}
	return nil
}
