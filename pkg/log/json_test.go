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
	"encoding/json"
	"testing"
)

func TestLevelJSON(t *testing.T) {
	for _, tc := range []struct {
		level Level
		json  string
	}{
		{Warning, `"warning"`},
		{Info, `"info"`},
		{Debug, `"debug"`},
	} {
		tc := tc
		t.Run(tc.level.String(), func(t *testing.T) {
			b, err := json.Marshal(tc.level)
			if err != nil {
				t.Fatalf("json.Marshal(%v) failed: %v", tc.level, err)
			}
			if string(b) != tc.json {
				t.Errorf("json.Marshal(%v) got: %s, expected: %s", tc.level, b, tc.json)
			}
			var lv Level
			if err := json.Unmarshal(b, &lv); err != nil {
				t.Fatalf("json.Unmarshal(%s) failed: %v", b, err)
			}
			if lv != tc.level {
				t.Errorf("json.Unmarshal(%s) got: %v, expected: %v", b, lv, tc.level)
			}
		})
	}
}

// Older records carry the level as an integer.
func TestLevelFromInt(t *testing.T) {
	for in, want := range map[string]Level{"0": Warning, "1": Info, "2": Debug} {
		var lv Level
		if err := json.Unmarshal([]byte(in), &lv); err != nil {
			t.Errorf("json.Unmarshal(%s) failed: %v", in, err)
			continue
		}
		if lv != want {
			t.Errorf("json.Unmarshal(%s) got: %v, expected: %v", in, lv, want)
		}
	}
	var lv Level
	if err := json.Unmarshal([]byte("7"), &lv); err == nil {
		t.Errorf("json.Unmarshal(7) succeeded, expected error")
	}
}
