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


package config

import (
	"flag"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"taskcore.dev/taskcore/pkg/sentry/kernel/sched"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	// Scheduling flags.
	flagSet.Var(policyPtr(sched.Stride), "policy", "scheduling policy: fifo, stride.")
	flagSet.Uint64("big-stride", sched.DefaultBigStride, "dividend of the stride pass; each dispatch adds big-stride/priority.")
	flagSet.Int64("priority", sched.DefaultPriority, "priority of new tasks, at least 2.")
	flagSet.Var(clockTypePtr(ClockSynthetic), "clock", "kernel time source: synthetic, monotonic.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log-format", "text", "log format: text (default), json, or logrus.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.Bool("alsologtostderr", false, "send log messages to stderr as well as the log file.")
	flagSet.String("metrics-output", "", "file where metrics are written after a run; '-' for stdout.")
}

func policyPtr(p sched.Policy) *sched.Policy {
	return &p
}

// NewFromFlags creates a new Config with values coming from command line flags.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	if err := setFromFlags(conf, flagSet, nil); err != nil {
		return nil, err
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadFile creates a new Config from the TOML file at path. Flag defaults
// apply to keys missing from the file, and flags set on the command line
// take precedence over the file.
func LoadFile(path string, flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	if err := setFromFlags(conf, flagSet, nil); err != nil {
		return nil, err
	}
	md, err := toml.DecodeFile(path, conf)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("config file %q has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	explicit := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if err := setFromFlags(conf, flagSet, explicit); err != nil {
		return nil, err
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setFromFlags copies flag values into conf. If only is not nil, just the
// flags it names are copied.
func setFromFlags(conf *Config, flagSet *flag.FlagSet, only map[string]bool) error {
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		if only != nil && !only[name] {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		getter, ok := fl.Value.(flag.Getter)
		if !ok {
			panic(fmt.Sprintf("Flag %q does not implement flag.Getter", name))
		}
		x := reflect.ValueOf(getter.Get())
		if !x.Type().ConvertibleTo(f.Type) {
			return fmt.Errorf("flag %q of type %v cannot set field of type %v", name, x.Type(), f.Type)
		}
		obj.Field(i).Set(x.Convert(f.Type))
	}
	return nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
// Flags equal to their default value are omitted.
func (c *Config) ToFlags() []string {
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	var rv []string
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			continue
		}
		val := getVal(obj.Field(i))
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, val))
	}
	sort.Strings(rv)
	return rv
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return fmt.Sprintf("%t", field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", field.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", field.Uint())
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
