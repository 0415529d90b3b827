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


// Package cmd holds implementations of the runtask commands.
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"taskcore.dev/taskcore/pkg/log"
	"taskcore.dev/taskcore/pkg/metric"
	"taskcore.dev/taskcore/pkg/sentry/kernel"
	"taskcore.dev/taskcore/pkg/sentry/ktime"
	rcoresys "taskcore.dev/taskcore/pkg/sentry/syscalls/rcore"
	"taskcore.dev/taskcore/runtask/cmd/util"
	"taskcore.dev/taskcore/runtask/config"
	"taskcore.dev/taskcore/runtask/scenario"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	output  string
	timeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run scenario files on a fresh kernel"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <scenario.yaml>... - run scenario files on a fresh kernel.

Every scenario becomes one process. All processes share the kernel's ready
queue and run until every task has exited or no task can run again.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.output, "o", "text", "Output format (text, json, yaml).")
	f.DurationVar(&r.timeout, "timeout", time.Minute, "Give up after this long.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	out, ok := reportOutputs[r.output]
	if !ok {
		return util.Errorf("Unsupported output format %q", r.output)
	}
	conf := args[0].(*config.Config)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	reports, runErr := RunScenarios(ctx, conf, f.Args())
	if runErr != nil && !errors.Is(runErr, kernel.ErrAllBlocked) {
		return util.Errorf("running scenarios: %v", runErr)
	}
	if err := out(os.Stdout, reports); err != nil {
		return util.Errorf("Error writing output: %v", err)
	}
	if err := writeMetrics(conf.MetricsOutput); err != nil {
		return util.Errorf("Error writing metrics: %v", err)
	}

	if runErr != nil {
		log.Warningf("Kernel stopped: %v", runErr)
		return subcommands.ExitFailure
	}
	for _, rep := range reports {
		rep := rep
		if !rep.OK() {
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

// newClock returns the clock selected by conf and a function that releases
// it.
func newClock(conf *config.Config) (ktime.Clock, func()) {
	if conf.Clock == config.ClockMonotonic {
		c := ktime.NewMonotonicClock()
		return c, c.Stop
	}
	return ktime.NewSyntheticClock(), func() {}
}

// RunScenarios loads the scenario files, runs them as processes of one
// kernel and returns their reports in file order. If the kernel stops with
// kernel.ErrAllBlocked, the reports are returned along with the error.
func RunScenarios(ctx context.Context, conf *config.Config, paths []string) ([]scenario.Report, error) {
	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			return nil, err
		}
		if s.Name == "" {
			s.Name = path
		}
		scenarios = append(scenarios, s)
	}

	clock, release := newClock(conf)
	defer release()
	k, err := kernel.New(kernel.Config{
		Policy:          conf.Policy,
		BigStride:       conf.BigStride,
		DefaultPriority: conf.DefaultPriority,
		Clock:           clock,
		SyscallTable:    rcoresys.Table,
	})
	if err != nil {
		return nil, err
	}
	runs := make([]*scenario.Run, 0, len(scenarios))
	for _, s := range scenarios {
		r, err := s.Start(k)
		if err != nil {
			return nil, fmt.Errorf("starting scenario %q: %w", s.Name, err)
		}
		runs = append(runs, r)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return k.Run(gctx)
	})
	for _, r := range runs {
		r := r
		g.Go(func() error {
			p := r.Process()
			select {
			case <-p.Done():
				log.Infof("Process %q pid[%d] finished at %dms", p.Name(), p.PID(), clock.NowMS())
			case <-gctx.Done():
			}
			return nil
		})
	}
	runErr := g.Wait()

	reports := make([]scenario.Report, 0, len(runs))
	for _, r := range runs {
		reports = append(reports, r.Report())
	}
	return reports, runErr
}

type reportFunc func(io.Writer, []scenario.Report) error

// A map of output type names to output functions.
var reportOutputs = map[string]reportFunc{
	"text": outputText,
	"json": outputJSON,
	"yaml": outputYAML,
}

// outputText prints each trace as a table, followed by the ledger.
func outputText(w io.Writer, reports []scenario.Report) error {
	for _, rep := range reports {
		state := "finished"
		if !rep.Finished {
			state = "blocked"
		}
		fmt.Fprintf(w, "%s pid[%d]: %s\n\n", rep.Name, rep.PID, state)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "TIME\tTID\tSTEP\tCALL\tRESULT\n")
		for _, e := range rep.Trace {
			args := make([]string, len(e.Args))
			for i, a := range e.Args {
				args[i] = fmt.Sprint(a)
			}
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s(%s)\t%d\n", e.TimeMS, e.TID, e.Step, e.Call, strings.Join(args, ", "), e.Result)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, m := range rep.Mismatches {
			fmt.Fprintf(w, "MISMATCH: %s\n", m)
		}

		detect := "off"
		if rep.Detect {
			detect = "on"
		}
		fmt.Fprintf(w, "\ndeadlock detection: %s\nledger:\n", detect)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep.Ledger); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func outputJSON(w io.Writer, reports []scenario.Report) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(reports)
}

func outputYAML(w io.Writer, reports []scenario.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return err
	}
	return enc.Close()
}

// writeMetrics writes all metrics in Prometheus text format to path, or to
// stdout if path is "-". The output is parsed back before it is written.
func writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := metric.WritePrometheus(&buf); err != nil {
		return err
	}
	families, err := (&expfmt.TextParser{}).TextToMetricFamilies(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("malformed metrics output: %w", err)
	}
	log.Debugf("Writing %d metric families", len(families))

	if path == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
