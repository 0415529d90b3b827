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


package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"
	"golang.org/x/term"
	"taskcore.dev/taskcore/pkg/sentry/kernel"
	rcoresys "taskcore.dev/taskcore/pkg/sentry/syscalls/rcore"
	"taskcore.dev/taskcore/runtask/cmd/util"
)

// Syscalls implements subcommands.Command for the "syscalls" command.
type Syscalls struct {
	output string
}

// TableInfo is the documentation of a syscall table.
type TableInfo struct {
	Name     string       `json:"name"`
	Syscalls []SyscallDoc `json:"syscalls"`
}

// SyscallDoc represents a single item of syscall documentation.
type SyscallDoc struct {
	Num  uintptr `json:"num"`
	Name string  `json:"name"`
	Note string  `json:"note,omitempty"`
}

type outputFunc func(io.Writer, TableInfo) error

// A map of output type names to output functions.
var outputMap = map[string]outputFunc{
	"table": outputTable,
	"json":  outputSyscallsJSON,
	"csv":   outputCSV,
}

// Name implements subcommands.Command.Name.
func (*Syscalls) Name() string {
	return "syscalls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Syscalls) Synopsis() string {
	return "Print the supported syscalls."
}

// Usage implements subcommands.Command.Usage.
func (*Syscalls) Usage() string {
	return `syscalls [options] - Print the supported syscalls.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Syscalls) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.output, "o", "", "Output format (table, csv, json). Defaults to table on a terminal and csv otherwise.")
}

// Execute implements subcommands.Command.Execute.
func (s *Syscalls) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	format := s.output
	if format == "" {
		format = "csv"
		if term.IsTerminal(int(os.Stdout.Fd())) {
			format = "table"
		}
	}
	out, ok := outputMap[format]
	if !ok {
		return util.Errorf("Unsupported output format %q", format)
	}
	if err := out(os.Stdout, tableInfo(rcoresys.Table)); err != nil {
		return util.Errorf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// tableInfo returns the documentation of t, sorted by syscall number.
func tableInfo(t *kernel.SyscallTable) TableInfo {
	info := TableInfo{Name: t.Name}
	for _, num := range t.Numbers() {
		sc, _ := t.Lookup(num)
		info.Syscalls = append(info.Syscalls, SyscallDoc{
			Num:  num,
			Name: sc.Name,
			Note: sc.Note,
		})
	}
	return info
}

// outputTable outputs the syscall info in tabular format.
func outputTable(w io.Writer, info TableInfo) error {
	fmt.Fprintf(w, "%s:\n\n", info.Name)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", "NUM", "NAME", "NOTE"); err != nil {
		return err
	}
	for _, sc := range info.Syscalls {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\n", sc.Num, sc.Name, sc.Note); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// outputSyscallsJSON outputs the syscall info in JSON format.
func outputSyscallsJSON(w io.Writer, info TableInfo) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(info)
}

// outputCSV outputs the syscall info in CSV format.
func outputCSV(w io.Writer, info TableInfo) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{"Table", "Num", "Name", "Note"}); err != nil {
		return err
	}
	for _, sc := range info.Syscalls {
		row := []string{info.Name, strconv.FormatUint(uint64(sc.Num), 10), sc.Name, sc.Note}
		if err := csvWriter.Write(row); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
