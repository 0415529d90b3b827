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


// Package cli is the main entrypoint for runtask.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"taskcore.dev/taskcore/pkg/log"
	"taskcore.dev/taskcore/runtask/cmd"
	"taskcore.dev/taskcore/runtask/cmd/util"
	"taskcore.dev/taskcore/runtask/config"
)

// configFile names a TOML file with defaults for the configuration flags.
var configFile = flag.String("config", "", "TOML file with configuration; flags given on the command line take precedence.")

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags, and the config file if any.
	var (
		conf *config.Config
		err  error
	)
	if *configFile != "" {
		conf, err = config.LoadFile(*configFile, flag.CommandLine)
	} else {
		conf, err = config.NewFromFlags(flag.CommandLine)
	}
	if err != nil {
		util.Fatalf("%v", err)
	}

	// Logs go to stderr unless a log file is given; stdout carries the
	// command's output.
	var logFile io.Writer = os.Stderr
	if conf.LogFilename != "" {
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
		util.ErrorLogger = f
	}

	if conf.Debug {
		log.SetLevel(log.Debug)
	}
	var emitter log.Emitter = newEmitter(conf.LogFormat, logFile)
	if conf.LogFilename != "" && conf.AlsoLogToStderr {
		emitter = &log.MultiEmitter{emitter, newEmitter(conf.LogFormat, os.Stderr)}
	}
	log.SetTarget(emitter)
	if err := log.CopyStandardLogTo(log.Info); err != nil {
		util.Fatalf("error redirecting the standard logger: %v", err)
	}

	const delimString = `**************** runtask ****************`
	log.Infof(delimString)
	log.Infof("%s, %s, %d CPUs, %s, PID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	if subcmdCode != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", subcmdCode)
	}
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// runtask.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Run), "")
	cb(new(cmd.Syscalls), "")
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	case "logrus":
		l := logrus.New()
		l.SetOutput(logFile)
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		return log.NewLogrusEmitter(l, logrus.Fields{"component": "runtask"})
	}
	util.Fatalf("invalid log format %q, must be 'text', 'json', or 'logrus'", format)
	panic("unreachable")
}
