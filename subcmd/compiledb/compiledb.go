// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compiledb implements the subcommand `compiledb` which builds a
// PROS project with compilers intercepted, and writes compile_commands.json.
package compiledb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/kballard/go-shellquote"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"github.com/purduesigbots/prosbuild/compiledb"
	"github.com/purduesigbots/prosbuild/execute"
	"github.com/purduesigbots/prosbuild/ui"
)

const usage = `build the project and write compile_commands.json

 $ prosbuild compiledb [-C <dir>] [-o <file>] [<make args>...]

Runs "make all-obj" in <dir> with the compilers replaced by shims that
record each invocation, and writes a compilation database of the recorded
invocations with the system include dirs of the toolchain.
<make args> are appended to the build command, e.g. VERBOSE=1.

The exit code is the build's exit code if the build fails, and 1 for
other errors, including bad flags. Use -v to tell them apart in the logs.
`

// Cmd returns the Command for the `compiledb` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "compiledb [<make args>...]",
		ShortDesc: "write compile_commands.json of the project",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			r := &run{}
			r.init()
			return r
		},
	}
}

type run struct {
	subcommands.CommandRunBase
	started time.Time

	dir       string
	output    string
	toolchain string
	build     string
	verbose   bool

	sysrootCC       string
	sysrootCXX      string
	sysrootFromMake bool

	frontendCC  string
	frontendCXX string

	forwardCC  string
	forwardCXX string
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "project directory")
	c.Flags.StringVar(&c.output, "o", compiledb.DefaultFilename, "database filename (relative to -C)")
	c.Flags.StringVar(&c.toolchain, "toolchain", os.Getenv("PROS_TOOLCHAIN"), "toolchain root dir. its bin dir is put first in PATH. can set by $PROS_TOOLCHAIN")
	c.Flags.StringVar(&c.build, "build", "", `build command line to run instead of "make all-obj". must invoke intercept-cc and intercept-c++ as C and C++ compilers`)
	c.Flags.BoolVar(&c.verbose, "v", false, "show debug logs")

	c.Flags.StringVar(&c.sysrootCC, "sysroot_cc", "arm-none-eabi-gcc", "C compiler to query system include dirs")
	c.Flags.StringVar(&c.sysrootCXX, "sysroot_cxx", "arm-none-eabi-g++", "C++ compiler to query system include dirs")
	c.Flags.BoolVar(&c.sysrootFromMake, "sysroot_from_make", false, `query system include dirs by "make cc-sysroot" and "make cxx-sysroot"`)

	c.Flags.StringVar(&c.frontendCC, "frontend_cc", "clang", "C compiler name in the database")
	c.Flags.StringVar(&c.frontendCXX, "frontend_cxx", "clang++", "C++ compiler name in the database")

	c.Flags.StringVar(&c.forwardCC, "forward_cc", "", "C compiler to run for intercepted invocations. empty doesn't compile")
	c.Flags.StringVar(&c.forwardCXX, "forward_cxx", "", "C++ compiler to run for intercepted invocations. empty doesn't compile")
}

type flagError struct {
	err error
}

func (f flagError) Error() string {
	return f.err.Error()
}

type errInterrupted struct{}

func (errInterrupted) Error() string        { return "interrupt by signal" }
func (errInterrupted) Is(target error) bool { return target == context.Canceled }

// Run runs the `compiledb` subcommand.
func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	c.started = time.Now()
	ctx := cli.GetContext(a, c, env)
	result, err := c.run(ctx, args)
	dur := formatDuration(time.Since(c.started))
	if err != nil {
		var errFlag flagError
		var errBuild *compiledb.BuildFailure
		var errTrace *compiledb.TraceReadFailure
		var errWrite *compiledb.SerializationFailure
		msgPrefix := "Error"
		exitCode := 1
		switch {
		case errors.As(err, &errFlag):
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		case errors.As(err, &errBuild):
			msgPrefix = "Build Failure"
			exitCode = errBuild.ExitCode
			err = fmt.Errorf("exit=%d, no database written", errBuild.ExitCode)
		case errors.As(err, &errTrace):
			msgPrefix = "Trace Failure"
		case errors.As(err, &errWrite):
			msgPrefix = "Write Failure"
		}
		if ui.IsTerminal() {
			dur = ui.SGR(ui.Bold, dur)
			msgPrefix = ui.SGR(ui.BackgroundRed, msgPrefix)
		}
		fmt.Fprintf(os.Stderr, "\n%6s %s: %v\n", dur, msgPrefix, err)
		return exitCode
	}
	for _, w := range result.Warnings {
		msgPrefix := "Warning"
		if ui.IsTerminal() {
			msgPrefix = ui.SGR(ui.Yellow, msgPrefix)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", msgPrefix, w)
	}
	msgPrefix := "Database Written"
	if ui.IsTerminal() {
		dur = ui.SGR(ui.Bold, dur)
		msgPrefix = ui.SGR(ui.Green, msgPrefix)
	}
	fmt.Fprintf(os.Stderr, "%6s %s: %s %d entries %s\n", dur, msgPrefix, result.Path, result.Entries, humanize.Bytes(uint64(result.Size)))
	return 0
}

func (c *run) run(ctx context.Context, args []string) (*compiledb.Result, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer signals.HandleInterrupt(func() {
		cancel(errInterrupted{})
	})()
	if c.verbose {
		log.SetLevel(log.DebugLevel)
	}
	dir, err := filepath.Abs(c.dir)
	if err != nil {
		return nil, flagError{err: fmt.Errorf("bad -C %q: %w", c.dir, err)}
	}
	build, err := c.buildCommand(args)
	if err != nil {
		return nil, err
	}
	return compiledb.Generate(ctx, compiledb.Options{
		Env:       execute.NewEnv(os.Environ()),
		Dir:       dir,
		Output:    c.output,
		Toolchain: c.toolchain,
		Build:     build,
		Frontends: compiledb.Frontends{
			C:   c.frontendCC,
			CXX: c.frontendCXX,
		},
		SysrootCC:       c.sysrootCC,
		SysrootCXX:      c.sysrootCXX,
		SysrootFromMake: c.sysrootFromMake,
		ForwardCC:       c.forwardCC,
		ForwardCXX:      c.forwardCXX,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
}

// formatDuration formats d as "1.23s", "4m05.67s" or "1h2m03.45s".
func formatDuration(d time.Duration) string {
	d = d.Round(10 * time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm%05.2fs", h, m, d.Seconds())
	case m > 0:
		return fmt.Sprintf("%dm%05.2fs", m, d.Seconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// buildCommand returns the build command with args appended.
func (c *run) buildCommand(args []string) (func(makeCmd, scratch string) []string, error) {
	if c.build == "" {
		return func(makeCmd, scratch string) []string {
			return append(compiledb.DefaultBuild(makeCmd, scratch), args...)
		}, nil
	}
	cmdline, err := shellquote.Split(c.build)
	if err != nil {
		return nil, flagError{err: fmt.Errorf("bad -build %q: %w", c.build, err)}
	}
	if len(cmdline) == 0 {
		return nil, flagError{err: errors.New("empty -build")}
	}
	cmdline = append(cmdline, args...)
	return func(string, string) []string {
		return cmdline
	}, nil
}
