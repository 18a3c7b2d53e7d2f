// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compiledb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/purduesigbots/prosbuild/execute"
	"github.com/purduesigbots/prosbuild/intercept"
	"github.com/purduesigbots/prosbuild/intercept/trace"
)

// DefaultFilename is the default filename of the database.
const DefaultFilename = "compile_commands.json"

// Options are options of Generate.
type Options struct {
	// Env is the environment of the build and sysroot queries.
	Env execute.Env

	// Dir is the project directory where the build runs.
	Dir string

	// Output is the filename of the database, relative to Dir.
	// Defaults to DefaultFilename.
	Output string

	// Toolchain is the root dir of the toolchain, e.g. $PROS_TOOLCHAIN.
	// Its bin dir is put first in PATH.
	Toolchain string

	// Build returns the build command, given a scratch dir for build
	// outputs. Defaults to DefaultBuild.
	Build func(makeCmd, scratch string) []string

	// Names are executable names of the compilers the build invokes.
	// Defaults to DefaultNames.
	Names Names

	// Frontends are compiler names in the database.
	// Defaults to DefaultFrontends.
	Frontends Frontends

	// SysrootCC and SysrootCXX are compilers queried for their system
	// include search lists.
	SysrootCC  string
	SysrootCXX string

	// SysrootFromMake queries system includes by the make targets
	// cc-sysroot and cxx-sysroot instead of SysrootCC and SysrootCXX.
	SysrootFromMake bool

	// ForwardCC and ForwardCXX are compilers the intercepted invocations
	// are forwarded to. Empty means compilers don't run.
	ForwardCC  string
	ForwardCXX string

	// Shim is the executable installed as the compiler shims.
	// Defaults to the running executable.
	Shim string

	// Stdout and Stderr receive the output of the build.
	Stdout, Stderr io.Writer
}

// Result is the result of Generate.
type Result struct {
	// Path is the filename of the database written.
	Path string

	// Entries is the number of entries in the database.
	Entries int

	// Size is the size of the database in bytes.
	Size int

	// Warnings are recoverable errors, e.g. *SysrootQueryFailure.
	Warnings []error
}

// MakeCommand returns the make command of the toolchain.
func MakeCommand(toolchain string) string {
	if runtime.GOOS == "windows" && toolchain != "" {
		return filepath.Join(toolchain, "bin", "make.exe")
	}
	return "make"
}

// DefaultBuild returns the command to build all objects of a PROS project
// with the compilers replaced by the shims and linking skipped.
// Objects are written in scratch.
func DefaultBuild(makeCmd, scratch string) []string {
	return []string{
		makeCmd,
		"all-obj",
		"BINDIR=" + filepath.ToSlash(scratch),
		"CC=" + intercept.ShimCC,
		"CXX=" + intercept.ShimCXX,
		"LD=true",
	}
}

func (o *Options) setDefaults() {
	if o.Output == "" {
		o.Output = DefaultFilename
	}
	if o.Build == nil {
		o.Build = DefaultBuild
	}
	if len(o.Names.C) == 0 && len(o.Names.CXX) == 0 {
		o.Names = DefaultNames()
	}
	if o.Frontends == (Frontends{}) {
		o.Frontends = DefaultFrontends()
	}
	if o.SysrootCC == "" {
		o.SysrootCC = "arm-none-eabi-gcc"
	}
	if o.SysrootCXX == "" {
		o.SysrootCXX = "arm-none-eabi-g++"
	}
}

func (o *Options) sysrootQueries(env execute.Env) []SysrootQuery {
	if o.SysrootFromMake {
		makeCmd := MakeCommand(o.Toolchain)
		return []SysrootQuery{
			MakeSysrootQuery(C, makeCmd, env, o.Dir),
			MakeSysrootQuery(CXX, makeCmd, env, o.Dir),
		}
	}
	return []SysrootQuery{
		CompilerSysrootQuery(C, o.SysrootCC, env, o.Dir),
		CompilerSysrootQuery(CXX, o.SysrootCXX, env, o.Dir),
	}
}

// Generate runs the build with compilers intercepted, and writes the
// compilation database of the compiler invocations.
// System include search lists are queried while the build runs.
//
// It returns *BuildFailure if the build fails, *TraceReadFailure if an
// invocation can't be read and *SerializationFailure if the database
// can't be written. In these cases, no database is written.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now()
	opts.setDefaults()
	env := opts.Env
	if opts.Toolchain != "" {
		env = env.PrependPath(filepath.Join(opts.Toolchain, "bin"))
	}

	it, err := intercept.New(intercept.Options{
		Env:        env,
		Dir:        opts.Dir,
		Shim:       opts.Shim,
		ForwardCC:  opts.ForwardCC,
		ForwardCXX: opts.ForwardCXX,
		Stdout:     opts.Stdout,
		Stderr:     opts.Stderr,
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var sysroots SysrootIncludeSet
	var warnings []error
	var capture *intercept.Capture
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		sysroots, warnings = ResolveSysroots(gctx, opts.sysrootQueries(env))
		return nil
	})
	eg.Go(func() error {
		var err error
		capture, err = it.Run(gctx, opts.Build(MakeCommand(opts.Toolchain), it.ScratchDir()))
		return err
	})
	err = eg.Wait()
	if err != nil {
		return nil, err
	}
	if capture.Failed() {
		return nil, &BuildFailure{ExitCode: capture.ExitCode}
	}

	records, err := trace.ReadAll(ctx, capture.Artifacts)
	var rerr *trace.ReadError
	if errors.As(err, &rerr) {
		return nil, &TraceReadFailure{Path: rerr.Path, Err: rerr.Err}
	}
	if err != nil {
		return nil, err
	}
	comps := Classify(records, opts.Names)
	db := Synthesize(comps, sysroots, opts.Frontends)

	fname := opts.Output
	if !filepath.IsAbs(fname) {
		fname = filepath.Join(opts.Dir, fname)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("interrupted before writing %s: %w", fname, context.Cause(ctx))
	}
	size, err := db.WriteFile(fname)
	if err != nil {
		return nil, err
	}
	log.Infof("wrote %s: %d entries %s in %s", fname, len(db), humanize.Bytes(uint64(size)), time.Since(started))
	return &Result{
		Path:     fname,
		Entries:  len(db),
		Size:     size,
		Warnings: warnings,
	}, nil
}
