// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compiledb

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/purduesigbots/prosbuild/execute"
	"github.com/purduesigbots/prosbuild/toolsupport/gccutil"
	"github.com/purduesigbots/prosbuild/ui"
)

// SysrootIncludeSet holds system include flags (-I<dir>) per compiler,
// in search order. A compiler with no entry has no system includes.
// It must not be modified once resolved.
type SysrootIncludeSet map[Compiler][]string

// SysrootQuery is a command to print the system include search list of
// a compiler, in the format of `gcc -E -v`.
type SysrootQuery struct {
	Compiler Compiler
	Cmd      *execute.Cmd
}

// CompilerSysrootQuery returns a query running compiler frontend
// directly with an empty source.
func CompilerSysrootQuery(c Compiler, compiler string, env execute.Env, dir string) SysrootQuery {
	return SysrootQuery{
		Compiler: c,
		Cmd: &execute.Cmd{
			Desc: c.String() + " sysroot",
			Args: gccutil.SysrootQueryArgs(compiler, c.lang()),
			Env:  env,
			Dir:  dir,
		},
	}
}

// MakeSysrootQuery returns a query running the project's make target
// for the sysroot of c, i.e. "cc-sysroot" or "cxx-sysroot".
// The targets run the compiler with the project's flags, which may
// change the search list, e.g. by -mcpu or --sysroot.
func MakeSysrootQuery(c Compiler, makeCmd string, env execute.Env, dir string) SysrootQuery {
	target := "cc-sysroot"
	if c == CXX {
		target = "cxx-sysroot"
	}
	return SysrootQuery{
		Compiler: c,
		Cmd: &execute.Cmd{
			Desc: c.String() + " sysroot",
			Args: []string{makeCmd, target},
			Env:  env,
			Dir:  dir,
		},
	}
}

// ResolveSysroots runs queries concurrently and returns the system
// include flags of each compiler.
// A query that fails yields no flags for its compiler and a
// *SysrootQueryFailure in warnings.
func ResolveSysroots(ctx context.Context, queries []SysrootQuery) (SysrootIncludeSet, []error) {
	flags := make([][]string, len(queries))
	failures := make([]*SysrootQueryFailure, len(queries))
	var eg errgroup.Group
	for i, q := range queries {
		eg.Go(func() error {
			f, err := gccutil.SystemIncludes(ctx, q.Cmd)
			if err != nil {
				ferr := &SysrootQueryFailure{
					Compiler: q.Compiler,
					Output:   []byte(ui.StripANSIEscapeCodes(string(q.Cmd.Stdout()))),
					Err:      err,
				}
				var eerr execute.ExitError
				if errors.As(err, &eerr) {
					ferr.ExitCode = eerr.ExitCode
				}
				failures[i] = ferr
				return nil
			}
			flags[i] = f
			return nil
		})
	}
	// queries never return error.
	_ = eg.Wait()

	sysroots := make(SysrootIncludeSet)
	var warnings []error
	for i, q := range queries {
		if ferr := failures[i]; ferr != nil {
			log.Warnf("%v\n%s", ferr, ferr.Output)
			warnings = append(warnings, ferr)
		}
		sysroots[q.Compiler] = append(sysroots[q.Compiler], flags[i]...)
	}
	return sysroots, warnings
}
