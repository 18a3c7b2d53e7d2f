// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compiledb generates a compilation database
// (compile_commands.json) from an intercepted build.
package compiledb

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/purduesigbots/prosbuild/intercept"
	"github.com/purduesigbots/prosbuild/intercept/trace"
	"github.com/purduesigbots/prosbuild/toolsupport/gccutil"
)

// Compiler identifies a compiler language.
type Compiler int

const (
	C Compiler = iota
	CXX
)

func (c Compiler) String() string {
	switch c {
	case C:
		return "c"
	case CXX:
		return "cxx"
	}
	return fmt.Sprintf("compiler(%d)", int(c))
}

// lang returns the language name for gcc's -x.
func (c Compiler) lang() string {
	if c == CXX {
		return "c++"
	}
	return "c"
}

// Names are executable names of the compilers that the build invokes.
// Names are matched against the base name of an invoked executable.
type Names struct {
	C   []string
	CXX []string
}

// DefaultNames returns names of the intercept shims.
func DefaultNames() Names {
	return Names{
		C:   []string{intercept.ShimCC},
		CXX: []string{intercept.ShimCXX},
	}
}

func (n Names) compiler(executable string) (Compiler, bool) {
	base := strings.TrimSuffix(filepath.Base(executable), ".exe")
	switch {
	case slices.Contains(n.C, base):
		return C, true
	case slices.Contains(n.CXX, base):
		return CXX, true
	}
	return 0, false
}

// Compilation is a compiler invocation for one source file.
// It must not be modified once created.
type Compilation struct {
	Compiler Compiler

	// Source is the absolute path of the source file.
	Source string

	// Dir is the working directory of the compiler.
	Dir string

	// Flags are the compiler flags, without the compiler, the source,
	// -c and output flags.
	Flags []string
}

// key returns structural identity of the compilation.
func (c Compilation) key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\x00%s\x00%s", c.Compiler, c.Source, c.Dir)
	for _, f := range c.Flags {
		sb.WriteByte(0)
		sb.WriteString(f)
	}
	return sb.String()
}

func compareCompilation(a, b Compilation) int {
	return cmp.Or(
		strings.Compare(a.Source, b.Source),
		strings.Compare(a.Dir, b.Dir),
		cmp.Compare(a.Compiler, b.Compiler),
		slices.Compare(a.Flags, b.Flags),
	)
}

// Classify returns compilations of records invoking a compiler of names.
// A record compiling several sources yields one compilation per source.
// Records with the same compiler, source, dir and flags yield one
// compilation. The result is sorted by source, dir and flags and does
// not depend on the order of records.
func Classify(records []trace.Record, names Names) []Compilation {
	seen := make(map[string]bool)
	var comps []Compilation
	for _, rec := range records {
		compiler, ok := names.compiler(rec.Executable)
		if !ok {
			continue
		}
		sources, flags, ok := gccutil.SplitCompileArgs(rec.Args)
		if !ok {
			log.Debugf("not compile pid=%d %s %q", rec.PID, rec.Executable, rec.Args)
			continue
		}
		for _, src := range sources {
			if !filepath.IsAbs(src) {
				src = filepath.Join(rec.Dir, src)
			}
			c := Compilation{
				Compiler: compiler,
				Source:   filepath.Clean(src),
				Dir:      rec.Dir,
				Flags:    flags,
			}
			k := c.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			comps = append(comps, c)
		}
	}
	slices.SortFunc(comps, compareCompilation)
	log.Infof("classified %d records into %d compilations", len(records), len(comps))
	return comps
}
