// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gccutil provides utilities of gcc.
package gccutil

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/purduesigbots/prosbuild/execute"
	"github.com/purduesigbots/prosbuild/execute/localexec"
)

// Markers of the system include search list that gcc and clang print
// with -v.
const (
	SearchListStart = "#include <...> search starts here:"
	SearchListEnd   = "End of search list."
)

// ErrNoSearchList is returned by SystemIncludes when the output of the
// query has no system include search list.
var ErrNoSearchList = errors.New("no system include search list in output")

// SysrootQueryArgs returns command line args to make compiler print its
// system include search list for lang ("c" or "c++").
// The command reads an empty source from stdin and writes nothing.
func SysrootQueryArgs(compiler, lang string) []string {
	return []string{compiler, "-x", lang, "-E", "-v", "-"}
}

// SystemIncludes runs cmd and returns its system include search list
// as -I flags, in search order.
// Output of cmd is expected in the format of `gcc -E -v`.
// It returns ErrNoSearchList with empty flags if the output has no search
// list, which happens with toolchains that don't have system headers.
func SystemIncludes(ctx context.Context, cmd *execute.Cmd) ([]string, error) {
	s := time.Now()
	cmd.CombinedOutput = true
	err := localexec.Run(ctx, cmd)
	if err != nil {
		log.Debugf("failed to run %q: %v", cmd.Args, err)
		return nil, err
	}
	flags, found := ParseIncludeSearchList(cmd.Stdout())
	if !found {
		return nil, ErrNoSearchList
	}
	log.Infof("%s: %d system include dirs (%s)", cmd, len(flags), time.Since(s))
	return flags, nil
}

// ParseIncludeSearchList parses output of `gcc -E -v` and returns
// -I flags for the dirs listed between SearchListStart and SearchListEnd.
// found reports whether SearchListStart was seen.
func ParseIncludeSearchList(output []byte) (flags []string, found bool) {
	copying := false
	for len(output) > 0 {
		var line []byte
		line, output = nextLine(output)
		l := string(bytes.TrimSpace(line))
		switch {
		case l == SearchListStart:
			copying = true
			found = true
			continue
		case l == SearchListEnd:
			copying = false
			continue
		case !copying, l == "":
			continue
		}
		flags = append(flags, "-I"+l)
	}
	return flags, found
}

func nextLine(buf []byte) (line, remain []byte) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return buf, nil
	}
	return buf[:i], buf[i+1:]
}
