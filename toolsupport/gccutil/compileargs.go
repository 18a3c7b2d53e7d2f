// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"path/filepath"
	"strings"
)

// flags that take their value as the next arg.
var flagsWithValue = map[string]bool{
	"-I":             true,
	"-D":             true,
	"-U":             true,
	"-x":             true,
	"-include":       true,
	"-imacros":       true,
	"-isystem":       true,
	"-iquote":        true,
	"-idirafter":     true,
	"-iprefix":       true,
	"-iwithprefix":   true,
	"-isysroot":      true,
	"--sysroot":      true,
	"-target":        true,
	"-arch":          true,
	"-Xclang":        true,
	"-Xlinker":       true,
	"-Xassembler":    true,
	"-Xpreprocessor": true,
	"-L":             true,
	"-T":             true,
	"-aux-info":      true,
	"--param":        true,
}

// flags that make the command something other than a compile of sources.
var nonCompileFlags = map[string]bool{
	"-E":   true,
	"-S":   true,
	"-M":   true,
	"-MM":  true,
	"-###": true,
	"-cc1": true,
}

// IsSourceFile reports whether fname has an extension gcc compiles as a
// C, C++, Objective-C or assembler source.
func IsSourceFile(fname string) bool {
	switch filepath.Ext(fname) {
	case ".c", ".i",
		".cc", ".cp", ".cxx", ".cpp", ".CPP", ".c++", ".C", ".ii",
		".m", ".mi", ".mm", ".M", ".mii",
		".s", ".S", ".sx":
		return true
	}
	return false
}

// SplitCompileArgs splits args of a compiler (without the compiler
// itself) into source files and the flags that affect how they are
// compiled.
// Output and dependency file flags (-c, -o, -MD, -MF, -MJ etc.) are dropped,
// as are positional args that are not sources (objects, libraries).
// ok is false if args is not a compile of sources, e.g. preprocess only
// or link only.
func SplitCompileArgs(args []string) (sources, flags []string, ok bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if nonCompileFlags[arg] {
			return nil, nil, false
		}
		switch arg {
		case "-c", "-MD", "-MMD", "-MP", "-MG":
			continue
		case "-o", "-MF", "-MT", "-MQ", "-MJ":
			i++
			continue
		}
		if flagsWithValue[arg] {
			flags = append(flags, arg)
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
			continue
		}
		switch {
		case strings.HasPrefix(arg, "-o"),
			strings.HasPrefix(arg, "-MF"),
			strings.HasPrefix(arg, "-MT"),
			strings.HasPrefix(arg, "-MQ"),
			strings.HasPrefix(arg, "-MJ"):
			continue
		case strings.HasPrefix(arg, "-"):
			flags = append(flags, arg)
		case IsSourceFile(arg):
			sources = append(sources, arg)
		}
	}
	if len(sources) == 0 {
		return nil, nil, false
	}
	return sources, flags, true
}
