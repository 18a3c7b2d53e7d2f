// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// Env is an immutable process environment.
// Methods that change variables return a new Env and leave the receiver
// untouched, so one Env can be shared by several commands of a run.
type Env struct {
	vars []string
}

// NewEnv returns an Env holding a copy of vars ("KEY=value" entries).
// Typically vars is os.Environ().
func NewEnv(vars []string) Env {
	return Env{vars: slices.Clone(vars)}
}

// Environ returns a copy of the "KEY=value" entries, suitable for exec.Cmd.Env.
func (e Env) Environ() []string {
	return slices.Clone(e.vars)
}

// Get returns the value of key, or "" when it's not set.
func (e Env) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

// Lookup returns the value of key and whether it is set.
// The last entry wins, as for exec.Cmd.
func (e Env) Lookup(key string) (string, bool) {
	for i := len(e.vars) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(e.vars[i], "=")
		if ok && envKeyEqual(k, key) {
			return v, true
		}
	}
	return "", false
}

// Set returns a new Env with key set to value.
func (e Env) Set(key, value string) Env {
	vars := make([]string, 0, len(e.vars)+1)
	for _, kv := range e.vars {
		k, _, _ := strings.Cut(kv, "=")
		if envKeyEqual(k, key) {
			continue
		}
		vars = append(vars, kv)
	}
	vars = append(vars, key+"="+value)
	return Env{vars: vars}
}

// PrependPath returns a new Env with dirs put in front of PATH, in order.
// Empty dirs are ignored.
func (e Env) PrependPath(dirs ...string) Env {
	var elems []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		elems = append(elems, dir)
	}
	if len(elems) == 0 {
		return e
	}
	key := pathKey(e)
	if p := e.Get(key); p != "" {
		elems = append(elems, p)
	}
	return e.Set(key, strings.Join(elems, string(os.PathListSeparator)))
}

// LookPath searches for an executable named file in the PATH of e.
// exec.LookPath only consults the PATH of the current process, which
// differs from e once PrependPath is used.
func (e Env) LookPath(file string) (string, error) {
	if strings.ContainsRune(file, filepath.Separator) || strings.Contains(file, "/") {
		return exec.LookPath(file)
	}
	for _, dir := range filepath.SplitList(e.Get(pathKey(e))) {
		if dir == "" {
			dir = "."
		}
		for _, name := range executableNames(file) {
			p := filepath.Join(dir, name)
			if isExecutable(p) {
				if !filepath.IsAbs(p) {
					return p, &exec.Error{Name: file, Err: exec.ErrDot}
				}
				return p, nil
			}
		}
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

func executableNames(file string) []string {
	if runtime.GOOS != "windows" || filepath.Ext(file) != "" {
		return []string{file}
	}
	return []string{file + ".exe", file + ".bat", file + ".cmd"}
}

func isExecutable(p string) bool {
	fi, err := os.Stat(p)
	if err != nil {
		return false
	}
	if fi.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return fi.Mode()&0111 != 0
}

func pathKey(e Env) string {
	if runtime.GOOS != "windows" {
		return "PATH"
	}
	// keep the spelling already used in the environment, e.g. "Path".
	for _, kv := range e.vars {
		k, _, _ := strings.Cut(kv, "=")
		if strings.EqualFold(k, "PATH") {
			return k
		}
	}
	return "Path"
}

func envKeyEqual(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
