// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compiledb

import "fmt"

// BuildFailure is an error when the intercepted build exits with
// non-zero status. No database is written.
type BuildFailure struct {
	ExitCode int
}

func (e *BuildFailure) Error() string {
	return fmt.Sprintf("build failed: exit=%d", e.ExitCode)
}

// TraceReadFailure is an error when a trace file of the intercepted
// build can't be read. No database is written.
type TraceReadFailure struct {
	Path string
	Err  error
}

func (e *TraceReadFailure) Error() string {
	return fmt.Sprintf("failed to read trace %s: %v", e.Path, e.Err)
}

func (e *TraceReadFailure) Unwrap() error {
	return e.Err
}

// SysrootQueryFailure is an error when the system include search list
// of a compiler can't be queried.
// It is not fatal: the compiler is treated as having no system includes.
type SysrootQueryFailure struct {
	Compiler Compiler

	// ExitCode is the exit code of the query, or 0 if it exited
	// successfully or didn't run.
	ExitCode int

	// Output is the combined stdout and stderr of the query, without
	// ANSI escape codes of colored diagnostics.
	Output []byte

	Err error
}

func (e *SysrootQueryFailure) Error() string {
	return fmt.Sprintf("failed to query %s sysroot: %v", e.Compiler, e.Err)
}

func (e *SysrootQueryFailure) Unwrap() error {
	return e.Err
}

// SerializationFailure is an error when the database can't be written.
type SerializationFailure struct {
	Path string
	Err  error
}

func (e *SerializationFailure) Error() string {
	return fmt.Sprintf("failed to write database %s: %v", e.Path, e.Err)
}

func (e *SerializationFailure) Unwrap() error {
	return e.Err
}
