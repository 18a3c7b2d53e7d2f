// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package execute runs commands.
package execute

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/kballard/go-shellquote"
)

// Executor is an interface to run the cmd.
type Executor interface {
	Run(ctx context.Context, cmd *Cmd) error
}

// Cmd includes all the information required to run a command.
type Cmd struct {
	// Desc is a short, human-readable identifier that is shown to the user when referencing this cmd in a log file.
	// Example: "make all-obj" or "cc sysroot"
	Desc string

	// Args holds command line arguments.
	// Args[0] is looked up in the PATH of Env, not the PATH of the current process.
	Args []string

	// Env specifies the environment of the process.
	Env Env

	// Dir specifies the working directory of the cmd.
	// If empty, the cmd runs in the current directory.
	Dir string

	// Stdin is the standard input of the cmd. Nil means the null device.
	Stdin io.Reader

	// CombinedOutput merges stderr into stdout, keeping the interleaving
	// the process produced.
	CombinedOutput bool

	stdoutWriter, stderrWriter io.Writer
	stdoutBuffer, stderrBuffer bytes.Buffer
}

// String returns a description of the cmd.
func (c *Cmd) String() string {
	if c.Desc != "" {
		return c.Desc
	}
	return c.Command()
}

// Command returns a command line string.
func (c *Cmd) Command() string {
	if len(c.Args) == 3 && c.Args[0] == "/bin/sh" && c.Args[1] == "-c" {
		return c.Args[2]
	}
	return shellquote.Join(c.Args...)
}

// SetStdoutWriter sets w for stdout.
// Output written to w is not kept in the cmd's stdout buffer.
func (c *Cmd) SetStdoutWriter(w io.Writer) {
	c.stdoutWriter = w
}

// SetStderrWriter sets w for stderr.
// Output written to w is not kept in the cmd's stderr buffer.
func (c *Cmd) SetStderrWriter(w io.Writer) {
	c.stderrWriter = w
}

// StdoutWriter returns a writer set for stdout.
func (c *Cmd) StdoutWriter() io.Writer {
	c.stdoutBuffer.Reset()
	if c.stdoutWriter == nil {
		return &c.stdoutBuffer
	}
	return c.stdoutWriter
}

// StderrWriter returns a writer set for stderr.
func (c *Cmd) StderrWriter() io.Writer {
	c.stderrBuffer.Reset()
	if c.stderrWriter == nil {
		return &c.stderrBuffer
	}
	return c.stderrWriter
}

// Stdout returns stdout output of the cmd.
// With CombinedOutput, it also contains stderr output.
func (c *Cmd) Stdout() []byte {
	return c.stdoutBuffer.Bytes()
}

// Stderr returns stderr output of the cmd.
func (c *Cmd) Stderr() []byte {
	return c.stderrBuffer.Bytes()
}

// ExitError is an error of cmd exit.
type ExitError struct {
	ExitCode int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit=%d", e.ExitCode)
}
