// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package localexec implements local command execution.
package localexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/purduesigbots/prosbuild/execute"
)

// LocalExec implements execute.Executor interface that runs commands locally.
type LocalExec struct{}

// Run runs cmd with LocalExec.
func Run(ctx context.Context, cmd *execute.Cmd) error {
	return LocalExec{}.Run(ctx, cmd)
}

// Run runs a cmd and blocks until it terminates.
// It returns execute.ExitError if the cmd exits with non-zero status.
// If ctx is cancelled, the process is killed and the ctx error is returned.
func (LocalExec) Run(ctx context.Context, cmd *execute.Cmd) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("no arguments in the command: %s", cmd)
	}
	path, err := lookPath(cmd)
	if err != nil {
		return err
	}
	c := exec.CommandContext(ctx, path, cmd.Args[1:]...)
	c.Args[0] = cmd.Args[0]
	c.Env = cmd.Env.Environ()
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.StdoutWriter()
	if cmd.CombinedOutput {
		c.Stderr = c.Stdout
	} else {
		c.Stderr = cmd.StderrWriter()
	}

	s := time.Now()
	err = c.Run()
	code := exitCode(err)
	log.Debugf("%s exit=%d stdout=%d stderr=%d %s err=%v", cmd, code, len(cmd.Stdout()), len(cmd.Stderr()), time.Since(s), err)
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", cmd, context.Cause(ctx))
	}
	var eerr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &eerr):
		return execute.ExitError{ExitCode: code}
	default:
		return fmt.Errorf("failed to run %s: %w", cmd, err)
	}
}

func lookPath(cmd *execute.Cmd) (string, error) {
	if len(cmd.Env.Environ()) == 0 {
		return exec.LookPath(cmd.Args[0])
	}
	return cmd.Env.LookPath(cmd.Args[0])
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if !errors.As(err, &eerr) {
		return 1
	}
	if w, ok := eerr.ProcessState.Sys().(syscall.WaitStatus); ok {
		if w.Signaled() {
			return 128 + int(w.Signal())
		}
		return w.ExitStatus()
	}
	if code := eerr.ExitCode(); code > 0 {
		return code
	}
	return 1
}
