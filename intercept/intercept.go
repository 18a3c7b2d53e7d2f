// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package intercept runs a build with compiler invocations intercepted.
//
// An Interceptor goes through Setup (New), Running and Captured (Run),
// and Teardown (Close). Setup creates a private temporary directory with
// shims named ShimCC and ShimCXX, and an environment that puts the shims
// first in PATH. Each shim writes a trace file for its process before
// forwarding to the real compiler, if any.
package intercept

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/purduesigbots/prosbuild/execute"
	"github.com/purduesigbots/prosbuild/execute/localexec"
	"github.com/purduesigbots/prosbuild/intercept/trace"
)

// Shim names that the build invokes instead of the compilers.
const (
	ShimCC  = "intercept-cc"
	ShimCXX = "intercept-c++"
)

// Environment variables passed from the interceptor to the shims.
const (
	envTraceDir  = "PROSBUILD_INTERCEPT_DIR"
	envForwardCC = "PROSBUILD_INTERCEPT_CC"
	envForwardCX = "PROSBUILD_INTERCEPT_CXX"
)

// Options are options of an Interceptor.
type Options struct {
	// Env is the environment of the build before interception.
	Env execute.Env

	// Dir is the working directory of the build.
	Dir string

	// Shim is the executable installed as shims.
	// It must call ShimMain when invoked by a shim name.
	// Defaults to the running executable.
	Shim string

	// ForwardCC and ForwardCXX are the compilers the shims forward to
	// after recording the invocation.
	// Empty means the shim exits successfully without running anything.
	ForwardCC  string
	ForwardCXX string

	// Stdin, Stdout and Stderr are the standard streams of the build.
	// Nil Stdout or Stderr mean os.Stdout or os.Stderr.
	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

type state int

const (
	stateSetup state = iota
	stateRunning
	stateCaptured
	stateTeardown
)

func (s state) String() string {
	switch s {
	case stateSetup:
		return "setup"
	case stateRunning:
		return "running"
	case stateCaptured:
		return "captured"
	case stateTeardown:
		return "teardown"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Interceptor owns a temporary directory for one intercepted build.
type Interceptor struct {
	opts Options

	dir      string
	traceDir string
	env      execute.Env

	mu    sync.Mutex
	state state
}

// Capture is the result of an intercepted build.
// Artifacts are valid until the Interceptor is closed.
type Capture struct {
	// ExitCode is the exit code of the build.
	ExitCode int

	// Artifacts are paths of trace files, one per intercepted process.
	Artifacts []string
}

// Failed reports whether the build failed.
func (c *Capture) Failed() bool {
	return c.ExitCode != 0
}

// New sets up an Interceptor.
// The caller must call Close, which removes the temporary directory.
func New(opts Options) (*Interceptor, error) {
	if opts.Shim == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable for shims: %w", err)
		}
		opts.Shim = exe
	}
	for _, fwd := range []string{opts.ForwardCC, opts.ForwardCXX} {
		if IsShim(fwd) {
			return nil, fmt.Errorf("shim %q can't forward to a shim", fwd)
		}
	}
	dir, err := os.MkdirTemp("", "intercept-")
	if err != nil {
		return nil, err
	}
	it := &Interceptor{
		opts:     opts,
		dir:      dir,
		traceDir: filepath.Join(dir, "traces"),
	}
	err = it.setup()
	if err != nil {
		rerr := os.RemoveAll(dir)
		return nil, errors.Join(fmt.Errorf("failed to set up interceptor: %w", err), rerr)
	}
	log.Debugf("intercept setup dir=%s shim=%s", dir, opts.Shim)
	return it, nil
}

func (it *Interceptor) setup() error {
	bindir := filepath.Join(it.dir, "bin")
	for _, d := range []string{bindir, it.traceDir, it.ScratchDir()} {
		err := os.Mkdir(d, 0700)
		if err != nil {
			return err
		}
	}
	for _, name := range []string{ShimCC, ShimCXX} {
		err := installShim(it.opts.Shim, filepath.Join(bindir, name+exeSuffix()))
		if err != nil {
			return err
		}
	}
	it.env = it.opts.Env.PrependPath(bindir).
		Set(envTraceDir, it.traceDir).
		Set(envForwardCC, it.opts.ForwardCC).
		Set(envForwardCX, it.opts.ForwardCXX)
	return nil
}

func installShim(target, fname string) error {
	err := os.Symlink(target, fname)
	if err == nil {
		return nil
	}
	// symlinks need privileges on windows.
	lerr := os.Link(target, fname)
	if lerr != nil {
		return errors.Join(err, lerr)
	}
	return nil
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// ScratchDir returns a directory the build may use for outputs that
// should be discarded, e.g. object files. It is removed by Close.
func (it *Interceptor) ScratchDir() string {
	return filepath.Join(it.dir, "scratch")
}

// Env returns the environment the build runs in.
func (it *Interceptor) Env() execute.Env {
	return it.env
}

// Run runs the build command args and blocks until it terminates.
// A build that exits with non-zero status is not an error; it is
// reported by Capture.ExitCode with the trace files produced so far.
// Run may be called only once.
func (it *Interceptor) Run(ctx context.Context, args []string) (*Capture, error) {
	it.mu.Lock()
	if it.state != stateSetup {
		s := it.state
		it.mu.Unlock()
		return nil, fmt.Errorf("intercept: run in %s state", s)
	}
	it.state = stateRunning
	it.mu.Unlock()

	cmd := &execute.Cmd{
		Desc:  "build",
		Args:  args,
		Env:   it.env,
		Dir:   it.opts.Dir,
		Stdin: it.opts.Stdin,
	}
	cmd.SetStdoutWriter(writerOr(it.opts.Stdout, os.Stdout))
	cmd.SetStderrWriter(writerOr(it.opts.Stderr, os.Stderr))
	log.Infof("intercept build: %s", cmd.Command())

	exitCode := 0
	err := localexec.Run(ctx, cmd)
	var eerr execute.ExitError
	switch {
	case errors.As(err, &eerr):
		exitCode = eerr.ExitCode
	case err != nil:
		it.setState(stateCaptured)
		return nil, err
	}
	it.setState(stateCaptured)

	artifacts, err := trace.List(it.traceDir)
	if err != nil {
		return nil, err
	}
	log.Infof("intercept build exit=%d traces=%d", exitCode, len(artifacts))
	return &Capture{
		ExitCode:  exitCode,
		Artifacts: artifacts,
	}, nil
}

func (it *Interceptor) setState(s state) {
	it.mu.Lock()
	it.state = s
	it.mu.Unlock()
}

// Close removes the temporary directory with all trace files.
// It is safe to call Close more than once.
func (it *Interceptor) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.state == stateTeardown {
		return nil
	}
	it.state = stateTeardown
	err := os.RemoveAll(it.dir)
	if err != nil {
		log.Warnf("failed to remove %s: %v", it.dir, err)
		return err
	}
	log.Debugf("intercept teardown dir=%s", it.dir)
	return nil
}

func writerOr(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
