// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package intercept

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/purduesigbots/prosbuild/intercept/trace"
)

// IsShim reports whether argv0 invokes a shim.
func IsShim(argv0 string) bool {
	_, ok := shimForward(argv0)
	return ok
}

// shimForward returns the env var holding the compiler the shim forwards to.
func shimForward(argv0 string) (string, bool) {
	if argv0 == "" {
		return "", false
	}
	name := strings.TrimSuffix(filepath.Base(argv0), ".exe")
	switch name {
	case ShimCC:
		return envForwardCC, true
	case ShimCXX:
		return envForwardCX, true
	}
	return "", false
}

// ShimMain runs the shim for args (os.Args) and returns the exit code.
// It records the invocation in the trace directory of the interceptor,
// then forwards args to the compiler configured for the shim.
// It returns non-zero if the invocation can't be recorded, so that
// the build fails instead of producing an incomplete database.
func ShimMain(args []string) int {
	name := filepath.Base(args[0])
	err := record(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return 1
	}
	envForward, _ := shimForward(args[0])
	compiler := os.Getenv(envForward)
	if compiler == "" {
		return 0
	}
	argv := append([]string{compiler}, args[1:]...)
	code, err := forward(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: failed to run %s: %v\n", name, compiler, err)
		return 1
	}
	return code
}

func record(args []string) error {
	dir := os.Getenv(envTraceDir)
	if dir == "" {
		return errors.New(envTraceDir + " is not set, not running under interceptor?")
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	_, err = trace.Write(dir, trace.Record{
		PID:        os.Getpid(),
		Executable: args[0],
		Args:       args[1:],
		Dir:        cwd,
	})
	return err
}
