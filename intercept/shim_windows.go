// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package intercept

import (
	"errors"
	"os"
	"os/exec"
)

// forward runs argv with the shim's standard streams and returns its
// exit code. Windows has no exec(2).
func forward(argv []string) (int, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	var eerr *exec.ExitError
	if errors.As(err, &eerr) {
		return eerr.ExitCode(), nil
	}
	if err != nil {
		return 1, err
	}
	return 0, nil
}
