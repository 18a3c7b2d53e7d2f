// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package intercept

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// forward replaces the shim process with argv.
// It only returns on failure.
func forward(argv []string) (int, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return 1, err
	}
	err = unix.Exec(path, argv, os.Environ())
	return 1, err
}
