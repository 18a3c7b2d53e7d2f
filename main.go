// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// prosbuild generates a compilation database of a PROS project.
//
// When invoked as intercept-cc or intercept-c++, it runs as a compiler
// shim of an intercepted build instead.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"github.com/purduesigbots/prosbuild/intercept"
	"github.com/purduesigbots/prosbuild/subcmd/compiledb"
	"github.com/purduesigbots/prosbuild/subcmd/help"
	"github.com/purduesigbots/prosbuild/subcmd/version"
)

const executableVersion = "v0.1.0"

func main() {
	if intercept.IsShim(os.Args[0]) {
		os.Exit(intercept.ShimMain(os.Args))
	}
	os.Exit(prosbuildMain(os.Args[1:]))
}

func prosbuildMain(args []string) int {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Fatalf("panic: %v\n%s", r, buf)
		}
	}()

	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		log.Debugf("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
	}
	return subcommands.Run(getApplication(), args)
}

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "prosbuild",
		Title: "PROS project build tool",
		Context: func(ctx context.Context) context.Context {
			return ctx
		},
		Commands: []*subcommands.Command{
			compiledb.Cmd(),

			help.Cmd(),
			version.Cmd(executableVersion),
		},
		EnvVars: map[string]subcommands.EnvVarDefinition{
			"PROS_TOOLCHAIN": {
				ShortDesc: "root dir of the PROS toolchain. its bin dir is put first in PATH",
			},
		},
	}
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}
