// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package version provides version subcommand.
package version

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/maruel/subcommands"
)

func Cmd(ver string) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "version",
		ShortDesc: "prints the executable version",
		LongDesc:  "Prints the executable version and the go version and vcs revision it was built with.",
		CommandRun: func() subcommands.CommandRun {
			r := &versionRun{version: ver}
			r.init()
			return r
		},
	}
}

type versionRun struct {
	subcommands.CommandRunBase
	version string
	build   bool
}

func (c *versionRun) init() {
	c.Flags.BoolVar(&c.build, "build", true, "show build info")
}

func (c *versionRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	fmt.Fprintln(a.GetOut(), c.version)
	if !c.build {
		return 0
	}
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return 0
	}
	printBuildInfo(a.GetOut(), buildInfo)
	return 0
}

func printBuildInfo(w io.Writer, buildInfo *debug.BuildInfo) {
	if buildInfo.GoVersion != "" {
		fmt.Fprintf(w, "go\t%s\n", buildInfo.GoVersion)
	}
	for _, s := range buildInfo.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			fmt.Fprintf(w, "build\t%s=%s\n", s.Key, s.Value)
		}
	}
}
