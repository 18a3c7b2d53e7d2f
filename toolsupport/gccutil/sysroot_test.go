// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/purduesigbots/prosbuild/execute"
)

const armGCCVerboseOutput = `Using built-in specs.
COLLECT_GCC=arm-none-eabi-gcc
Target: arm-none-eabi
Thread model: single
gcc version 10.3.1 20210824 (release) (GNU Arm Embedded Toolchain 10.3-2021.10)
COLLECT_GCC_OPTIONS='-E' '-v' '-mcpu=arm7tdmi' '-mfloat-abi=soft' '-marm' '-march=armv4t'
 /opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/cc1 -E -quiet -v -iprefix /opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/ - -mcpu=arm7tdmi -mfloat-abi=soft -marm -march=armv4t
ignoring nonexistent directory "/opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/../../../../arm-none-eabi/usr/local/include"
#include "..." search starts here:
#include <...> search starts here:
 /opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/include
 /opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/include-fixed
 /opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/../../../../arm-none-eabi/include
End of search list.
# 1 "<stdin>"
# 1 "<built-in>"
`

func TestParseIncludeSearchList(t *testing.T) {
	for _, tc := range []struct {
		name      string
		output    string
		want      []string
		wantFound bool
	}{
		{
			name:   "arm-none-eabi-gcc",
			output: armGCCVerboseOutput,
			want: []string{
				"-I/opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/include",
				"-I/opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/include-fixed",
				"-I/opt/gcc-arm-none-eabi/bin/../lib/gcc/arm-none-eabi/10.3.1/../../../../arm-none-eabi/include",
			},
			wantFound: true,
		},
		{
			name:      "crlf",
			output:    "#include <...> search starts here:\r\n C:\\toolchain\\include\r\nEnd of search list.\r\n",
			want:      []string{`-IC:\toolchain\include`},
			wantFound: true,
		},
		{
			name:      "empty-list",
			output:    "#include <...> search starts here:\nEnd of search list.\n",
			wantFound: true,
		},
		{
			name:   "no-marker",
			output: "arm-none-eabi-gcc: fatal error: no input files\ncompilation terminated.\n",
		},
		{
			name:      "no-end-marker",
			output:    "#include <...> search starts here:\n /usr/include\n",
			want:      []string{"-I/usr/include"},
			wantFound: true,
		},
		{
			name:      "end-marker-not-included",
			output:    "#include <...> search starts here:\n /a\nEnd of search list.\n /b\n",
			want:      []string{"-I/a"},
			wantFound: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, found := ParseIncludeSearchList([]byte(tc.output))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseIncludeSearchList diff -want +got:\n%s", diff)
			}
			if found != tc.wantFound {
				t.Errorf("ParseIncludeSearchList found=%t; want %t", found, tc.wantFound)
			}
		})
	}
}

func TestSysrootQueryArgs(t *testing.T) {
	got := SysrootQueryArgs("arm-none-eabi-g++", "c++")
	want := []string{"arm-none-eabi-g++", "-x", "c++", "-E", "-v", "-"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SysrootQueryArgs diff -want +got:\n%s", diff)
	}
}

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+content), 0755)
	if err != nil {
		t.Fatal(err)
	}
}

func TestSystemIncludes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	ctx := context.Background()
	dir := t.TempDir()
	// gcc prints the search list on stderr.
	writeScript(t, dir, "fake-gcc", `cat >&2 <<'END'
#include <...> search starts here:
 /toolchain/include
 /toolchain/include-fixed
 /toolchain/arm-none-eabi/include
End of search list.
END
`)
	writeScript(t, dir, "broken-gcc", "echo 'fatal error' >&2; exit 1\n")
	writeScript(t, dir, "quiet-gcc", "exit 0\n")
	env := execute.NewEnv(os.Environ()).PrependPath(dir)

	t.Run("ok", func(t *testing.T) {
		cmd := &execute.Cmd{Args: SysrootQueryArgs("fake-gcc", "c"), Env: env}
		got, err := SystemIncludes(ctx, cmd)
		if err != nil {
			t.Fatalf("SystemIncludes(ctx, %q)=_, %v; want nil err", cmd.Args, err)
		}
		want := []string{"-I/toolchain/include", "-I/toolchain/include-fixed", "-I/toolchain/arm-none-eabi/include"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("SystemIncludes diff -want +got:\n%s", diff)
		}
	})

	t.Run("exit-failure", func(t *testing.T) {
		cmd := &execute.Cmd{Args: SysrootQueryArgs("broken-gcc", "c"), Env: env}
		got, err := SystemIncludes(ctx, cmd)
		var eerr execute.ExitError
		if !errors.As(err, &eerr) || eerr.ExitCode != 1 {
			t.Errorf("SystemIncludes(ctx, %q)=%q, %v; want ExitError{1}", cmd.Args, got, err)
		}
		if string(cmd.Stdout()) != "fatal error\n" {
			t.Errorf("output=%q; want %q", cmd.Stdout(), "fatal error\n")
		}
	})

	t.Run("no-search-list", func(t *testing.T) {
		cmd := &execute.Cmd{Args: SysrootQueryArgs("quiet-gcc", "c"), Env: env}
		got, err := SystemIncludes(ctx, cmd)
		if !errors.Is(err, ErrNoSearchList) || len(got) != 0 {
			t.Errorf("SystemIncludes(ctx, %q)=%q, %v; want nil, %v", cmd.Args, got, err, ErrNoSearchList)
		}
	})
}
