// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compiledb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

var testSysroots = SysrootIncludeSet{
	C: {"-I/tc/arm-none-eabi/include"},
	CXX: {
		"-I/tc/arm-none-eabi/include/c++/10.3.1",
		"-I/tc/arm-none-eabi/include",
	},
}

func TestMerge(t *testing.T) {
	c := Compilation{
		Compiler: CXX,
		Source:   "/proj/src/opcontrol.cpp",
		Dir:      "/proj",
		Flags:    []string{"-Iinclude", "-std=gnu++20"},
	}
	want := []string{
		"-I/tc/arm-none-eabi/include/c++/10.3.1",
		"-I/tc/arm-none-eabi/include",
		"-Iinclude",
		"-std=gnu++20",
	}
	m := c.Merge(testSysroots)
	if diff := cmp.Diff(want, m.Flags()); diff != "" {
		t.Errorf("Merge(sysroots).Flags() diff -want +got:\n%s", diff)
	}
	// merging the same compilation again gives the same flags.
	m2 := c.Merge(testSysroots)
	if diff := cmp.Diff(m.Flags(), m2.Flags()); diff != "" {
		t.Errorf("second Merge(sysroots).Flags() diff -first +second:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-Iinclude", "-std=gnu++20"}, c.Flags); diff != "" {
		t.Errorf("Merge modified compilation flags: diff -want +got:\n%s", diff)
	}
	if diff := cmp.Diff(c, m.Compilation()); diff != "" {
		t.Errorf("Merged.Compilation() diff -want +got:\n%s", diff)
	}
}

func TestMergeNoSysroot(t *testing.T) {
	c := Compilation{Compiler: C, Source: "/proj/foo.c", Dir: "/proj", Flags: []string{"-O2"}}
	got := c.Merge(SysrootIncludeSet{CXX: {"-I/sys/cxx"}}).Entry(DefaultFrontends())
	want := Entry{
		Arguments: []string{"clang", "-O2", "-c", "/proj/foo.c"},
		Directory: "/proj",
		File:      "/proj/foo.c",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Entry diff -want +got:\n%s", diff)
	}
}

func TestEntry(t *testing.T) {
	for _, tc := range []struct {
		name      string
		frontends Frontends
		comp      Compilation
		want      Entry
	}{
		{
			name:      "c",
			frontends: DefaultFrontends(),
			comp:      Compilation{Compiler: C, Source: "/proj/src/main.c", Dir: "/proj", Flags: []string{"-Iinclude"}},
			want: Entry{
				Arguments: []string{"clang", "-I/tc/arm-none-eabi/include", "-Iinclude", "-c", "/proj/src/main.c"},
				Directory: "/proj",
				File:      "/proj/src/main.c",
			},
		},
		{
			name:      "cxx-custom-frontend",
			frontends: Frontends{C: "arm-none-eabi-gcc", CXX: "arm-none-eabi-g++"},
			comp:      Compilation{Compiler: CXX, Source: "/proj/src/a.cpp", Dir: "/proj"},
			want: Entry{
				Arguments: []string{
					"arm-none-eabi-g++",
					"-I/tc/arm-none-eabi/include/c++/10.3.1",
					"-I/tc/arm-none-eabi/include",
					"-c", "/proj/src/a.cpp",
				},
				Directory: "/proj",
				File:      "/proj/src/a.cpp",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.comp.Merge(testSysroots).Entry(tc.frontends)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Entry diff -want +got:\n%s", diff)
			}
		})
	}
}

func testCompilations() []Compilation {
	return []Compilation{
		{
			Compiler: CXX,
			Source:   "/proj/src/opcontrol.cpp",
			Dir:      "/proj",
			Flags:    []string{"-Iinclude", "-std=gnu++20"},
		},
		{
			Compiler: C,
			Source:   "/proj/src/main.c",
			Dir:      "/proj",
			Flags:    []string{"-Iinclude", `-DFOO="<a&b>"`},
		},
	}
}

func TestMarshal(t *testing.T) {
	g := newGoldie(t)
	db := Synthesize(testCompilations(), testSysroots, DefaultFrontends())
	got, err := db.Marshal()
	if err != nil {
		t.Fatalf("Marshal()=%v; want nil", err)
	}
	g.Assert(t, "database", got)

	empty, err := Synthesize(nil, testSysroots, DefaultFrontends()).Marshal()
	if err != nil {
		t.Fatalf("Marshal()=%v; want nil", err)
	}
	g.Assert(t, "empty", empty)
}

func TestSynthesizeOrder(t *testing.T) {
	comps := []Compilation{
		{Compiler: C, Source: "/proj/b.c", Dir: "/proj/y"},
		{Compiler: C, Source: "/proj/b.c", Dir: "/proj/x"},
		{Compiler: C, Source: "/proj/a.c", Dir: "/proj/z"},
	}
	db := Synthesize(comps, nil, DefaultFrontends())
	var got [][2]string
	for _, e := range db {
		got = append(got, [2]string{e.File, e.Directory})
	}
	want := [][2]string{
		{"/proj/a.c", "/proj/z"},
		{"/proj/b.c", "/proj/x"},
		{"/proj/b.c", "/proj/y"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Synthesize order diff -want +got:\n%s", diff)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, DefaultFilename)
	err := os.WriteFile(fname, []byte("old"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	db := Synthesize(testCompilations(), testSysroots, DefaultFrontends())
	n, err := db.WriteFile(fname)
	if err != nil {
		t.Fatalf("WriteFile(%q)=%v; want nil", fname, err)
	}
	want, err := db.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(want) {
		t.Errorf("WriteFile(%q)=%d; want %d", fname, n, len(want))
	}
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Errorf("file diff -want +got:\n%s", diff)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 1 {
		t.Errorf("dir has %d files; want only %s", len(ents), DefaultFilename)
	}
}

func TestWriteFileError(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "no-such-dir", DefaultFilename)
	_, err := Database{}.WriteFile(fname)
	var serr *SerializationFailure
	if !errors.As(err, &serr) {
		t.Fatalf("WriteFile(%q)=%v; want SerializationFailure", fname, err)
	}
	if serr.Path != fname {
		t.Errorf("serr.Path=%q; want %q", serr.Path, fname)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("WriteFile(%q)=%v; want wrapping ErrNotExist", fname, err)
	}
}
