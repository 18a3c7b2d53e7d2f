// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compiledb

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Frontends are compiler names written as the first argument of entries,
// in place of the names the build invoked.
type Frontends struct {
	C   string
	CXX string
}

// DefaultFrontends returns clang frontends.
func DefaultFrontends() Frontends {
	return Frontends{C: "clang", CXX: "clang++"}
}

func (f Frontends) name(c Compiler) string {
	if c == CXX {
		return f.CXX
	}
	return f.C
}

// Merged is a compilation with its compiler's system include flags.
// Merged has no Merge method, so system includes are merged at most once.
type Merged struct {
	comp  Compilation
	flags []string
}

// Merge returns the compilation with system include flags of its
// compiler in sysroots put before its flags.
// c is not modified.
func (c Compilation) Merge(sysroots SysrootIncludeSet) Merged {
	sys := sysroots[c.Compiler]
	flags := make([]string, 0, len(sys)+len(c.Flags))
	flags = append(flags, sys...)
	flags = append(flags, c.Flags...)
	return Merged{comp: c, flags: flags}
}

// Compilation returns the compilation before merge.
func (m Merged) Compilation() Compilation {
	return m.comp
}

// Flags returns system include flags followed by the compilation's flags.
func (m Merged) Flags() []string {
	return slices.Clone(m.flags)
}

// Entry returns the database entry of the compilation.
func (m Merged) Entry(frontends Frontends) Entry {
	args := make([]string, 0, len(m.flags)+3)
	args = append(args, frontends.name(m.comp.Compiler))
	args = append(args, m.flags...)
	args = append(args, "-c", m.comp.Source)
	return Entry{
		Arguments: args,
		Directory: m.comp.Dir,
		File:      m.comp.Source,
	}
}

// Entry is an entry of compilation database.
// Fields are in the order of JSON keys.
type Entry struct {
	Arguments []string `json:"arguments"`
	Directory string   `json:"directory"`
	File      string   `json:"file"`
}

// Database is a compilation database, sorted by file and directory.
type Database []Entry

// Synthesize merges sysroots into comps and returns the database.
func Synthesize(comps []Compilation, sysroots SysrootIncludeSet, frontends Frontends) Database {
	db := make(Database, 0, len(comps))
	for _, c := range comps {
		db = append(db, c.Merge(sysroots).Entry(frontends))
	}
	slices.SortStableFunc(db, func(a, b Entry) int {
		return cmp.Or(
			strings.Compare(a.File, b.File),
			strings.Compare(a.Directory, b.Directory),
			slices.Compare(a.Arguments, b.Arguments),
		)
	})
	return db
}

// Marshal returns the JSON array of the database, indented by 4 spaces.
func (db Database) Marshal() ([]byte, error) {
	if db == nil {
		db = Database{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	err := enc.Encode(db)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the database to fname and returns its size.
// fname is replaced only when the whole database is written.
// It returns *SerializationFailure on error.
func (db Database) WriteFile(fname string) (int, error) {
	buf, err := db.Marshal()
	if err != nil {
		return 0, &SerializationFailure{Path: fname, Err: err}
	}
	err = writeFileAtomic(fname, buf)
	if err != nil {
		return 0, &SerializationFailure{Path: fname, Err: err}
	}
	return len(buf), nil
}

func writeFileAtomic(fname string, buf []byte) error {
	f, err := os.CreateTemp(filepath.Dir(fname), "."+filepath.Base(fname)+".tmp-*")
	if err != nil {
		return err
	}
	_, err = f.Write(buf)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(f.Name(), 0644)
	}
	if err == nil {
		err = os.Rename(f.Name(), fname)
	}
	if err != nil {
		rerr := os.Remove(f.Name())
		return errors.Join(err, rerr)
	}
	return nil
}
