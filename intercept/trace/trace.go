// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package trace reads and writes exec trace files.
//
// The interceptor shim writes one trace file per intercepted process.
// The file name is unique per process, so concurrent processes never
// write the same file and no locking is needed.
// The encoding is private to this package and may change between
// versions.
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Ext is the file extension of trace files.
const Ext = ".json"

// Record is an intercepted exec of a process.
type Record struct {
	// PID is the process id of the intercepted process.
	PID int `json:"pid"`

	// Executable is the name the process was invoked as, i.e. argv[0].
	Executable string `json:"executable"`

	// Args are the command line args, without Executable.
	Args []string `json:"args"`

	// Dir is the working directory of the process.
	Dir string `json:"dir"`
}

// ReadError is an error for a trace file that can't be read or decoded.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("bad trace %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Write writes rec in a new trace file in dir and returns its path.
// The file appears atomically, so a reader never sees a partial record.
func Write(dir string, rec Record) (string, error) {
	buf, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	_, err = f.Write(buf)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	// pid may be reused by the OS during a long build.
	fname := filepath.Join(dir, fmt.Sprintf("%d-%s%s", rec.PID, uuid.NewString(), Ext))
	err = os.Rename(f.Name(), fname)
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return fname, nil
}

// List returns paths of trace files in dir, sorted.
// Temporary files of writers still running are ignored.
func List(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, ent := range ents {
		name := ent.Name()
		if ent.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != Ext {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// Read reads a trace file.
func Read(fname string) (Record, error) {
	var rec Record
	buf, err := os.ReadFile(fname)
	if err != nil {
		return rec, &ReadError{Path: fname, Err: err}
	}
	d := json.NewDecoder(bytes.NewReader(buf))
	err = d.Decode(&rec)
	if err != nil {
		return Record{}, &ReadError{Path: fname, Err: err}
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return Record{}, &ReadError{Path: fname, Err: errors.New("trailing data after record")}
	}
	switch {
	case rec.Executable == "":
		return Record{}, &ReadError{Path: fname, Err: errors.New("no executable")}
	case rec.Dir == "":
		return Record{}, &ReadError{Path: fname, Err: errors.New("no working directory")}
	}
	return rec, nil
}

// ReadAll reads all trace files in paths.
// Records are returned in the order of paths.
// It fails if any file fails to read.
func ReadAll(ctx context.Context, paths []string) ([]Record, error) {
	recs := make([]Record, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := Read(p)
			if err != nil {
				return err
			}
			recs[i] = rec
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		return nil, err
	}
	return recs, nil
}
