// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffscope narrows a scan to the Rust files touched by a unified
// diff.
package diffscope

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ErrInvalidDiff is returned when the input is not a unified diff.
var ErrInvalidDiff = errors.New("invalid diff")

// LineRange is a hunk's span in the new file, 1-based and inclusive.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ChangedFile is one Rust file that exists after the diff is applied.
type ChangedFile struct {
	// Path is the new-side path with any git "b/" prefix removed.
	Path    string      `json:"path"`
	Added   int         `json:"added"`
	Deleted int         `json:"deleted"`
	Hunks   []LineRange `json:"hunks"`
}

// Parse reads a multi-file unified diff and returns the .rs files it
// touches, sorted by path.
//
// Description:
//
//	Files removed by the diff (new name /dev/null) are skipped because
//	there is nothing left to scan. A file appearing twice is merged.
//
// Outputs:
//
//	[]ChangedFile - Touched Rust files. Empty for a diff without any.
//	error - ErrInvalidDiff wrapped with the parser's message.
func Parse(r io.Reader) ([]ChangedFile, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(r).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiff, err)
	}

	byPath := make(map[string]*ChangedFile)
	for _, fd := range fileDiffs {
		if fd.NewName == "" || fd.NewName == "/dev/null" {
			continue
		}
		path := stripPrefix(fd.NewName)
		if filepath.Ext(path) != ".rs" {
			continue
		}

		cf, ok := byPath[path]
		if !ok {
			cf = &ChangedFile{Path: path}
			byPath[path] = cf
		}
		stat := fd.Stat()
		cf.Added += int(stat.Added + stat.Changed)
		cf.Deleted += int(stat.Deleted + stat.Changed)
		for _, h := range fd.Hunks {
			if h.NewLines == 0 {
				continue
			}
			cf.Hunks = append(cf.Hunks, LineRange{
				Start: int(h.NewStartLine),
				End:   int(h.NewStartLine + h.NewLines - 1),
			})
		}
	}

	out := make([]ChangedFile, 0, len(byPath))
	for _, cf := range byPath {
		out = append(out, *cf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Paths joins every changed file onto root.
func Paths(root string, files []ChangedFile) []string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, filepath.Join(root, filepath.FromSlash(f.Path)))
	}
	return paths
}

// stripPrefix removes the a/ or b/ prefix git adds to diff names.
func stripPrefix(name string) string {
	name = strings.TrimPrefix(name, "b/")
	return strings.TrimPrefix(name, "a/")
}
