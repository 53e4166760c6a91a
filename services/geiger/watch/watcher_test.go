// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() *Options {
	return &Options{
		Debounce:            20 * time.Millisecond,
		MaxBatchesPerSecond: 100,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// collector gathers delivered batches.
type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) handle(_ context.Context, changes []Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range changes {
		c.paths = append(c.paths, ch.Path)
	}
}

func (c *collector) seen(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.paths {
		if p == path {
			return true
		}
	}
	return false
}

func TestWatcher_DirectoryDeliversRustChanges(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w, err := New(c.handle, testOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, dir))
	defer w.Stop()
	assert.True(t, w.IsWatching())

	rs := filepath.Join(dir, "lib.rs")
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(rs, []byte("fn main() {}\n"), 0o644))

	assert.Eventually(t, func() bool { return c.seen(rs) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, c.seen(txt))
}

func TestWatcher_SingleFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "main.rs")
	other := filepath.Join(dir, "other.rs")
	require.NoError(t, os.WriteFile(target, []byte("fn main() {}\n"), 0o644))

	c := &collector{}
	w, err := New(c.handle, testOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, target))
	defer w.Stop()

	require.NoError(t, os.WriteFile(other, []byte("fn other() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("fn main() { a(); }\n"), 0o644))

	assert.Eventually(t, func() bool { return c.seen(target) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, c.seen(other))
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w, err := New(func(context.Context, []Change) {}, testOptions())
	require.NoError(t, err)
	defer w.Stop()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.False(t, w.IsWatching())
}

func TestWatcher_StartFailureReleasesWatcher(t *testing.T) {
	w, err := New(func(context.Context, []Change) {}, testOptions())
	require.NoError(t, err)
	defer w.Stop()

	good := t.TempDir()
	err = w.Start(context.Background(), good, filepath.Join(good, "missing"))
	require.Error(t, err)
	assert.False(t, w.IsWatching())
	assert.ErrorIs(t, w.fs.Add(good), fsnotify.ErrClosed)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(nil, testOptions())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), t.TempDir()))

	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
}

func TestWatcher_IgnoreDir(t *testing.T) {
	w, err := New(nil, testOptions())
	require.NoError(t, err)
	defer w.Stop()

	assert.True(t, w.ignoreDir("target"))
	assert.True(t, w.ignoreDir(".git"))
	assert.False(t, w.ignoreDir("src"))
	assert.False(t, w.ignoreDir("."))
}

func TestDedupe(t *testing.T) {
	now := time.Now()
	in := []Change{
		{Path: "a.rs", Op: OpCreate, Time: now},
		{Path: "b.rs", Op: OpWrite, Time: now},
		{Path: "a.rs", Op: OpWrite, Time: now.Add(time.Millisecond)},
	}
	out := dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a.rs", out[0].Path)
	assert.Equal(t, OpWrite, out[0].Op)
	assert.Equal(t, "b.rs", out[1].Path)
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "rename", OpRename.String())
	assert.Equal(t, "unknown", Op(9).String())
}
