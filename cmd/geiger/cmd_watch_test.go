// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/geiger/services/geiger/watch"
)

func TestWatchSession_ScanAndHandle(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "lib.rs", "fn safe() {}\n")

	var out bytes.Buffer
	opts := testScanOptions()
	session := newWatchSession(opts, &out, quietLogger())
	ctx := context.Background()

	require.NoError(t, session.scanPaths(ctx, []string{path}))
	r, ok := session.store.Get(path)
	require.True(t, ok)
	assert.Equal(t, uint64(1), r.Metrics.Counters.Functions.Safe)
	assert.Contains(t, out.String(), "1 file(s) scanned")

	require.NoError(t, os.WriteFile(path, []byte(scenarioSource), 0o644))
	out.Reset()
	session.handle(ctx, []watch.Change{{Path: path, Op: watch.OpWrite, Time: time.Now()}})

	r, ok = session.store.Get(path)
	require.True(t, ok)
	assert.Equal(t, uint64(2), r.Metrics.Counters.Exprs.Unsafe)
	assert.Contains(t, out.String(), scenarioLine)

	session.handle(ctx, []watch.Change{{Path: path, Op: watch.OpRemove, Time: time.Now()}})
	_, ok = session.store.Get(path)
	assert.False(t, ok)
}

func TestWatchSession_EmptyBatch(t *testing.T) {
	var out bytes.Buffer
	session := newWatchSession(testScanOptions(), &out, quietLogger())
	require.NoError(t, session.scanPaths(context.Background(), nil))
	assert.Empty(t, out.String())

	rounds, _ := session.store.Stats()
	assert.Zero(t, rounds)
}

func TestExecuteWatch_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "src/lib.rs", "fn safe() {}\n")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	err := executeWatch(ctx, testScanOptions(dir), "", &out, quietLogger())
	require.NoError(t, err)
	assert.Contains(t, out.String(), filepath.Join(dir, "src", "lib.rs"))
	assert.Contains(t, out.String(), "1 file(s) scanned")
}

func TestExecuteWatch_MissingRoot(t *testing.T) {
	err := executeWatch(context.Background(), testScanOptions(filepath.Join(t.TempDir(), "nope")), "", &bytes.Buffer{}, quietLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
