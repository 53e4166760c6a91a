// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reports batches of changed Rust source files.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Op is the kind of change seen for a file.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the lowercase operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one changed file.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives a deduplicated batch of changes. It is called from a
// single goroutine.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits for further changes before
	// delivering a batch. Default: 200ms.
	Debounce time.Duration

	// MaxBatchesPerSecond caps handler invocations. Default: 2.
	MaxBatchesPerSecond float64

	// IgnoreDirs are directory names never descended into. Hidden
	// directories are always ignored. Default: ["target"].
	IgnoreDirs []string

	// BufferSize is the capacity of the pending change queue. Default: 1024.
	BufferSize int

	Logger *slog.Logger
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:            200 * time.Millisecond,
		MaxBatchesPerSecond: 2,
		IgnoreDirs:          []string{"target"},
		BufferSize:          1024,
		Logger:              slog.Default(),
	}
}

// Watcher watches files and directories for changes to .rs files.
//
// Description:
//
//	Directories are watched recursively, skipping ignored and hidden
//	directories; directories created later are added as they appear.
//	Plain file arguments are watched through their parent directory and
//	filtered by path. Changes are collected until the debounce window
//	passes without new events, deduplicated per path and handed to the
//	handler, rate limited.
//
// Thread Safety:
//
//	Start and Stop are safe for concurrent use. The handler runs on one
//	goroutine.
type Watcher struct {
	fs       *fsnotify.Watcher
	handler  Handler
	opts     Options
	limiter  *rate.Limiter
	files    map[string]bool
	dirs     []string
	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// New creates a Watcher. Call Start to begin delivering changes.
func New(handler Handler, opts *Options) (*Watcher, error) {
	o := DefaultOptions()
	if opts != nil {
		if opts.Debounce > 0 {
			o.Debounce = opts.Debounce
		}
		if opts.MaxBatchesPerSecond > 0 {
			o.MaxBatchesPerSecond = opts.MaxBatchesPerSecond
		}
		if opts.IgnoreDirs != nil {
			o.IgnoreDirs = opts.IgnoreDirs
		}
		if opts.BufferSize > 0 {
			o.BufferSize = opts.BufferSize
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fs:      fw,
		handler: handler,
		opts:    o,
		limiter: rate.NewLimiter(rate.Limit(o.MaxBatchesPerSecond), 1),
		files:   make(map[string]bool),
		changes: make(chan Change, o.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Start registers roots and starts the event and debounce goroutines. A
// root may be a directory or a single file. If a root cannot be added the
// underlying watcher is closed and the Watcher is left not watching.
func (w *Watcher) Start(ctx context.Context, roots ...string) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	for _, root := range roots {
		if err := w.add(root); err != nil {
			w.mu.Lock()
			w.watching = false
			w.mu.Unlock()
			_ = w.fs.Close()
			return err
		}
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching. Pending changes are flushed to the handler.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fs.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether Start has been called and Stop has not.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) add(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.mu.Lock()
		w.files[abs] = true
		w.mu.Unlock()
		return w.fs.Add(filepath.Dir(abs))
	}
	w.mu.Lock()
	w.dirs = append(w.dirs, abs)
	w.mu.Unlock()
	return w.addRecursive(root)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoreDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) ignoreDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	for _, ignored := range w.opts.IgnoreDirs {
		if name == ignored {
			return true
		}
	}
	return false
}

// relevant reports whether a change to path should be delivered: a .rs
// file that was named as a root or lies under a directory root.
func (w *Watcher) relevant(path string) bool {
	if filepath.Ext(path) != ".rs" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[abs] {
		return true
	}
	for _, dir := range w.dirs {
		if strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignoreDir(info.Name()) {
					if err := w.addRecursive(event.Name); err != nil {
						w.opts.Logger.Warn("watching new directory failed",
							slog.String("dir", event.Name),
							slog.String("error", err.Error()))
					}
					continue
				}
			}

			if !w.relevant(event.Name) {
				continue
			}

			change := Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				w.opts.Logger.Warn("change queue full, dropping event",
					slog.String("file", event.Name))
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func(ctx context.Context) {
		if len(batch) > 0 && w.handler != nil {
			if err := w.limiter.Wait(ctx); err == nil {
				w.handler(ctx, dedupe(batch))
			}
		}
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			flush(context.WithoutCancel(ctx))
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			flush(ctx)
		}
	}
}

// dedupe keeps the latest change per path, in order of first appearance.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
