// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the latest watch-mode scan results over HTTP.
package server

import (
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/geiger/services/geiger/scan"
)

// Store keeps the most recent Result per file, in memory only.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	results map[string]*scan.Result
	updated time.Time
	rounds  int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{results: make(map[string]*scan.Result)}
}

// Update replaces the stored result of every file in results.
func (s *Store) Update(results []*scan.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		if r == nil {
			continue
		}
		s.results[r.Path] = r
	}
	s.updated = time.Now()
	s.rounds++
}

// Remove forgets path.
func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, path)
}

// Get returns the stored result for path.
func (s *Store) Get(path string) (*scan.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[path]
	return r, ok
}

// Snapshot returns every stored result sorted by path.
func (s *Store) Snapshot() []*scan.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*scan.Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Stats returns the number of Update calls and the time of the last one.
func (s *Store) Stats() (rounds int, updated time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rounds, s.updated
}
