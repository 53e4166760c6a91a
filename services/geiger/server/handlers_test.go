// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/geiger/services/geiger/ledger"
	"github.com/AleutianAI/geiger/services/geiger/scan"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleResults() []*scan.Result {
	var m ledger.FileMetrics
	m.Counters.Functions.Safe = 1
	m.Counters.Exprs.Unsafe = 2
	return []*scan.Result{
		{Path: "src/main.rs", Metrics: m},
		{Path: "src/lib.rs"},
	}
}

func doRequest(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStore_UpdateAndSnapshot(t *testing.T) {
	store := NewStore()
	store.Update(sampleResults())
	store.Update([]*scan.Result{nil, {Path: "src/main.rs"}})

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "src/lib.rs", snap[0].Path)
	assert.Equal(t, "src/main.rs", snap[1].Path)
	assert.Zero(t, snap[1].Metrics.Counters.Exprs.Unsafe)

	rounds, updated := store.Stats()
	assert.Equal(t, 2, rounds)
	assert.False(t, updated.IsZero())

	store.Remove("src/lib.rs")
	_, ok := store.Get("src/lib.rs")
	assert.False(t, ok)
}

func TestHandleHealth(t *testing.T) {
	store := NewStore()
	store.Update(sampleResults())
	router := NewRouter(store, "v1.2.3", nil)

	rec := doRequest(t, router, "/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
	assert.Equal(t, 2, resp.Files)
	assert.Equal(t, 1, resp.Rounds)
}

func TestHandleHealth_EmptyStoreOmitsLastUpdated(t *testing.T) {
	router := NewRouter(NewStore(), "dev", nil)

	rec := doRequest(t, router, "/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "last_updated")
	assert.EqualValues(t, 0, body["rounds"])

	store := NewStore()
	store.Update(sampleResults())
	rec = doRequest(t, NewRouter(store, "dev", nil), "/v1/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "last_updated")
}

func TestHandleResults(t *testing.T) {
	store := NewStore()
	store.Update(sampleResults())
	router := NewRouter(store, "dev", nil)

	t.Run("all", func(t *testing.T) {
		rec := doRequest(t, router, "/v1/results")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ResultsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Files, 2)
		assert.Equal(t, "src/lib.rs", resp.Files[0].Path)
	})

	t.Run("one file", func(t *testing.T) {
		rec := doRequest(t, router, "/v1/results?path=src/main.rs")
		require.Equal(t, http.StatusOK, rec.Code)

		var r scan.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
		assert.Equal(t, "src/main.rs", r.Path)
		assert.Equal(t, uint64(2), r.Metrics.Counters.Exprs.Unsafe)
	})

	t.Run("unknown file", func(t *testing.T) {
		rec := doRequest(t, router, "/v1/results?path=nope.rs")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "nope.rs")
	})
}

func TestNewRouter_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "geiger_scan_total 1\n")
	})

	router := NewRouter(NewStore(), "dev", metrics)
	rec := doRequest(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "geiger_scan_total")

	router = NewRouter(NewStore(), "dev", nil)
	rec = doRequest(t, router, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", NewRouter(NewStore(), "dev", nil), logger)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
