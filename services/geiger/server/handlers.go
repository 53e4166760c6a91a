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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/geiger/services/geiger/scan"
)

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Files       int       `json:"files"`
	Rounds      int       `json:"rounds"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
}

// ResultsResponse is the body of GET /v1/results.
type ResultsResponse struct {
	Files []*scan.Result `json:"files"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handlers serves a Store.
type Handlers struct {
	store   *Store
	version string
}

// NewHandlers creates handlers over store.
func NewHandlers(store *Store, version string) *Handlers {
	return &Handlers{store: store, version: version}
}

// HandleHealth reports liveness and store statistics.
func (h *Handlers) HandleHealth(c *gin.Context) {
	rounds, updated := h.store.Stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		Files:       len(h.store.Snapshot()),
		Rounds:      rounds,
		LastUpdated: updated,
	})
}

// HandleResults returns every stored result, or one file with ?path=.
func (h *Handlers) HandleResults(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusOK, ResultsResponse{Files: h.store.Snapshot()})
		return
	}
	r, ok := h.store.Get(path)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no result for " + path})
		return
	}
	c.JSON(http.StatusOK, r)
}

// RegisterRoutes mounts the handlers on group.
func RegisterRoutes(group *gin.RouterGroup, h *Handlers) {
	group.GET("/health", h.HandleHealth)
	group.GET("/results", h.HandleResults)
}

// NewRouter builds the engine: /v1 API routes plus /metrics when a metrics
// handler is given.
func NewRouter(store *Store, version string, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("geiger"))

	RegisterRoutes(router.Group("/v1"), NewHandlers(store, version))
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}

// Serve runs handler on addr until ctx is canceled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
