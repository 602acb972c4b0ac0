// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package httpapi exposes the kernel's five subsystems over HTTP: a thin
// Gin transport layer that marshals requests into Kernel calls and Kernel
// errors into the aethererr taxonomy's HTTP equivalents. It owns no
// business logic — every handler is a few lines of binding around
// *kernel.Kernel.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aetheros-project/aetheros/pkg/extensions"
	"github.com/aetheros-project/aetheros/pkg/kernel"
	"github.com/aetheros-project/aetheros/pkg/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Service is the HTTP transport's lifecycle contract, mirrored on the
// orchestrator service this package is grounded on: a server that runs
// until it fails and exposes its router for integration testing.
type Service interface {
	// Run starts the HTTP server and blocks until it stops or errors.
	Run() error

	// Router returns the underlying Gin engine, primarily for tests that
	// drive requests directly without binding a socket.
	Router() *gin.Engine
}

// Config holds the HTTP transport's own settings. The Kernel it wraps,
// and the Metrics registry it records against, are supplied separately so
// callers can share both across other transports (e.g. a future gRPC
// surface) without this package owning their lifecycle.
type Config struct {
	// Addr is the listen address, e.g. ":8080". Default: ":8080".
	Addr string

	// GinMode sets gin.SetMode ("debug", "release", "test"). Default:
	// leaves Gin's own default (debug) in place.
	GinMode string

	// DisableMetrics suppresses the /metrics endpoint that New otherwise
	// registers against the Metrics registry passed to it. Default: false
	// (metrics enabled).
	DisableMetrics bool

	// AuthProvider authenticates every /v1 request before it reaches a
	// Kernel-backed handler. Default: extensions.NopAuthProvider, which
	// accepts every request as "local-user" — the open-source behavior
	// documented on that type.
	AuthProvider extensions.AuthProvider

	Log *slog.Logger
}

func applyDefaults(cfg Config) Config {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.AuthProvider == nil {
		cfg.AuthProvider = &extensions.NopAuthProvider{}
	}
	return cfg
}

type service struct {
	cfg     Config
	kernel  *kernel.Kernel
	metrics *observability.Metrics
	reg     prometheus.Gatherer
	router  *gin.Engine
}

// New builds the HTTP transport around k, recording subsystem metrics
// against metrics (built via observability.NewMetrics) and exposing them
// at /metrics via reg, the same registry metrics was built from.
func New(cfg Config, k *kernel.Kernel, metrics *observability.Metrics, reg prometheus.Gatherer) (Service, error) {
	if k == nil {
		return nil, fmt.Errorf("httpapi: kernel is required")
	}
	cfg = applyDefaults(cfg)
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &service{cfg: cfg, kernel: k, metrics: metrics, reg: reg}
	s.initRouter()
	return s, nil
}

func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("aetheros-kernel"))

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if !s.cfg.DisableMetrics && s.reg != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
	}

	setupRoutes(s.router, s.kernel, s.metrics, s.cfg.AuthProvider)
}

func (s *service) Run() error {
	s.cfg.Log.Info("starting aetheros kernel HTTP transport", "addr", s.cfg.Addr)
	return s.router.Run(s.cfg.Addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

var _ Service = (*service)(nil)

// requestContext returns the Gin request's bound context, so handlers
// propagate client cancellation into blocking Kernel calls (broker
// queries, agent messaging) the same way any context.Context-aware Go
// service would.
func requestContext(c *gin.Context) context.Context {
	return c.Request.Context()
}
