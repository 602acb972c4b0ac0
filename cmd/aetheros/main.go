// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command aetheros starts the AetherOS kernel's HTTP server.
//
// This is the process entry point for the containerized kernel service. It
// reads its configuration from environment variables, wires the five
// subsystems together, and serves them over HTTP until signalled to stop.
//
// # Environment Variables
//
//   - AETHEROS_ADDR: HTTP listen address (default: ":8080")
//   - AETHEROS_GIN_MODE: gin.SetMode value - debug, release, test (default: "")
//   - AETHEROS_CONFIG_DIR: directory holding agents.yaml, policies.yaml,
//     schedule.yaml (default: "" - starts with an empty roster and
//     phase.DefaultSchedule)
//   - AETHEROS_STORE_PATH: on-disk path for the audit/improvement store
//     (default: "" - in-memory store, state does not survive a restart)
//   - AETHEROS_LOG_LEVEL: debug, info, warn, error (default: "info")
//   - AETHEROS_LOG_DIR: directory for JSON file logs, in addition to stderr
//     (default: "" - stderr only)
//
// # Usage
//
//	# Build
//	go build -o aetheros ./cmd/aetheros
//
//	# Run
//	./aetheros
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/audit"
	"github.com/aetheros-project/aetheros/pkg/broker"
	"github.com/aetheros-project/aetheros/pkg/config"
	"github.com/aetheros-project/aetheros/pkg/ctxwindow"
	"github.com/aetheros-project/aetheros/pkg/httpapi"
	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/kernel"
	"github.com/aetheros-project/aetheros/pkg/logging"
	"github.com/aetheros-project/aetheros/pkg/observability"
	"github.com/aetheros-project/aetheros/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := logging.New(logging.Config{
		Level:            parseLevel(getEnvString("AETHEROS_LOG_LEVEL", "info")),
		LogDir:           os.Getenv("AETHEROS_LOG_DIR"),
		Service:          "aetheros-kernel",
		AutoDetectFormat: true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	storePath := os.Getenv("AETHEROS_STORE_PATH")
	db, err := openStore(storePath)
	if err != nil {
		log.Fatalf("aetheros: opening store: %v", err)
	}
	defer db.Close()

	gcRunner, err := store.NewGCRunner(db, 5*time.Minute, 0.5, func(err error) {
		logger.Slog().Warn("value log gc failed", "error", err)
	})
	if err != nil {
		log.Fatalf("aetheros: starting gc runner: %v", err)
	}
	gcRunner.Start()
	defer gcRunner.Stop()

	auditLog := audit.NewLog(db)
	improvementLog := improvement.NewLog(db)

	trees, err := loadConfig()
	if err != nil {
		log.Fatalf("aetheros: loading config: %v", err)
	}

	router := broker.NewRouter(nil)
	sanitizers := broker.NewSanitizerTable(nil)
	sources := map[ctxwindow.Layer]ctxwindow.Source{
		ctxwindow.Doctrinal:     ctxwindow.NopSource(),
		ctxwindow.Situational:   ctxwindow.NopSource(),
		ctxwindow.Historical:    ctxwindow.NopSource(),
		ctxwindow.Collaborative: ctxwindow.NopSource(),
	}
	templates := ctxwindow.DefaultTemplateTable()

	k, err := kernel.New(kernel.Config{
		Profiles:       trees.Profiles,
		Policies:       trees.Policies,
		Schedule:       trees.Schedule,
		Router:         router,
		Sanitizers:     sanitizers,
		Sources:        sources,
		Templates:      templates,
		AuditLog:       auditLog,
		ImprovementLog: improvementLog,
		Log:            logger.Slog(),
	})
	if err != nil {
		log.Fatalf("aetheros: building kernel: %v", err)
	}

	if cycleID := os.Getenv("AETHEROS_CYCLE_ID"); cycleID != "" {
		if _, err := k.StartCycle(cycleID); err != nil {
			log.Fatalf("aetheros: starting cycle: %v", err)
		}
	}

	tracingShutdown, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName:  "aetheros-kernel",
		OTLPEndpoint: os.Getenv("AETHEROS_OTEL_ENDPOINT"),
	})
	if err != nil {
		log.Fatalf("aetheros: starting tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(ctx); err != nil {
			logger.Slog().Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	svc, err := httpapi.New(httpapi.Config{
		Addr:    getEnvString("AETHEROS_ADDR", ":8080"),
		GinMode: os.Getenv("AETHEROS_GIN_MODE"),
		Log:     logger.Slog(),
	}, k, metrics, reg)
	if err != nil {
		log.Fatalf("aetheros: building http service: %v", err)
	}

	if dir := os.Getenv("AETHEROS_CONFIG_DIR"); dir != "" {
		watcher, err := config.NewWatcher(config.DefaultPaths(dir), func(_ config.Trees, err error) {
			if err != nil {
				logger.Slog().Error("config reload failed, keeping running configuration", "error", err)
				return
			}
			logger.Slog().Warn("config change detected; restart the process to apply it",
				"reason", "the kernel does not support swapping its registry, policy table, or schedule out from under an active cycle")
		})
		if err != nil {
			log.Fatalf("aetheros: starting config watcher: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := watcher.Start(ctx); err != nil {
			log.Fatalf("aetheros: watching config: %v", err)
		}
		defer watcher.Stop()
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		logger.Slog().Info("shutdown signal received")
		os.Exit(0)
	}()

	logger.Slog().Info("starting aetheros kernel", "addr", getEnvString("AETHEROS_ADDR", ":8080"), "agents", len(trees.Profiles))
	if err := svc.Run(); err != nil {
		log.Fatalf("aetheros: http server error: %v", err)
	}
}

// loadConfig reads the three config trees from AETHEROS_CONFIG_DIR, or
// returns a minimal default set (no agents, phase.DefaultSchedule) when the
// variable is unset, matching a process that can come up with an empty
// roster and be populated later via the agent registration endpoint.
func loadConfig() (config.Trees, error) {
	dir := os.Getenv("AETHEROS_CONFIG_DIR")
	if dir == "" {
		policies, err := access.NewPolicyTable(nil)
		if err != nil {
			return config.Trees{}, err
		}
		return config.Trees{Policies: policies}, nil
	}
	return config.Load(config.DefaultPaths(dir))
}

// openStore opens the embedded store, in-memory if path is unset.
func openStore(path string) (*store.DB, error) {
	if path == "" {
		return store.OpenInMemory()
	}
	return store.OpenWithPath(path)
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
