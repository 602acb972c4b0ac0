// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the embedded key-value persistence layer backing
// the audit log, the process-improvement flag log, and per-cycle phase
// outputs. This package picks BadgerDB, an embedded LSM-tree store that
// needs no separate server process.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config controls how a DB is opened.
type Config struct {
	// Path is the on-disk directory. Ignored when InMemory is true.
	Path string
	// InMemory opens a RAM-only database, used for tests and short-lived
	// demo runs.
	InMemory bool
	// SyncWrites forces an fsync on every write; durable but slower.
	SyncWrites bool
	// NumVersionsToKeep bounds how many historical versions of a key
	// Badger retains before compaction discards them. The append-only
	// logs this package backs never overwrite a key, so 1 is sufficient.
	NumVersionsToKeep int
	// GCInterval is how often the caller should run value-log garbage
	// collection; zero disables it. This package does not start the GC
	// loop itself — see RunGC.
	GCInterval time.Duration
}

// DefaultConfig is the production-oriented default: durable, on-disk,
// periodic GC.
func DefaultConfig(path string) Config {
	return Config{
		Path: path, SyncWrites: true, NumVersionsToKeep: 1, GCInterval: 5 * time.Minute,
	}
}

// InMemoryConfig is for tests and ephemeral demo runs: no disk footprint,
// GC disabled since there is no value log to reclaim.
func InMemoryConfig() Config {
	return Config{InMemory: true, SyncWrites: false, NumVersionsToKeep: 1, GCInterval: 0}
}

// DB wraps *badger.DB with context-aware transaction helpers.
type DB struct {
	inner *badger.DB
}

// OpenDB opens a database per cfg.
func OpenDB(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("store: path is required unless InMemory is set")
	}
	opts := badger.DefaultOptions(cfg.Path)
	opts = opts.WithInMemory(cfg.InMemory)
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}
	opts = opts.WithLogger(nil)

	inner, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: opening badger db: %w", err)
	}
	return &DB{inner: inner}, nil
}

// OpenInMemory is shorthand for OpenDB(InMemoryConfig()).
func OpenInMemory() (*DB, error) { return OpenDB(InMemoryConfig()) }

// OpenWithPath is shorthand for OpenDB(DefaultConfig(path)).
func OpenWithPath(path string) (*DB, error) { return OpenDB(DefaultConfig(path)) }

// Close releases the underlying database.
func (db *DB) Close() error { return db.inner.Close() }

// Update runs fn in a read-write transaction, matching *badger.DB.Update's
// signature directly for callers that don't need context propagation.
func (db *DB) Update(fn func(txn *badger.Txn) error) error { return db.inner.Update(fn) }

// View runs fn in a read-only transaction.
func (db *DB) View(fn func(txn *badger.Txn) error) error { return db.inner.View(fn) }

// WithTxn runs fn in a read-write transaction, failing fast if ctx is
// already cancelled before the transaction starts.
func (db *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: context cancelled: %w", err)
	}
	return db.inner.Update(fn)
}

// WithReadTxn runs fn in a read-only transaction, failing fast if ctx is
// already cancelled before the transaction starts.
func (db *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: context cancelled: %w", err)
	}
	return db.inner.View(fn)
}

// RunGC runs a single value-log GC pass with the given discard ratio,
// returning nil if there was nothing to reclaim (badger.ErrNoRewrite is
// swallowed, since that is the expected steady-state outcome, not a
// failure).
func (db *DB) RunGC(discardRatio float64) error {
	err := db.inner.RunValueLogGC(discardRatio)
	if err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("store: value log gc: %w", err)
	}
	return nil
}

// GCRunner periodically calls RunGC on a ticker until Stop is called.
type GCRunner struct {
	db       *DB
	interval time.Duration
	ratio    float64
	onError  func(error)
	stop     chan struct{}
}

// NewGCRunner validates its arguments and returns a runner that has not yet
// started; call Start to launch the background goroutine.
func NewGCRunner(db *DB, interval time.Duration, ratio float64, onError func(error)) (*GCRunner, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db must not be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("store: interval must be positive")
	}
	return &GCRunner{db: db, interval: interval, ratio: ratio, onError: onError, stop: make(chan struct{})}, nil
}

// Start launches the periodic GC loop in a new goroutine.
func (r *GCRunner) Start() {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.db.RunGC(r.ratio); err != nil && r.onError != nil {
					r.onError(err)
				}
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop terminates the GC loop.
func (r *GCRunner) Stop() { close(r.stop) }
