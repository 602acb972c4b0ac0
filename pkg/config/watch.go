// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler receives the freshly reloaded config trees, or a non-nil
// error if the files on disk no longer decode cleanly. A bad edit (e.g. a
// partially saved file) should leave the kernel running on its last-known-
// good Trees rather than being handed a zero value; callers are expected
// to ignore a call with a non-nil error rather than apply it.
type ReloadHandler func(Trees, error)

// Watcher watches a config directory's three YAML files and re-runs Load
// on change, debouncing bursts of writes (editors commonly emit several
// events for a single save) into a single reload.
//
// Safe for concurrent use; the handler is invoked from a single goroutine.
type Watcher struct {
	paths    Paths
	watcher  *fsnotify.Watcher
	handler  ReloadHandler
	debounce time.Duration

	changed  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// DefaultDebounce is how long the watcher waits after the last observed
// change before reloading, matching the debounce window a human editing
// several config files in quick succession would need.
const DefaultDebounce = 250 * time.Millisecond

// NewWatcher creates a watcher over the config directory containing p's
// three files. Call Start to begin watching.
func NewWatcher(p Paths, handler ReloadHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		paths:    p,
		watcher:  fsw,
		handler:  handler,
		debounce: DefaultDebounce,
		changed:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The three config files' parent directories are
// added to the underlying inotify/kqueue watch (fsnotify watches
// directories, not individual files, so renames-over-the-original-path —
// the pattern most editors use to save — are still observed). Start
// returns once the initial watch is established; reloads happen
// asynchronously until the context is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := map[string]struct{}{
		filepath.Dir(w.paths.AgentProfiles): {},
		filepath.Dir(w.paths.Policies):      {},
		filepath.Dir(w.paths.Schedule):      {},
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}

	go w.processEvents()
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher and releases its underlying file descriptors.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) watchedPaths() map[string]struct{} {
	return map[string]struct{}{
		filepath.Clean(w.paths.AgentProfiles): {},
		filepath.Clean(w.paths.Policies):      {},
		filepath.Clean(w.paths.Schedule):      {},
	}
}

// processEvents filters fsnotify events down to the three files this
// Watcher cares about and nudges the debounce loop. It drops events for
// any other file sharing the watched directories without blocking.
func (w *Watcher) processEvents() {
	watched := w.watchedPaths()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if _, ok := watched[filepath.Clean(event.Name)]; !ok {
				continue
			}
			select {
			case w.changed <- struct{}{}:
			default:
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// debounceLoop waits for a change notification, then waits out the
// debounce window for further changes before reloading and calling the
// handler — the same batching shape the graph package's directory watcher
// uses, collapsed to a single pending-reload flag since Load always
// re-reads all three files together rather than per-path.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	reload := func() {
		trees, err := Load(w.paths)
		if w.handler != nil {
			w.handler(trees, err)
		}
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
			return
		case <-w.changed:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			reload()
		}
	}
}
