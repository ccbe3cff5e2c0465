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
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
)

// ThresholdStore holds the active ruleset. Readers get a snapshot; a reload
// swaps the whole table, so a request never sees a half-applied update.
type ThresholdStore struct {
	p atomic.Pointer[classify.Thresholds]
}

// NewThresholdStore returns a store holding t.
func NewThresholdStore(t classify.Thresholds) *ThresholdStore {
	s := &ThresholdStore{}
	s.Store(t)
	return s
}

// Load returns the current snapshot.
func (s *ThresholdStore) Load() classify.Thresholds {
	return *s.p.Load()
}

// Store replaces the snapshot.
func (s *ThresholdStore) Store(t classify.Thresholds) {
	s.p.Store(&t)
}

// Watcher reloads thresholds when the config file changes.
//
// # Description
//
// The parent directory is watched rather than the file, because editors
// and config-map mounts replace files by rename. Events are debounced; a
// reload that fails to parse or validate is logged and the previous
// snapshot stays active.
//
// # Thread Safety
//
// Start and Stop may be called from any goroutine. Stop is idempotent.
type Watcher struct {
	path     string
	store    *ThresholdStore
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher prepares a watcher for path.
func NewWatcher(path string, store *ThresholdStore, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		path:     abs,
		store:    store,
		logger:   logger,
		watcher:  fw,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns once the watch is registered; events
// are processed in a goroutine until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	go w.loop(ctx)
	return nil
}

// Stop ends watching.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("Config reload rejected, keeping previous thresholds", "path", w.path, "error", err)
		return
	}
	w.store.Store(cfg.Thresholds)
	w.logger.Info("Thresholds reloaded", "path", w.path)
}
