// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/daverunner/reflectd/internal/log"
)

// Watcher reloads the configuration when the config file changes and
// notifies subscribers. Reload failures keep the previous configuration.
type Watcher struct {
	loader *Loader
	path   string

	mu      sync.RWMutex
	current AppConfig
	onLoad  []func(AppConfig)
}

// NewWatcher creates a watcher seeded with the given configuration.
func NewWatcher(loader *Loader, path string, initial AppConfig) *Watcher {
	return &Watcher{loader: loader, path: path, current: initial}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() AppConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnReload registers a callback invoked after every successful reload.
func (w *Watcher) OnReload(fn func(AppConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onLoad = append(w.onLoad, fn)
}

// Reload re-resolves the configuration immediately.
func (w *Watcher) Reload() error {
	cfg, err := w.loader.Load()
	if err != nil {
		return fmt.Errorf("config reload: %w", err)
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(AppConfig){}, w.onLoad...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	logger := log.WithComponent("config")
	logger.Info().
		Str(log.FieldEvent, "config.reloaded").
		Msg("configuration reloaded")
	return nil
}

// Run watches the config file until ctx is cancelled. It returns
// immediately when no config file is configured.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors replace files on save, which drops
	// a direct file watch.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("config watcher add: %w", err)
	}

	logger := log.WithComponent("config")
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.Reload(); err != nil {
				logger.Error().Err(err).
					Str(log.FieldEvent, "config.reload_failed").
					Msg("keeping previous configuration")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
