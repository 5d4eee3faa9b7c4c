// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package preset serves ready-made patch graphs: a fixed set of built-in
// examples plus an optional directory of *.json snapshots that is
// hot-reloaded while the server runs. A disk preset with the same name as
// a built-in shadows it, so users can tweak the examples without touching
// the binary.
package preset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// ErrPresetNotFound is returned when no preset carries the requested name.
var ErrPresetNotFound = errors.New("preset not found")

// DefaultDebounce is how long the watcher waits for the directory to
// settle before rescanning.
const DefaultDebounce = 100 * time.Millisecond

// Options configures a Catalog.
type Options struct {
	// Dir is an optional directory of *.json snapshot files.
	// Empty disables disk presets entirely.
	Dir string

	// Debounce overrides DefaultDebounce for the watcher.
	Debounce time.Duration

	// OnChange is called with the full name list after each
	// watcher-triggered rescan.
	OnChange func(names []string)

	Log *logging.Logger
}

// Catalog resolves preset names to graph snapshots.
type Catalog struct {
	dir      string
	debounce time.Duration
	onChange func([]string)
	log      *logging.Logger

	builtins     map[string]*snapshot.Graph
	builtinOrder []string

	mu       sync.RWMutex
	disk     map[string]*snapshot.Graph
	watching bool
}

// New builds a catalog with the built-in presets registered and, when a
// directory is configured, an initial scan of its contents. A missing
// directory is not an error; it may appear later and the watcher cannot
// be expected to predate it.
func New(opts Options) *Catalog {
	log := opts.Log
	if log == nil {
		log = logging.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	c := &Catalog{
		dir:      opts.Dir,
		debounce: debounce,
		onChange: opts.OnChange,
		log:      log,
		builtins: make(map[string]*snapshot.Graph),
		disk:     make(map[string]*snapshot.Graph),
	}
	for _, b := range builtinPresets() {
		c.builtins[b.name] = b.graph
		c.builtinOrder = append(c.builtinOrder, b.name)
	}
	if c.dir != "" {
		c.Rescan()
	}
	return c
}

// Names lists every available preset: built-ins in their fixed order,
// then disk presets alphabetically. Shadowing names appear once.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.builtinOrder)+len(c.disk))
	names = append(names, c.builtinOrder...)

	extra := make([]string, 0, len(c.disk))
	for name := range c.disk {
		if _, shadows := c.builtins[name]; !shadows {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Get returns a deep copy of the named preset, disk presets taking
// precedence over built-ins. Callers own the returned graph.
func (c *Catalog) Get(name string) (*snapshot.Graph, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if g, ok := c.disk[name]; ok {
		return g.Clone(), nil
	}
	if g, ok := c.builtins[name]; ok {
		return g.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
}

// Rescan reloads every *.json file in the preset directory, replacing the
// previous disk set. Files that fail to decode are skipped with a warning
// so one broken preset cannot hide the rest.
func (c *Catalog) Rescan() []string {
	loaded := make(map[string]*snapshot.Graph)

	if c.dir != "" {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				c.log.Warn("preset directory unreadable", "dir", c.dir, "error", err)
			}
		} else {
			for _, entry := range entries {
				if entry.IsDir() || !isPresetFile(entry.Name()) {
					continue
				}
				path := filepath.Join(c.dir, entry.Name())
				data, err := os.ReadFile(path)
				if err != nil {
					c.log.Warn("preset unreadable", "path", path, "error", err)
					continue
				}
				g, err := snapshot.Decode(data)
				if err != nil {
					c.log.Warn("preset rejected", "path", path, "error", err)
					continue
				}
				name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
				loaded[name] = g
			}
		}
	}

	c.mu.Lock()
	c.disk = loaded
	c.mu.Unlock()

	return c.Names()
}

// Watch hot-reloads the preset directory until the context is cancelled.
// Returns immediately when no directory is configured. Repeated calls
// while a watcher is already running are no-ops.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	if c.watching {
		c.mu.Unlock()
		return nil
	}
	c.watching = true
	c.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		c.setWatching(false)
		return fmt.Errorf("create preset watcher: %w", err)
	}
	if err := w.Add(c.dir); err != nil {
		w.Close()
		c.setWatching(false)
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}

	go c.watchLoop(ctx, w)
	return nil
}

func (c *Catalog) setWatching(v bool) {
	c.mu.Lock()
	c.watching = v
	c.mu.Unlock()
}

// watchLoop batches filesystem events with a debounce timer and rescans
// once the directory settles.
func (c *Catalog) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	defer c.setWatching(false)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !isPresetFile(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(c.debounce)
				timerC = timer.C
			} else {
				timer.Reset(c.debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.log.Warn("preset watcher error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			names := c.Rescan()
			c.log.Debug("presets reloaded", "count", len(names))
			if c.onChange != nil {
				c.onChange(names)
			}
		}
	}
}

func isPresetFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
