// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probconfig

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/synthgen/pkg/logging"
)

// Watcher reloads a probability definition file when it changes on disk.
//
// # Description
//
// On every write or create event for the watched path, the file is reloaded
// and revalidated; a valid result is handed to the callback. The callback
// conventionally builds a fresh engine and swaps it in; live engines are
// never mutated while selections may be running. Invalid reloads are logged
// and the previous definitions stay in effect.
//
// # Thread Safety
//
// Start should be called once, typically in its own goroutine.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(*File)
	log      *logging.Logger
}

// NewWatcher creates a watcher for a definition file. The callback receives
// every successfully reloaded File. A nil logger falls back to the default.
func NewWatcher(path string, onReload func(*File), log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{path: path, watcher: fw, onReload: onReload, log: log}, nil
}

// Start blocks processing file events until the context is done.
//
// Example:
//
//	w, _ := probconfig.NewWatcher(path, func(f *probconfig.File) {
//	    engine := probability.NewEngine()
//	    f.Apply(engine)
//	    swap(engine)
//	}, logger)
//	go w.Start(ctx)
func (w *Watcher) Start(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			file, err := Load(w.path)
			if err != nil {
				w.log.Warn("definition reload failed, keeping previous definitions",
					"path", w.path,
					"error", err)
				continue
			}
			w.log.Info("definition file reloaded", "path", w.path)
			w.onReload(file)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("definition watcher error", "path", w.path, "error", err)
		}
	}
}

// Close stops the underlying filesystem watcher. Safe to call while Start is
// running; Start returns when the event channel closes.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
