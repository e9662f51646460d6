// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/watcher.go
// Summary: fsnotify-based live reload of the config file.
// Usage: Parses on change and feeds ConfigReload events into the engine.

package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stilch/stilch/core"
)

// debounce coalesces editor write bursts into one reload.
const debounce = 100 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching path. Every successful parse submits a
// ConfigReload event; parse failures are logged and the engine keeps
// its previous snapshot.
func Watch(path string, submit func(core.Event)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace the file, which drops a
	// watch held on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{path: path, watcher: fw, done: make(chan struct{})}
	go w.run(submit)
	return w, nil
}

func (w *Watcher) run(submit func(core.Event)) {
	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			snap, err := Load(w.path)
			if err != nil {
				log.Printf("Config: reload of %s failed, keeping previous: %v", w.path, err)
				continue
			}
			log.Printf("Config: reloaded %s", w.path)
			submit(core.ConfigReload{Snapshot: snap})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config: watch error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
