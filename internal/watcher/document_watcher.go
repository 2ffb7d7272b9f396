package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// skipDirNames are directory names never worth watching. The list mirrors
// the extractor's default excludes.
var skipDirNames = map[string]struct{}{
	".git":         {},
	".mathdex":     {},
	"node_modules": {},
	"build":        {},
	"dist":         {},
}

func skipDir(name string) bool {
	if _, ok := skipDirNames[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "_minted")
}

// DocumentWatcher watches document trees and files using fsnotify.
// Directories are watched recursively with an extension filter; files
// named explicitly are watched regardless of extension.
type DocumentWatcher struct {
	fsWatcher    *fsnotify.Watcher
	coalescer    *Coalescer
	events       chan []Event
	errors       chan error
	stopCh       chan struct{}
	roots        []string
	watchedFiles map[string]struct{}
	watchedDirs  map[string]struct{}
	extensions   map[string]struct{}
	mu           sync.RWMutex
	stopped      bool
	dropped      atomic.Uint64
}

// NewDocumentWatcher creates a new document watcher with the given
// configuration.
func NewDocumentWatcher(cfg Config) (*DocumentWatcher, error) {
	cfg = cfg.withDefaults()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}

	return &DocumentWatcher{
		fsWatcher:    fw,
		coalescer:    NewCoalescer(cfg.Debounce),
		events:       make(chan []Event, cfg.BufferSize),
		errors:       make(chan error, 10),
		stopCh:       make(chan struct{}),
		watchedFiles: make(map[string]struct{}),
		watchedDirs:  make(map[string]struct{}),
		extensions:   exts,
	}, nil
}

// Start begins watching the given paths and blocks until the watcher is
// stopped or the context is cancelled. With no paths, the current
// directory is watched.
func (w *DocumentWatcher) Start(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve watch path %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("stat watch path %s: %w", p, err)
		}

		if info.IsDir() {
			w.mu.Lock()
			w.roots = append(w.roots, abs)
			w.mu.Unlock()
			if err := w.addRecursive(abs); err != nil {
				return err
			}
			continue
		}

		// Watching a single file means watching its directory, with the
		// file itself on the allowlist.
		w.mu.Lock()
		w.watchedFiles[abs] = struct{}{}
		w.mu.Unlock()
		dir := filepath.Dir(abs)
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go w.relayBatches(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.reportError(err)
		}
	}
}

// changeFor maps an fsnotify event to a catalog change. Chmod and other
// metadata-only events report false.
func changeFor(ev fsnotify.Event) (Change, bool) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		return Created, true
	case ev.Op.Has(fsnotify.Write):
		return Modified, true
	case ev.Op.Has(fsnotify.Remove):
		return Deleted, true
	case ev.Op.Has(fsnotify.Rename):
		return Renamed, true
	default:
		return 0, false
	}
}

// handleEvent converts and filters fsnotify events.
func (w *DocumentWatcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name

	ch, ok := changeFor(ev)
	if !ok {
		return
	}

	var isDir bool
	if fi, err := os.Stat(path); err == nil {
		isDir = fi.IsDir()
	} else if ch == Deleted || ch == Renamed {
		// The path is gone by the time we stat it. Directories we added
		// watches for are still recognizable.
		isDir = w.isWatchedDir(path)
	}

	if isDir {
		w.handleDirEvent(path, ch)
		return
	}

	if !w.shouldEmit(path) {
		return
	}

	w.coalescer.Add(Event{Path: path, Change: ch})
}

// handleDirEvent attaches watches to new directories and reports removed
// ones so consumers can prune documents under them.
func (w *DocumentWatcher) handleDirEvent(path string, ch Change) {
	switch ch {
	case Created:
		if skipDir(filepath.Base(path)) || !w.underRoot(path) {
			return
		}
		// Without its own watch, changes inside the new directory are
		// invisible. Walk it in case nested directories arrived before
		// the watch attached.
		if err := w.addRecursive(path); err != nil {
			w.reportError(err)
		}
	case Deleted, Renamed:
		w.forgetDirTree(path)
		w.coalescer.Add(Event{Path: path, Change: ch, IsDir: true})
	}
}

// relayBatches forwards coalesced batches to the output channel.
func (w *DocumentWatcher) relayBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.coalescer.Output():
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			w.emitBatch(batch)
		}
	}
}

// addRecursive walks root and puts a watch on every directory under it.
func (w *DocumentWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip entries we cannot access
		}
		if !de.IsDir() {
			return nil
		}
		if path != root && skipDir(de.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.trackDir(path)
		return nil
	})
}

// shouldEmit returns true if events for the path should reach consumers.
func (w *DocumentWatcher) shouldEmit(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, ok := w.watchedFiles[path]; ok {
		return true
	}
	if len(w.extensions) > 0 {
		if _, ok := w.extensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return false
		}
	}
	return w.underRootLocked(path)
}

// underRoot returns true if the path is below one of the watched roots.
func (w *DocumentWatcher) underRoot(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.underRootLocked(path)
}

func (w *DocumentWatcher) underRootLocked(path string) bool {
	for _, root := range w.roots {
		if strings.HasPrefix(path, root+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

func (w *DocumentWatcher) trackDir(path string) {
	w.mu.Lock()
	w.watchedDirs[path] = struct{}{}
	w.mu.Unlock()
}

func (w *DocumentWatcher) isWatchedDir(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.watchedDirs[path]
	return ok
}

// forgetDirTree drops a directory and everything under it from the watch
// bookkeeping. fsnotify removes the underlying watches itself when the
// directories disappear.
func (w *DocumentWatcher) forgetDirTree(path string) {
	prefix := path + string(os.PathSeparator)
	w.mu.Lock()
	delete(w.watchedDirs, path)
	for dir := range w.watchedDirs {
		if strings.HasPrefix(dir, prefix) {
			delete(w.watchedDirs, dir)
		}
	}
	w.mu.Unlock()
}

// emitBatch sends a batch to the output channel. The read lock is held
// across the send so Stop cannot close the channel mid-send.
func (w *DocumentWatcher) emitBatch(batch []Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.events <- batch:
	default:
		count := w.dropped.Add(1)
		slog.Warn("event channel full, batch dropped",
			slog.Int("events", len(batch)),
			slog.Uint64("dropped_total", count),
		)
	}
}

// Dropped reports how many batches were lost to a full event channel.
func (w *DocumentWatcher) Dropped() uint64 {
	return w.dropped.Load()
}

// reportError hands err to consumers without ever blocking.
func (w *DocumentWatcher) reportError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.errors <- err:
	default:
	}
}

// Stop halts watching and closes the output channels. Safe to call twice.
func (w *DocumentWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}

	w.stopped = true
	close(w.stopCh)

	w.coalescer.Stop()
	_ = w.fsWatcher.Close()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel carrying coalesced event batches.
func (w *DocumentWatcher) Events() <-chan []Event {
	return w.events
}

// Errors returns the channel carrying non-fatal watch errors.
func (w *DocumentWatcher) Errors() <-chan error {
	return w.errors
}

// Healthy reports whether the watcher is still running.
func (w *DocumentWatcher) Healthy() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return !w.stopped
}
