// Package watcher provides file system watching for mathematical documents
// with automatic event debouncing.
//
// DocumentWatcher follows directories recursively and individual files by
// name, using fsnotify for event delivery. Raw events pass through a
// Coalescer so editor save bursts and git checkouts produce one batch per
// document instead of a stream of intermediate states. Under directory
// roots only document extensions (.tex, .md, .markdown, .txt by default)
// are reported; explicitly named files are always reported.
//
// Usage:
//
//	w, err := watcher.NewDocumentWatcher(watcher.Config{})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() {
//	    for batch := range w.Events() {
//	        for _, event := range batch {
//	            switch event.Change {
//	            case watcher.Created, watcher.Modified:
//	                // Re-analyze event.Path
//	            case watcher.Deleted:
//	                // Drop event.Path from the index
//	            }
//	        }
//	    }
//	}()
//
//	if err := w.Start(ctx, "thesis/", "notes/summary.md"); err != nil {
//	    return err
//	}
package watcher
