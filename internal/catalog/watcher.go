package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/matcluster/internal/checksum"
	"github.com/starford/matcluster/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind, file string)

// WatchLayouts starts an fsnotify watcher on the layouts directory and keeps
// the layout index current until ctx is cancelled. It calls cb (if non-nil)
// after each successful index change, so edits made by hand or by another
// backend sharing the directory reach connected editors. Writes whose
// content the index already holds are ignored.
//
// Renames trigger a debounced reconciliation pass, since fsnotify reports
// only the old name.
func WatchLayouts(ctx context.Context, db Catalog, store storage.Provider, dir string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", dir))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !storage.IsLayout(name) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, err := store.Read(name)
				if err != nil {
					logger.Warn("watcher: read failed", slog.String("file", name), slog.String("error", err.Error()))
					continue
				}
				if known, err := db.LayoutChecksums(); err == nil && known[name] == checksum.Sum(data) {
					// Already indexed by the writer.
					logger.Debug("watcher: unchanged", slog.String("file", name))
					continue
				}
				if err := IndexLayout(db, name, data, time.Now()); err != nil {
					logger.Warn("watcher: index failed", slog.String("file", name), slog.String("error", err.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("file", name), slog.String("op", kind))
				if cb != nil {
					cb(kind, name)
				}

			case ev.Op&fsnotify.Remove != 0:
				if err := db.DeleteLayout(name); err != nil {
					logger.Warn("watcher: delete failed", slog.String("file", name), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("file", name))
				if cb != nil {
					cb("deleted", name)
				}

			case ev.Op&fsnotify.Rename != 0:
				if err := db.DeleteLayout(name); err == nil && cb != nil {
					cb("deleted", name)
				}
				scheduleReconcile()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

// reconcile removes index entries whose files are gone and indexes files the
// index has not seen with their current content.
func reconcile(db Catalog, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.LayoutChecksums()
	if err != nil {
		logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	files, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(files))
	for _, f := range files {
		disk[f.Name] = f.Checksum
	}
	for name := range checksums {
		if _, ok := disk[name]; ok {
			continue
		}
		if err := db.DeleteLayout(name); err == nil {
			logger.Debug("reconcile: removed stale", slog.String("file", name))
			if cb != nil {
				cb("deleted", name)
			}
		}
	}
	for name, cs := range disk {
		if checksums[name] == cs {
			continue
		}
		data, err := store.Read(name)
		if err != nil {
			continue
		}
		if err := IndexLayout(db, name, data, time.Now()); err == nil {
			logger.Debug("reconcile: indexed", slog.String("file", name))
			if cb != nil {
				cb("created", name)
			}
		}
	}
}
