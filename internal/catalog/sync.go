package catalog

import (
	"log/slog"
	"time"

	"github.com/starford/matcluster/internal/checksum"
	"github.com/starford/matcluster/internal/parser"
	"github.com/starford/matcluster/internal/storage"
)

// SyncLayouts brings the layout index up to date with the layouts directory:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func SyncLayouts(db Catalog, store storage.Provider, logger *slog.Logger) error {
	files, err := store.List()
	if err != nil {
		return err
	}
	checksums, err := db.LayoutChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Name] = struct{}{}
		if checksums[f.Name] == f.Checksum {
			continue
		}
		data, err := store.Read(f.Name)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("file", f.Name), slog.String("error", err.Error()))
			continue
		}
		if err := IndexLayout(db, f.Name, data, f.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("file", f.Name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("file", f.Name))
		}
	}

	for name := range checksums {
		if _, ok := disk[name]; ok {
			continue
		}
		if err := db.DeleteLayout(name); err != nil {
			logger.Warn("sync: delete failed", slog.String("file", name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("file", name))
		}
	}
	return nil
}

// IndexLayout parses a layout document and records it under its category.
func IndexLayout(db Catalog, name string, data []byte, updatedAt time.Time) error {
	l, err := parser.ParseLayout(data)
	if err != nil {
		return err
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return db.UpsertLayout(LayoutRow{
		File:      name,
		Category:  l.Category,
		Checksum:  checksum.Sum(data),
		UpdatedAt: updatedAt,
	})
}
