// Package testutil provides shared test helpers for setting up layout
// directories and catalog databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/matcluster/internal/catalog"
	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "matcluster-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLayouts creates a temporary layouts directory with a storage provider.
func TestLayouts(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// SeedMaterials inserts description/brand/sub-category triples.
func SeedMaterials(t *testing.T, db *catalog.DB, rows ...[3]string) {
	t.Helper()
	ms := make([]models.Material, len(rows))
	for i, r := range rows {
		ms[i] = models.Material{Description: r[0], Brand: r[1], SubCategory: r[2]}
	}
	if _, err := db.InsertMaterials(ms); err != nil {
		t.Fatal(err)
	}
}

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
