package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/parser"
	"github.com/starford/matcluster/internal/storage"
	"github.com/starford/matcluster/internal/tree"
)

func watcherTestEnv(t *testing.T) (string, *storage.FS, *DB) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store, testDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func layoutDoc(t *testing.T, category string) []byte {
	t.Helper()
	data, err := parser.EncodeLayout(parser.Layout{
		Category: category,
		SavedAt:  time.Now().UTC(),
		Root:     &tree.Node{ID: "root", Name: "root", Type: models.TypeRoot, Identifier: "root", Children: []*tree.Node{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func indexed(db *DB, category string) bool {
	_, err := db.LayoutByCategory(category)
	return err == nil
}

func TestSyncLayouts(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	_ = store.Write("acids.json", layoutDoc(t, "Acids"))
	_ = os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644)
	_ = db.UpsertLayout(LayoutRow{File: "gone.json", Category: "Gone", UpdatedAt: time.Now()})

	if err := SyncLayouts(db, store, quietLogger()); err != nil {
		t.Fatalf("SyncLayouts: %v", err)
	}
	if !indexed(db, "Acids") {
		t.Error("acids layout not indexed")
	}
	if indexed(db, "Gone") {
		t.Error("stale entry not removed")
	}
	cs, _ := db.LayoutChecksums()
	if _, ok := cs["broken.json"]; ok {
		t.Error("unparsable layout indexed")
	}
}

func TestWatcherIndexesNewLayout(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go WatchLayouts(ctx, db, store, dir, quietLogger(), func(kind, file string) {
		mu.Lock()
		events = append(events, kind+":"+file)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	if err := store.Write("bases.json", layoutDoc(t, "Bases")); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return indexed(db, "Bases") },
		"new layout not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, "expected a watcher callback")
}

func TestWatcherDeleteRemovesFromIndex(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	_ = store.Write("del.json", layoutDoc(t, "Del"))
	_ = SyncLayouts(db, store, quietLogger())
	if !indexed(db, "Del") {
		t.Fatal("precondition: layout should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchLayouts(ctx, db, store, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.json"))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return !indexed(db, "Del") },
		"deleted layout still in index")
}

func TestWatcherRenameReconciles(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	_ = store.Write("old.json", layoutDoc(t, "Moved"))
	_ = SyncLayouts(db, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchLayouts(ctx, db, store, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.json"), filepath.Join(dir, "renamed.json"))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		row, err := db.LayoutByCategory("Moved")
		return err == nil && row.File == "renamed.json"
	}, "rename reconciliation failed")
}

func TestWatcherIgnoresAlreadyIndexedContent(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go WatchLayouts(ctx, db, store, dir, quietLogger(), func(kind, file string) {
		mu.Lock()
		events = append(events, kind+":"+file)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	known := layoutDoc(t, "Known")
	if err := IndexLayout(db, "known.json", known, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("known.json", known); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	if len(events) != 0 {
		t.Errorf("events for indexed content = %v", events)
	}
	mu.Unlock()

	if err := store.Write("known.json", layoutDoc(t, "Renamed")); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return indexed(db, "Renamed") },
		"changed content not indexed")
}
