// Package testutil provides shared test helpers for setting up profiles and catalogs.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/texture/internal/binder"
	"github.com/starford/texture/internal/catalog"
)

// FixedNow is the clock used by TestBinder.
func FixedNow() time.Time {
	return time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
}

// TestCatalog creates a temporary SQLite catalog that is automatically cleaned up.
func TestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "texture-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestBinder creates a temporary profile directory with a Binder over it.
func TestBinder(t *testing.T) (string, *binder.Binder) {
	t.Helper()
	root := filepath.Join(t.TempDir(), binder.ProfileDirName)
	if err := binder.Init(root, ""); err != nil {
		t.Fatal(err)
	}
	b, err := binder.New(root, binder.Options{Author: "Ada", Now: FixedNow})
	if err != nil {
		t.Fatal(err)
	}
	return root, b
}
