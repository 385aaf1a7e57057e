package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/yourusername/pdv-manager/internal/database"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewSQLiteStore(db.DB)
}

func TestSQLiteStoreGetSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "users")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("expected users slot to be absent")
	}

	if err := store.Set(ctx, "users", []byte(`[{"id":1}]`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, ok, err := store.Get(ctx, "users")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected users slot to exist")
	}
	if string(value) != `[{"id":1}]` {
		t.Fatalf("unexpected value: %s", value)
	}

	// Overwrite
	if err := store.Set(ctx, "users", []byte(`[]`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, _, _ = store.Get(ctx, "users")
	if string(value) != `[]` {
		t.Fatalf("expected empty array, got %s", value)
	}
}

func TestSQLiteStoreRejectsInvalidJSON(t *testing.T) {
	store := newTestStore(t)

	if err := store.Set(context.Background(), "theme", []byte(`{broken`)); err == nil {
		t.Fatalf("expected error for invalid JSON value")
	}
}
