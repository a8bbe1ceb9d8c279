package bolt

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStoreFromFile(filepath.Join(t.TempDir(), "storage.db"))
	if err != nil {
		t.Fatalf("NewStoreFromFile failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("SetAndGet", func(t *testing.T) {
		if err := store.SetItem(ctx, "auth-storage", `{"state":{"isAuthenticated":true}}`); err != nil {
			t.Fatalf("SetItem failed: %v", err)
		}
		got, err := store.GetItem(ctx, "auth-storage")
		if err != nil {
			t.Fatalf("GetItem failed: %v", err)
		}
		if got != `{"state":{"isAuthenticated":true}}` {
			t.Errorf("GetItem returned %q", got)
		}
	})

	t.Run("GetAbsent", func(t *testing.T) {
		got, err := store.GetItem(ctx, "missing")
		if err != nil {
			t.Fatalf("GetItem failed: %v", err)
		}
		if got != "" {
			t.Errorf("absent key should return empty string, got %q", got)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := store.RemoveItem(ctx, "auth-storage"); err != nil {
			t.Fatalf("RemoveItem failed: %v", err)
		}
		got, _ := store.GetItem(ctx, "auth-storage")
		if got != "" {
			t.Errorf("removed key should return empty string, got %q", got)
		}
	})
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.db")

	store, err := NewStoreFromFile(path)
	if err != nil {
		t.Fatalf("NewStoreFromFile failed: %v", err)
	}
	if err := store.SetItem(ctx, "auth-storage", `{"state":{}}`); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewStoreFromFile(path)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetItem(ctx, "auth-storage")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got != `{"state":{}}` {
		t.Errorf("GetItem after reopen returned %q", got)
	}
}
