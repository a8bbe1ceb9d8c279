package memory

import (
	"context"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := store.SetItem(ctx, "auth-storage", `{"state":{}}`); err != nil {
			t.Fatalf("SetItem failed: %v", err)
		}
		got, err := store.GetItem(ctx, "auth-storage")
		if err != nil {
			t.Fatalf("GetItem failed: %v", err)
		}
		if got != `{"state":{}}` {
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

	t.Run("RemoveAbsent", func(t *testing.T) {
		if err := store.RemoveItem(ctx, "missing"); err != nil {
			t.Errorf("removing an absent key should not fail: %v", err)
		}
	})
}
