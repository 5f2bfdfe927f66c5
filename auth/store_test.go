package auth

import (
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "credentials.db"))
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	cred, err := store.Load()
	if err != nil {
		t.Fatalf("load on empty store failed: %v", err)
	}
	if cred != nil {
		t.Fatalf("expected empty store, got %+v", cred)
	}

	want := &Credential{AccessToken: "at-1", RefreshToken: "rt-1"}
	if err := store.Save(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got == nil || got.AccessToken != "at-1" || got.RefreshToken != "rt-1" {
		t.Fatalf("unexpected credential: %+v", got)
	}
}

func TestSQLiteStoreSaveReplacesWholePair(t *testing.T) {
	store := newTestSQLiteStore(t)

	if err := store.Save(&Credential{AccessToken: "at-1", RefreshToken: "rt-1"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(&Credential{AccessToken: "at-2", RefreshToken: "rt-2"}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.AccessToken != "at-2" || got.RefreshToken != "rt-2" {
		t.Fatalf("expected replaced pair, got %+v", got)
	}
}

func TestSQLiteStoreClear(t *testing.T) {
	store := newTestSQLiteStore(t)

	if err := store.Save(&Credential{AccessToken: "at", RefreshToken: "rt"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear should be idempotent: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected cleared store, got %+v", got)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Save(&Credential{AccessToken: "at", RefreshToken: "rt"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	first, _ := store.Load()
	first.AccessToken = "mutated"

	second, _ := store.Load()
	if second.AccessToken != "at" {
		t.Fatalf("store leaked internal state: %+v", second)
	}
}
