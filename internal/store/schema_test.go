package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsure_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	if err := s2.Ensure(context.Background()); err != nil {
		t.Fatalf("re-ensure failed: %v", err)
	}

	info, err := s2.Inspect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != SchemaVersion {
		t.Fatalf("version %d, want %d", info.Version, SchemaVersion)
	}
	if len(info.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", info.MissingTables)
	}
}

func TestEnsure_RejectsNewerVersion(t *testing.T) {
	s := newTestStore(t)

	_, err := s.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (99, '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Ensure(context.Background())
	if err == nil {
		t.Fatal("expected future schema version to be rejected")
	}
	if !strings.Contains(err.Error(), "exceeds supported version") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInspect_DoesNotMutate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before, err := s.schemaVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Inspect(ctx); err != nil {
		t.Fatal(err)
	}
	after, err := s.schemaVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Fatalf("inspect changed version %d -> %d", before, after)
	}
}
