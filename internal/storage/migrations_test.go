package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrate_SetsSchemaVersion(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	var version int
	if err := store.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, ExpectedSchemaVersion)
	}

	for _, table := range []string{"ledger_rows", "formulas", "daily_summaries", "sync_state"} {
		var count int
		err := store.db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to inspect %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		store, err := NewSQLiteStorage(dbPath)
		if err != nil {
			t.Fatalf("Failed to open storage: %v", err)
		}
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("Migrate run %d failed: %v", i+1, err)
		}
		_ = store.Close()
	}
}

func TestMigrate_NilContext(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	//nolint:staticcheck // testing nil context handling
	if err := store.Migrate(nil); err != ErrNilContext {
		t.Errorf("Migrate(nil) error = %v, want %v", err, ErrNilContext)
	}
}

func TestSchemaVersion(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("fresh database version = %d, want 0", version)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	version, err = store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("version = %d, want %d", version, ExpectedSchemaVersion)
	}
}
