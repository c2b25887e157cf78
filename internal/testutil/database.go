// Package testutil provides test utilities for the cashbook project.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/Veraticus/cashbook/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new migrated in-memory database that is closed
// when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Rows           []model.Row
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	db := &TestDB{Storage: store, t: t}
	for i := range opts.Rows {
		db.MustInsertRow(&opts.Rows[i])
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return db
}

// MustInsertRow stores a row or fails the test.
func (db *TestDB) MustInsertRow(row *model.Row) {
	db.t.Helper()
	if err := db.Storage.InsertRow(context.Background(), row); err != nil {
		db.t.Fatalf("failed to seed row %q: %v", row.ID, err)
	}
}

// MustGetRows returns a sheet's rows or fails the test.
func (db *TestDB) MustGetRows(sheet model.SheetKind) []model.Row {
	db.t.Helper()
	rows, err := db.Storage.GetRows(context.Background(), sheet)
	if err != nil {
		db.t.Fatalf("failed to load %s rows: %v", sheet, err)
	}
	return rows
}

// WithTransaction executes the given function within a database transaction.
// The transaction is automatically rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
