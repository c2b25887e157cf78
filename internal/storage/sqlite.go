package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/cashbook/internal/service"
	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// queries implements service.Queries against either the database handle or
// an open transaction.
type queries struct {
	q sqlx.ExtContext
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	queries
	db     *sqlx.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and an in-memory
	// database only lives as long as its single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		queries: queries{q: db},
		db:      db,
		dbPath:  dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction. While it is open, all access
// must go through the returned transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		queries: queries{q: tx},
		tx:      tx,
	}, nil
}

// inTx runs fn inside a transaction, committing on success.
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(queries{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// sqliteTransaction wraps sqlx.Tx to implement service.Transaction.
type sqliteTransaction struct {
	queries
	tx *sqlx.Tx
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}
