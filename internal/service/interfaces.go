// Package service defines the interfaces shared between application layers.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/cashbook/internal/model"
)

// DateRange is an inclusive span of YYYY-MM-DD days. Empty bounds are open.
type DateRange struct {
	From string
	To   string
}

// Queries is the data access surface available both on the storage and
// inside a storage transaction.
type Queries interface {
	// Row operations
	GetRows(ctx context.Context, sheet model.SheetKind) ([]model.Row, error)
	GetRowsByDate(ctx context.Context, dates DateRange) ([]model.Row, error)
	GetRow(ctx context.Context, id string) (*model.Row, error)
	InsertRow(ctx context.Context, row *model.Row) error
	SaveRow(ctx context.Context, row *model.Row) error
	DeleteRow(ctx context.Context, id string) error

	// Formula operations
	GetFormulas(ctx context.Context, sheet model.SheetKind) ([]model.Formula, error)
	GetAllFormulas(ctx context.Context) ([]model.Formula, error)
	SaveFormula(ctx context.Context, formula *model.Formula) error
	DeleteFormula(ctx context.Context, sheet model.SheetKind, field string) error

	// Daily summary operations
	GetSummary(ctx context.Context, date string) (*model.DailySummary, error)
	GetSummaries(ctx context.Context, dates DateRange) ([]model.DailySummary, error)
	SaveSummary(ctx context.Context, summary *model.DailySummary) error
	DeleteSummary(ctx context.Context, date string) error

	// Sync bookkeeping
	GetSyncState(ctx context.Context, target string) (*SyncState, error)
	SaveSyncState(ctx context.Context, state *SyncState) error

	// ResetLedger removes every row, formula override and summary.
	ResetLedger(ctx context.Context) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Queries

	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Queries

	Commit() error
	Rollback() error
}

// SyncState remembers where a sync target last pushed the ledger.
type SyncState struct {
	SyncedAt   time.Time
	Target     string
	ExternalID string
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
