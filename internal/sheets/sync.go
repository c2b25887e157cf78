package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/export"
	"github.com/Veraticus/cashbook/internal/service"
)

// SyncTarget is the sync_state key of the Google Sheets target.
const SyncTarget = "sheets"

// Syncer pushes the whole ledger and remembers the spreadsheet it went to.
type Syncer struct {
	storage service.Storage
	pusher  Pusher
	logger  *slog.Logger
	now     func() time.Time
}

// NewSyncer creates a Syncer.
func NewSyncer(storage service.Storage, pusher Pusher, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		storage: storage,
		pusher:  pusher,
		logger:  logger,
		now:     time.Now,
	}
}

// Sync pushes every sheet and the dashboard. A configured spreadsheetID
// wins over the one remembered from the previous sync; with neither, a new
// spreadsheet is created.
func (s *Syncer) Sync(ctx context.Context, spreadsheetID string) (*service.SyncState, error) {
	if spreadsheetID == "" {
		previous, err := s.storage.GetSyncState(ctx, SyncTarget)
		switch {
		case err == nil:
			spreadsheetID = previous.ExternalID
		case !errors.Is(err, common.ErrNotFound):
			return nil, fmt.Errorf("failed to read sync state: %w", err)
		}
	}

	tables, err := export.Collect(ctx, s.storage)
	if err != nil {
		return nil, err
	}

	id, err := s.pusher.Push(ctx, spreadsheetID, tables)
	if err != nil {
		return nil, fmt.Errorf("push failed: %w", err)
	}

	state := &service.SyncState{
		Target:     SyncTarget,
		ExternalID: id,
		SyncedAt:   s.now().UTC(),
	}
	if err := s.storage.SaveSyncState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save sync state: %w", err)
	}

	s.logger.Info("Ledger synced", "spreadsheet_id", id, "tables", len(tables))
	return state, nil
}
