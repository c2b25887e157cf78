package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/jmoiron/sqlx"
)

type syncRecord struct {
	SyncedAt   time.Time `db:"synced_at"`
	Target     string    `db:"target"`
	ExternalID string    `db:"external_id"`
}

// GetSyncState returns where a target last pushed to.
func (q queries) GetSyncState(ctx context.Context, target string) (*service.SyncState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(target, "target"); err != nil {
		return nil, err
	}

	var rec syncRecord
	err := sqlx.GetContext(ctx, q.q, &rec,
		`SELECT target, external_id, synced_at FROM sync_state WHERE target = ?`, target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync state %s: %w", target, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return &service.SyncState{
		Target:     rec.Target,
		ExternalID: rec.ExternalID,
		SyncedAt:   rec.SyncedAt,
	}, nil
}

// SaveSyncState records a completed push.
func (q queries) SaveSyncState(ctx context.Context, state *service.SyncState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("%w: sync state", ErrNilParameter)
	}
	if err := validateString(state.Target, "target"); err != nil {
		return err
	}
	if state.SyncedAt.IsZero() {
		state.SyncedAt = time.Now().UTC()
	}

	_, err := q.q.ExecContext(ctx, `
		INSERT INTO sync_state (target, external_id, synced_at)
		VALUES (?, ?, ?)
		ON CONFLICT(target) DO UPDATE SET
			external_id = excluded.external_id,
			synced_at = excluded.synced_at`,
		state.Target, state.ExternalID, state.SyncedAt)
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}
