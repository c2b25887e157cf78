package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/jmoiron/sqlx"
)

type rowRecord struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	ID        string    `db:"id"`
	Sheet     string    `db:"sheet"`
	Date      string    `db:"date"`
	Cells     string    `db:"cells"`
	Position  int       `db:"position"`
}

func (r rowRecord) toModel() (model.Row, error) {
	row := model.Row{
		ID:        r.ID,
		Sheet:     model.SheetKind(r.Sheet),
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := decodeCells(r.Cells, &row.Cells); err != nil {
		return model.Row{}, fmt.Errorf("row %s: %w", r.ID, err)
	}
	return row, nil
}

func encodeCells(cells map[string]string) (string, error) {
	if len(cells) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("failed to encode cells: %w", err)
	}
	return string(data), nil
}

func decodeCells(raw string, cells *map[string]string) error {
	*cells = make(map[string]string)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), cells); err != nil {
		return fmt.Errorf("%w: bad cells payload: %v", common.ErrDatabaseCorrupted, err)
	}
	return nil
}

const rowColumns = `id, sheet, position, date, cells, created_at, updated_at`

func (q queries) selectRows(ctx context.Context, query string, args ...any) ([]model.Row, error) {
	var records []rowRecord
	if err := sqlx.SelectContext(ctx, q.q, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}

	rows := make([]model.Row, 0, len(records))
	for _, rec := range records {
		row, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetRows returns the rows of one sheet in display order.
func (q queries) GetRows(ctx context.Context, sheet model.SheetKind) ([]model.Row, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return q.selectRows(ctx,
		`SELECT `+rowColumns+` FROM ledger_rows WHERE sheet = ? ORDER BY position`,
		string(sheet))
}

// GetRowsByDate returns dated rows of every sheet within the range, ordered
// by date, sheet and position.
func (q queries) GetRowsByDate(ctx context.Context, dates service.DateRange) ([]model.Row, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(dates.From, dates.To); err != nil {
		return nil, err
	}

	conditions := []string{"date != ''"}
	var args []any
	if dates.From != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, dates.From)
	}
	if dates.To != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, dates.To)
	}

	return q.selectRows(ctx,
		`SELECT `+rowColumns+` FROM ledger_rows WHERE `+strings.Join(conditions, " AND ")+
			` ORDER BY date, sheet, position`,
		args...)
}

// GetRow returns a single row by ID.
func (q queries) GetRow(ctx context.Context, id string) (*model.Row, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var rec rowRecord
	err := sqlx.GetContext(ctx, q.q, &rec, `SELECT `+rowColumns+` FROM ledger_rows WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("row %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get row: %w", err)
	}

	row, err := rec.toModel()
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// InsertRow places a row at row.Position within its sheet, shifting later
// rows down. Positions past the end append. The stored position is written
// back to row.
func (q queries) InsertRow(ctx context.Context, row *model.Row) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRow(row); err != nil {
		return err
	}

	var count int
	if err := sqlx.GetContext(ctx, q.q, &count,
		`SELECT COUNT(*) FROM ledger_rows WHERE sheet = ?`, string(row.Sheet)); err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}
	if row.Position < 0 {
		row.Position = 0
	}
	if row.Position > count {
		row.Position = count
	}

	if _, err := q.q.ExecContext(ctx,
		`UPDATE ledger_rows SET position = position + 1 WHERE sheet = ? AND position >= ?`,
		string(row.Sheet), row.Position); err != nil {
		return fmt.Errorf("failed to shift rows: %w", err)
	}

	cells, err := encodeCells(row.Cells)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}

	_, err = q.q.ExecContext(ctx,
		`INSERT INTO ledger_rows (`+rowColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, string(row.Sheet), row.Position, row.Date(), cells, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("row %s: %w", row.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

// SaveRow replaces the cells of an existing row. Its position is unchanged.
func (q queries) SaveRow(ctx context.Context, row *model.Row) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRow(row); err != nil {
		return err
	}

	cells, err := encodeCells(row.Cells)
	if err != nil {
		return err
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}

	result, err := q.q.ExecContext(ctx,
		`UPDATE ledger_rows SET date = ?, cells = ?, updated_at = ? WHERE id = ?`,
		row.Date(), cells, row.UpdatedAt, row.ID)
	if err != nil {
		return fmt.Errorf("failed to save row: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("row %s: %w", row.ID, common.ErrNotFound)
	}
	return nil
}

// DeleteRow removes a row and closes the gap it leaves in its sheet.
func (q queries) DeleteRow(ctx context.Context, id string) error {
	row, err := q.GetRow(ctx, id)
	if err != nil {
		return err
	}

	if _, err := q.q.ExecContext(ctx, `DELETE FROM ledger_rows WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	if _, err := q.q.ExecContext(ctx,
		`UPDATE ledger_rows SET position = position - 1 WHERE sheet = ? AND position > ?`,
		string(row.Sheet), row.Position); err != nil {
		return fmt.Errorf("failed to compact rows: %w", err)
	}
	return nil
}

// ResetLedger removes every row, formula override and summary.
func (q queries) ResetLedger(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for _, table := range []string{"ledger_rows", "formulas", "daily_summaries"} {
		if _, err := q.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// InsertRow runs the shifting insert atomically.
func (s *SQLiteStorage) InsertRow(ctx context.Context, row *model.Row) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(q queries) error {
		return q.InsertRow(ctx, row)
	})
}

// DeleteRow runs the compacting delete atomically.
func (s *SQLiteStorage) DeleteRow(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(q queries) error {
		return q.DeleteRow(ctx, id)
	})
}

// ResetLedger clears every table atomically.
func (s *SQLiteStorage) ResetLedger(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(q queries) error {
		return q.ResetLedger(ctx)
	})
}
