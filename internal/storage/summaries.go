package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/jmoiron/sqlx"
)

type summaryRecord struct {
	UpdatedAt time.Time `db:"updated_at"`
	Date      string    `db:"date"`
	Cells     string    `db:"cells"`
}

func (r summaryRecord) toModel() (model.DailySummary, error) {
	summary := model.DailySummary{Date: r.Date, UpdatedAt: r.UpdatedAt}
	if err := decodeCells(r.Cells, &summary.Cells); err != nil {
		return model.DailySummary{}, fmt.Errorf("summary %s: %w", r.Date, err)
	}
	return summary, nil
}

// GetSummary returns the dashboard row of one day.
func (q queries) GetSummary(ctx context.Context, date string) (*model.DailySummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(date, "date"); err != nil {
		return nil, err
	}

	var rec summaryRecord
	err := sqlx.GetContext(ctx, q.q, &rec,
		`SELECT date, cells, updated_at FROM daily_summaries WHERE date = ?`, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary %s: %w", date, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	summary, err := rec.toModel()
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetSummaries returns dashboard rows within the range, oldest first.
func (q queries) GetSummaries(ctx context.Context, dates service.DateRange) ([]model.DailySummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(dates.From, dates.To); err != nil {
		return nil, err
	}

	query := `SELECT date, cells, updated_at FROM daily_summaries`
	var conditions []string
	var args []any
	if dates.From != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, dates.From)
	}
	if dates.To != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, dates.To)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date"

	var records []summaryRecord
	if err := sqlx.SelectContext(ctx, q.q, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}

	summaries := make([]model.DailySummary, 0, len(records))
	for _, rec := range records {
		summary, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// SaveSummary creates or replaces the dashboard row of a day.
func (q queries) SaveSummary(ctx context.Context, summary *model.DailySummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if summary == nil {
		return fmt.Errorf("%w: summary", ErrNilParameter)
	}
	if err := validateString(summary.Date, "date"); err != nil {
		return err
	}
	if err := validateDate(summary.Date); err != nil {
		return err
	}

	cells, err := encodeCells(summary.Cells)
	if err != nil {
		return err
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = time.Now().UTC()
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO daily_summaries (date, cells, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			cells = excluded.cells,
			updated_at = excluded.updated_at`,
		summary.Date, cells, summary.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// DeleteSummary removes the dashboard row of a day. Missing rows are ignored.
func (q queries) DeleteSummary(ctx context.Context, date string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := q.q.ExecContext(ctx, `DELETE FROM daily_summaries WHERE date = ?`, date); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	return nil
}
