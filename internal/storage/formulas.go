package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/jmoiron/sqlx"
)

type formulaRecord struct {
	UpdatedAt  time.Time `db:"updated_at"`
	Sheet      string    `db:"sheet"`
	Field      string    `db:"field"`
	Expression string    `db:"expression"`
}

func (r formulaRecord) toModel() model.Formula {
	return model.Formula{
		Sheet:      model.SheetKind(r.Sheet),
		Field:      r.Field,
		Expression: r.Expression,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (q queries) selectFormulas(ctx context.Context, query string, args ...any) ([]model.Formula, error) {
	var records []formulaRecord
	if err := sqlx.SelectContext(ctx, q.q, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query formulas: %w", err)
	}
	formulas := make([]model.Formula, 0, len(records))
	for _, rec := range records {
		formulas = append(formulas, rec.toModel())
	}
	return formulas, nil
}

// GetFormulas returns the stored overrides for one sheet.
func (q queries) GetFormulas(ctx context.Context, sheet model.SheetKind) ([]model.Formula, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return q.selectFormulas(ctx,
		`SELECT sheet, field, expression, updated_at FROM formulas WHERE sheet = ? ORDER BY field`,
		string(sheet))
}

// GetAllFormulas returns every stored override.
func (q queries) GetAllFormulas(ctx context.Context) ([]model.Formula, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return q.selectFormulas(ctx,
		`SELECT sheet, field, expression, updated_at FROM formulas ORDER BY sheet, field`)
}

// SaveFormula creates or replaces an override.
func (q queries) SaveFormula(ctx context.Context, formula *model.Formula) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFormula(formula); err != nil {
		return err
	}
	if formula.UpdatedAt.IsZero() {
		formula.UpdatedAt = time.Now().UTC()
	}

	_, err := q.q.ExecContext(ctx, `
		INSERT INTO formulas (sheet, field, expression, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sheet, field) DO UPDATE SET
			expression = excluded.expression,
			updated_at = excluded.updated_at`,
		string(formula.Sheet), formula.Field, formula.Expression, formula.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save formula: %w", err)
	}
	return nil
}

// DeleteFormula removes an override so the column's default applies again.
func (q queries) DeleteFormula(ctx context.Context, sheet model.SheetKind, field string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(field, "field"); err != nil {
		return err
	}

	result, err := q.q.ExecContext(ctx,
		`DELETE FROM formulas WHERE sheet = ? AND field = ?`, string(sheet), field)
	if err != nil {
		return fmt.Errorf("failed to delete formula: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("formula %s.%s: %w", sheet, field, common.ErrNotFound)
	}
	return nil
}
