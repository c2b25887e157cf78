package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/formula"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/shopspring/decimal"
)

// effectiveExpressions overlays stored overrides on a sheet's defaults.
func effectiveExpressions(ctx context.Context, q service.Queries, sheet model.Sheet) (map[string]string, error) {
	expressions := model.DefaultFormulas(sheet.Kind)

	stored, err := q.GetFormulas(ctx, sheet.Kind)
	if err != nil {
		return nil, err
	}
	for _, f := range stored {
		col, ok := sheet.Column(f.Field)
		if !ok || !col.Computed {
			continue
		}
		expressions[f.Field] = f.Expression
	}
	return expressions, nil
}

func (s *Service) formulaSet(ctx context.Context, q service.Queries, sheet model.Sheet) (*formula.Set, error) {
	expressions, err := effectiveExpressions(ctx, q, sheet)
	if err != nil {
		return nil, err
	}
	set, err := s.engine.NewSet(expressions, sheet.Scales())
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet.Kind, err)
	}
	return set, nil
}

// formulaInputs binds a row's cells as formula variables. Blank or
// unreadable numbers are left unbound; names columns always bind a count.
func formulaInputs(sheet model.Sheet, cells map[string]string) map[string]decimal.Decimal {
	inputs := make(map[string]decimal.Decimal)
	for _, col := range sheet.Columns {
		switch col.Kind {
		case model.ColumnNumber:
			raw := cells[col.Key]
			if raw == "" {
				continue
			}
			d, err := decimal.NewFromString(raw)
			if err != nil {
				continue
			}
			inputs[col.Key] = d
		case model.ColumnNames:
			count := len(model.ParseNames(cells[col.Key]))
			inputs[col.Key+model.CountSuffix] = decimal.NewFromInt(int64(count))
		}
	}
	return inputs
}

// applyFormulas rewrites the computed cells of row. Targets that cannot be
// computed are cleared; their evaluation errors are returned by field.
func applyFormulas(sheet model.Sheet, set *formula.Set, row *model.Row) (map[string]error, error) {
	result, err := set.Resolve(formulaInputs(sheet, row.Cells))
	if err != nil {
		return nil, err
	}
	for _, target := range set.Targets() {
		value := result.Values[target]
		if !value.Valid {
			row.Set(target, "")
			continue
		}
		row.Set(target, value.Decimal.String())
	}
	if len(result.Errors) == 0 {
		return nil, nil
	}
	return result.Errors, nil
}

// Formulas returns the effective formula of every computed column of a
// sheet, in column order.
func (s *Service) Formulas(ctx context.Context, kind model.SheetKind) ([]model.Formula, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return nil, err
	}

	stored, err := s.storage.GetFormulas(ctx, sheet.Kind)
	if err != nil {
		return nil, err
	}
	byField := make(map[string]model.Formula, len(stored))
	for _, f := range stored {
		byField[f.Field] = f
	}

	defaults := model.DefaultFormulas(sheet.Kind)
	var formulas []model.Formula
	for _, field := range sheet.Computed() {
		if f, ok := byField[field]; ok {
			formulas = append(formulas, f)
			continue
		}
		formulas = append(formulas, model.Formula{
			Sheet:      sheet.Kind,
			Field:      field,
			Expression: defaults[field],
			IsDefault:  true,
		})
	}
	return formulas, nil
}

// SetFormula replaces the expression of a computed column and recalculates
// the sheet. The expression must compile, may only reference the sheet's
// variables, and must not introduce a cycle.
func (s *Service) SetFormula(ctx context.Context, kind model.SheetKind, field, expression string) (int, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return 0, err
	}
	if err := checkComputed(sheet, field); err != nil {
		return 0, err
	}

	var changed int
	err = s.withTx(ctx, func(tx service.Transaction) error {
		expressions, err := effectiveExpressions(ctx, tx, sheet)
		if err != nil {
			return err
		}
		expressions[field] = expression

		set, err := s.engine.NewSet(expressions, sheet.Scales())
		if err != nil {
			return err
		}
		if err := set.Validate(sheet.Variables()); err != nil {
			return err
		}

		f, _ := set.Formula(field)
		if err := tx.SaveFormula(ctx, &model.Formula{
			Sheet:      sheet.Kind,
			Field:      field,
			Expression: f.Source,
			UpdatedAt:  s.now().UTC(),
		}); err != nil {
			return err
		}

		changed, err = s.recalculateAny(ctx, tx, sheet)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Formula updated", "sheet", sheet.Kind, "field", field, "expression", expression)
	return changed, nil
}

// ResetFormula restores a computed column's default expression.
func (s *Service) ResetFormula(ctx context.Context, kind model.SheetKind, field string) (int, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return 0, err
	}
	if err := checkComputed(sheet, field); err != nil {
		return 0, err
	}

	var changed int
	err = s.withTx(ctx, func(tx service.Transaction) error {
		if err := tx.DeleteFormula(ctx, sheet.Kind, field); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil
			}
			return err
		}
		var recalcErr error
		changed, recalcErr = s.recalculateAny(ctx, tx, sheet)
		return recalcErr
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Formula reset", "sheet", sheet.Kind, "field", field)
	return changed, nil
}

func (s *Service) recalculateAny(ctx context.Context, q service.Queries, sheet model.Sheet) (int, error) {
	if sheet.ReadOnly() {
		return s.rebuildSummaries(ctx, q)
	}
	return s.recalculate(ctx, q, sheet)
}

func checkComputed(sheet model.Sheet, field string) error {
	col, ok := sheet.Column(field)
	if !ok {
		return fmt.Errorf("%w: %q on sheet %s", ErrUnknownField, field, sheet.Kind)
	}
	if !col.Computed {
		return fmt.Errorf("%w: %s.%s", ErrNotComputed, sheet.Kind, field)
	}
	return nil
}

