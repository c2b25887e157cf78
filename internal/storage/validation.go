// Package storage provides the data persistence layer for the cashbook application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidRow       = errors.New("invalid row")
	ErrInvalidFormula   = errors.New("invalid formula")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDate accepts "" or a YYYY-MM-DD day.
func validateDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// validateRow validates a single ledger row.
func validateRow(row *model.Row) error {
	if row == nil {
		return fmt.Errorf("%w: row", ErrNilParameter)
	}
	if row.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRow)
	}
	sheet, err := model.LookupSheet(row.Sheet)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}
	if sheet.ReadOnly() {
		return fmt.Errorf("%w: sheet %s does not store rows", ErrInvalidRow, sheet.Kind)
	}
	for field := range row.Cells {
		if _, ok := sheet.Column(field); !ok {
			return fmt.Errorf("%w: unknown column %q on sheet %s", ErrInvalidRow, field, sheet.Kind)
		}
	}
	if err := validateDate(row.Date()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}
	return nil
}

// validateFormula validates a formula override.
func validateFormula(formula *model.Formula) error {
	if formula == nil {
		return fmt.Errorf("%w: formula", ErrNilParameter)
	}
	if _, err := model.LookupSheet(formula.Sheet); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormula, err)
	}
	if strings.TrimSpace(formula.Field) == "" {
		return fmt.Errorf("%w: missing field", ErrInvalidFormula)
	}
	if strings.TrimSpace(formula.Expression) == "" {
		return fmt.Errorf("%w: missing expression", ErrInvalidFormula)
	}
	return nil
}

// validateDateRange ensures both bounds are days and From is not after To.
func validateDateRange(from, to string) error {
	if err := validateDate(from); err != nil {
		return err
	}
	if err := validateDate(to); err != nil {
		return err
	}
	if from != "" && to != "" && to < from {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, from, to)
	}
	return nil
}
