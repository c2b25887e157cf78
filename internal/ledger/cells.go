package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/money"
)

// dateLayouts are tried in order when parsing a typed date. Day and month
// may be written with or without a leading zero.
var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
}

// ParseDate reads a typed date into YYYY-MM-DD form.
func ParseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(model.DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a date", ErrInvalidValue, raw)
}

// parseCell turns typed input into the canonical stored form of a column.
// Blank input yields "".
func parseCell(col model.Column, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	switch col.Kind {
	case model.ColumnDate:
		return ParseDate(raw)
	case model.ColumnNumber:
		d, err := money.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidValue, col.Key, err)
		}
		return d.String(), nil
	case model.ColumnNames:
		return model.FormatNames(model.ParseNames(raw)), nil
	default:
		return raw, nil
	}
}

// parseCells validates a batch of edits against a sheet. Computed and
// unknown columns are rejected before anything is stored.
func parseCells(sheet model.Sheet, raw map[string]string) (map[string]string, error) {
	if sheet.ReadOnly() {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlySheet, sheet.Kind)
	}

	values := make(map[string]string, len(raw))
	for field, input := range raw {
		col, ok := sheet.Column(field)
		if !ok {
			return nil, fmt.Errorf("%w: %q on sheet %s", ErrUnknownField, field, sheet.Kind)
		}
		if col.Computed {
			return nil, fmt.Errorf("%w: %s.%s", ErrComputedField, sheet.Kind, field)
		}
		value, err := parseCell(col, input)
		if err != nil {
			return nil, err
		}
		values[field] = value
	}
	return values, nil
}
