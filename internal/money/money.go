// Package money formats and parses ledger amounts.
package money

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrInvalidAmount is returned when input cannot be read as a number.
var ErrInvalidAmount = errors.New("invalid amount")

var printer = message.NewPrinter(language.Vietnamese)

// Format renders d with Vietnamese digit grouping ("1.234.567", "12,5"),
// rounded to at most scale decimal places.
func Format(d decimal.Decimal, scale int32) string {
	rounded := d.Round(scale)
	return printer.Sprintf("%v", number.Decimal(rounded.InexactFloat64(), number.MaxFractionDigits(int(scale))))
}

// FormatStored formats a canonical stored amount, returning raw unchanged
// when it is blank or not a number.
func FormatStored(raw string, scale int32) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return Format(d, scale)
}

// FormatVND renders a whole-dong amount with the currency sign.
func FormatVND(d decimal.Decimal) string {
	return Format(d, 0) + " ₫"
}

// Parse reads an amount typed by a user. It accepts grouping with commas,
// spaces or repeated dots ("1,234,567", "1 234 567", "1.234.567"), a single
// dot as decimal point, and a trailing ₫/đ sign. When both separators
// appear, the last one is the decimal point ("1.234,5" and "1,234.5").
func Parse(raw string) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' {
			return -1
		}
		return r
	}, raw)
	s = strings.TrimSuffix(s, "₫")
	s = strings.TrimSuffix(s, "đ")

	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case commas == 1:
		if len(s)-strings.Index(s, ",")-1 == 3 {
			s = strings.Replace(s, ",", "", 1)
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d, nil
}
