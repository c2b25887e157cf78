package model

import (
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical form of date cells.
const DateLayout = "2006-01-02"

// Row is one line of a ledger sheet. Cells are keyed by column and hold
// canonical strings; an absent key and an empty string both mean blank.
type Row struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Cells     map[string]string
	ID        string
	Sheet     SheetKind
	Position  int
}

// Get returns the value of a cell, or "" when blank.
func (r *Row) Get(field string) string {
	if r.Cells == nil {
		return ""
	}
	return r.Cells[field]
}

// Set stores a cell value; an empty value removes the cell.
func (r *Row) Set(field, value string) {
	if value == "" {
		delete(r.Cells, field)
		return
	}
	if r.Cells == nil {
		r.Cells = make(map[string]string)
	}
	r.Cells[field] = value
}

// Date returns the row's date cell.
func (r *Row) Date() string {
	return r.Get(FieldDate)
}

// IsBlank reports whether the row has no values at all.
func (r *Row) IsBlank() bool {
	return len(r.Cells) == 0
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	out := *r
	out.Cells = make(map[string]string, len(r.Cells))
	for k, v := range r.Cells {
		out.Cells[k] = v
	}
	return &out
}

// ChangedFields lists, in sorted order, the cells whose values differ
// between two versions of a row.
func ChangedFields(before, after *Row) []string {
	seen := make(map[string]bool)
	var changed []string
	for k, v := range after.Cells {
		seen[k] = true
		if before.Get(k) != v {
			changed = append(changed, k)
		}
	}
	for k := range before.Cells {
		if !seen[k] && before.Cells[k] != "" {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// DailySummary is the dashboard row for one day.
type DailySummary struct {
	UpdatedAt time.Time
	Cells     map[string]string
	Date      string
}

// Get returns the value of a summary cell, or "" when blank.
func (s *DailySummary) Get(field string) string {
	if s.Cells == nil {
		return ""
	}
	return s.Cells[field]
}

// Formula is a user override of a computed column's expression.
type Formula struct {
	UpdatedAt  time.Time
	Sheet      SheetKind
	Field      string
	Expression string
	IsDefault  bool
}

// ParseNames splits a participants list on commas, trimming blanks.
func ParseNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// FormatNames joins participants in canonical "A, B, C" form.
func FormatNames(names []string) string {
	return strings.Join(names, ", ")
}
