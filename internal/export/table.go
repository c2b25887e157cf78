// Package export renders ledger sheets as CSV files and Excel workbooks.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
)

// Table is one sheet's rows as canonical cell strings in column order.
type Table struct {
	Sheet model.Sheet
	Rows  [][]string
}

// Header returns the column titles.
func (t Table) Header() []string {
	header := make([]string, len(t.Sheet.Columns))
	for i, col := range t.Sheet.Columns {
		header[i] = col.Title
	}
	return header
}

// Collect reads every editable sheet followed by the dashboard.
func Collect(ctx context.Context, q service.Queries) ([]Table, error) {
	var tables []Table
	for _, sheet := range model.EditableSheets() {
		rows, err := q.GetRows(ctx, sheet.Kind)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", sheet.Kind, err)
		}
		tables = append(tables, rowTable(sheet, rows))
	}

	dashboard, err := CollectDashboard(ctx, q)
	if err != nil {
		return nil, err
	}
	return append(tables, dashboard), nil
}

// CollectSheet reads a single sheet; the dashboard is built from summaries.
func CollectSheet(ctx context.Context, q service.Queries, kind model.SheetKind) (Table, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return Table{}, err
	}
	if sheet.ReadOnly() {
		return CollectDashboard(ctx, q)
	}
	rows, err := q.GetRows(ctx, sheet.Kind)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read %s: %w", sheet.Kind, err)
	}
	return rowTable(sheet, rows), nil
}

// CollectDashboard builds the dashboard table from the stored summaries.
func CollectDashboard(ctx context.Context, q service.Queries) (Table, error) {
	sheet, err := model.LookupSheet(model.SheetDashboard)
	if err != nil {
		return Table{}, err
	}
	summaries, err := q.GetSummaries(ctx, service.DateRange{})
	if err != nil {
		return Table{}, fmt.Errorf("failed to read summaries: %w", err)
	}

	table := Table{Sheet: sheet, Rows: make([][]string, 0, len(summaries))}
	for _, summary := range summaries {
		table.Rows = append(table.Rows, cellsInOrder(sheet, summary.Cells))
	}
	return table, nil
}

func rowTable(sheet model.Sheet, rows []model.Row) Table {
	table := Table{Sheet: sheet, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		table.Rows = append(table.Rows, cellsInOrder(sheet, row.Cells))
	}
	return table
}

func cellsInOrder(sheet model.Sheet, cells map[string]string) []string {
	out := make([]string, len(sheet.Columns))
	for i, col := range sheet.Columns {
		out[i] = cells[col.Key]
	}
	return out
}

// FileName returns a filesystem-friendly name for the table, e.g. "ae-qt".
func (t Table) FileName(ext string) string {
	return strings.ToLower(string(t.Sheet.Kind)) + "." + ext
}
