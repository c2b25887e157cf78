package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/config"
	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/money"
	"github.com/Veraticus/cashbook/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initLedger opens storage and wraps it in a ledger service stamped with
// the configured time zone. The caller closes the returned storage.
func initLedger(ctx context.Context) (*ledger.Service, *storage.SQLiteStorage, error) {
	loc, err := config.Location()
	if err != nil {
		return nil, nil, err
	}
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc := ledger.New(store, ledger.WithLocation(loc), ledger.WithLogger(slog.Default()))
	return svc, store, nil
}

// parseAssignments reads field=value arguments. A value may be empty to
// clear the cell.
func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		values[field] = value
	}
	return values, nil
}

// resolveRow finds a row by ID or by its 1-based number in the sheet.
func resolveRow(ctx context.Context, svc *ledger.Service, kind model.SheetKind, ref string) (*model.Row, error) {
	rows, err := svc.Rows(ctx, kind)
	if err != nil {
		return nil, err
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		if n < 1 || n > len(rows) {
			return nil, fmt.Errorf("row %d is out of range: sheet %s has %d rows", n, kind, len(rows))
		}
		return &rows[n-1], nil
	}
	for i := range rows {
		if rows[i].ID == ref || (len(ref) >= 8 && strings.HasPrefix(rows[i].ID, ref)) {
			return &rows[i], nil
		}
	}
	return nil, fmt.Errorf("no row %q on sheet %s", ref, kind)
}

// displayCell formats a stored value for terminal output.
func displayCell(col model.Column, raw string) string {
	if col.Kind != model.ColumnNumber {
		return raw
	}
	return money.FormatStored(raw, col.Scale)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// renderCells lays out records of a sheet as a table, numbered from 1,
// with ids shown when given.
func renderCells(sheet model.Sheet, records []map[string]string, ids []string) string {
	headers := []string{"#"}
	if ids != nil {
		headers = append(headers, "ID")
	}
	offset := len(headers)
	numeric := map[int]bool{0: true}
	for i, col := range sheet.Columns {
		headers = append(headers, col.Title)
		if col.Kind == model.ColumnNumber {
			numeric[i+offset] = true
		}
	}

	rows := make([][]string, 0, len(records))
	for i, cells := range records {
		row := []string{strconv.Itoa(i + 1)}
		if ids != nil {
			row = append(row, shortID(ids[i]))
		}
		for _, col := range sheet.Columns {
			row = append(row, displayCell(col, cells[col.Key]))
		}
		rows = append(rows, row)
	}
	return cli.RenderTable(headers, rows, numeric)
}

func printRows(w io.Writer, sheet model.Sheet, rows []model.Row) {
	records := make([]map[string]string, len(rows))
	ids := make([]string, len(rows))
	for i := range rows {
		records[i] = rows[i].Cells
		ids[i] = rows[i].ID
	}
	fmt.Fprintln(w, renderCells(sheet, records, ids))
}

func printSummaries(w io.Writer, summaries []model.DailySummary) error {
	table, err := summaryTable(summaries)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)
	return nil
}

func summaryTable(summaries []model.DailySummary) (string, error) {
	dashboard, err := model.LookupSheet(model.SheetDashboard)
	if err != nil {
		return "", err
	}
	records := make([]map[string]string, len(summaries))
	for i := range summaries {
		records[i] = summaries[i].Cells
	}
	return renderCells(dashboard, records, nil), nil
}

// printUpdate reports the row after an edit and any formula that could not
// be computed.
func printUpdate(w io.Writer, sheet model.Sheet, update *ledger.Update) {
	printRows(w, sheet, []model.Row{*update.Row})

	if len(update.Changed) > 0 {
		fmt.Fprintln(w, cli.FormatSuccess("Updated "+strings.Join(update.Changed, ", ")))
	}
	fields := make([]string, 0, len(update.Errors))
	for field := range update.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintln(w, cli.FormatWarning(fmt.Sprintf("%s: %v", field, update.Errors[field])))
	}
}
