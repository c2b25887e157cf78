package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func newRow(id string, sheet model.SheetKind, position int, cells map[string]string) *model.Row {
	return &model.Row{ID: id, Sheet: sheet, Position: position, Cells: cells}
}

func rowIDs(rows []model.Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func assertIDs(t *testing.T, got []model.Row, want ...string) {
	t.Helper()
	ids := rowIDs(got)
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("row order = %v, want %v", ids, want)
	}
	for i, r := range got {
		if r.Position != i {
			t.Errorf("row %s position = %d, want %d", r.ID, r.Position, i)
		}
	}
}

func TestSQLiteStorage_InsertRowOrdering(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	steps := []*model.Row{
		newRow("a", model.SheetAE, 0, nil),
		newRow("b", model.SheetAE, 1, nil),
		newRow("c", model.SheetAE, 1, nil),  // between a and b
		newRow("d", model.SheetAE, 0, nil),  // at the top
		newRow("e", model.SheetAE, 99, nil), // past the end appends
		newRow("x", model.SheetExpense, 0, nil),
	}
	for _, row := range steps {
		if err := store.InsertRow(ctx, row); err != nil {
			t.Fatalf("InsertRow(%s) failed: %v", row.ID, err)
		}
	}

	rows, err := store.GetRows(ctx, model.SheetAE)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	assertIDs(t, rows, "d", "a", "c", "b", "e")

	other, err := store.GetRows(ctx, model.SheetExpense)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	assertIDs(t, other, "x")
}

func TestSQLiteStorage_InsertRowDuplicate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.InsertRow(ctx, newRow("a", model.SheetAE, 0, nil)); err != nil {
		t.Fatalf("InsertRow failed: %v", err)
	}
	err := store.InsertRow(ctx, newRow("a", model.SheetAE, 0, nil))
	if !errors.Is(err, common.ErrDuplicateEntry) {
		t.Fatalf("duplicate InsertRow error = %v, want %v", err, common.ErrDuplicateEntry)
	}

	rows, err := store.GetRows(ctx, model.SheetAE)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	assertIDs(t, rows, "a")
}

func TestSQLiteStorage_SaveAndGetRow(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	row := newRow("r1", model.SheetAE, 0, map[string]string{"customer": "Lan"})
	if err := store.InsertRow(ctx, row); err != nil {
		t.Fatalf("InsertRow failed: %v", err)
	}

	row.Set("date", "2024-03-01")
	row.Set("usdt", "100")
	row.Set("chia", "An, Binh")
	row.UpdatedAt = row.UpdatedAt.Add(1)
	if err := store.SaveRow(ctx, row); err != nil {
		t.Fatalf("SaveRow failed: %v", err)
	}

	got, err := store.GetRow(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRow failed: %v", err)
	}
	if got.Get("usdt") != "100" || got.Get("chia") != "An, Binh" || got.Date() != "2024-03-01" {
		t.Errorf("GetRow cells = %v", got.Cells)
	}
	if got.Sheet != model.SheetAE {
		t.Errorf("GetRow sheet = %q", got.Sheet)
	}

	if _, err := store.GetRow(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetRow(missing) error = %v, want %v", err, common.ErrNotFound)
	}
	if err := store.SaveRow(ctx, newRow("missing", model.SheetAE, 0, nil)); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("SaveRow(missing) error = %v, want %v", err, common.ErrNotFound)
	}
}

func TestSQLiteStorage_DeleteRowCompacts(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d"} {
		if err := store.InsertRow(ctx, newRow(id, model.SheetWithdraw, i, nil)); err != nil {
			t.Fatalf("InsertRow failed: %v", err)
		}
	}

	if err := store.DeleteRow(ctx, "b"); err != nil {
		t.Fatalf("DeleteRow failed: %v", err)
	}
	rows, err := store.GetRows(ctx, model.SheetWithdraw)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	assertIDs(t, rows, "a", "c", "d")

	if err := store.DeleteRow(ctx, "b"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second DeleteRow error = %v, want %v", err, common.ErrNotFound)
	}
}

func TestSQLiteStorage_GetRowsByDate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	fixtures := []*model.Row{
		newRow("ae1", model.SheetAE, 0, map[string]string{"date": "2024-03-01"}),
		newRow("ae2", model.SheetAE, 1, map[string]string{"date": "2024-03-02"}),
		newRow("ex1", model.SheetExpense, 0, map[string]string{"date": "2024-03-01"}),
		newRow("undated", model.SheetExpense, 1, map[string]string{"item": "coffee"}),
	}
	for _, row := range fixtures {
		if err := store.InsertRow(ctx, row); err != nil {
			t.Fatalf("InsertRow failed: %v", err)
		}
	}

	tests := []struct {
		name  string
		dates service.DateRange
		want  []string
	}{
		{name: "single day", dates: service.DateRange{From: "2024-03-01", To: "2024-03-01"}, want: []string{"ae1", "ex1"}},
		{name: "open range skips undated", dates: service.DateRange{}, want: []string{"ae1", "ex1", "ae2"}},
		{name: "from only", dates: service.DateRange{From: "2024-03-02"}, want: []string{"ae2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := store.GetRowsByDate(ctx, tt.dates)
			if err != nil {
				t.Fatalf("GetRowsByDate failed: %v", err)
			}
			if fmt.Sprint(rowIDs(rows)) != fmt.Sprint(tt.want) {
				t.Errorf("GetRowsByDate = %v, want %v", rowIDs(rows), tt.want)
			}
		})
	}

	if _, err := store.GetRowsByDate(ctx, service.DateRange{From: "2024-03-05", To: "2024-03-01"}); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("inverted range error = %v, want %v", err, ErrInvalidDateRange)
	}
}

func TestSQLiteStorage_Formulas(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	f := &model.Formula{Sheet: model.SheetAE, Field: "vnd", Expression: "usdt * rate"}
	if err := store.SaveFormula(ctx, f); err != nil {
		t.Fatalf("SaveFormula failed: %v", err)
	}
	f.Expression = "round(usdt * rate, -3)"
	if err := store.SaveFormula(ctx, f); err != nil {
		t.Fatalf("SaveFormula update failed: %v", err)
	}
	if err := store.SaveFormula(ctx, &model.Formula{Sheet: model.SheetWithdraw, Field: "received", Expression: "amount"}); err != nil {
		t.Fatalf("SaveFormula failed: %v", err)
	}

	got, err := store.GetFormulas(ctx, model.SheetAE)
	if err != nil {
		t.Fatalf("GetFormulas failed: %v", err)
	}
	if len(got) != 1 || got[0].Expression != "round(usdt * rate, -3)" {
		t.Errorf("GetFormulas = %+v", got)
	}

	all, err := store.GetAllFormulas(ctx)
	if err != nil {
		t.Fatalf("GetAllFormulas failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("GetAllFormulas returned %d formulas, want 2", len(all))
	}

	if err := store.DeleteFormula(ctx, model.SheetAE, "vnd"); err != nil {
		t.Fatalf("DeleteFormula failed: %v", err)
	}
	if err := store.DeleteFormula(ctx, model.SheetAE, "vnd"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second DeleteFormula error = %v, want %v", err, common.ErrNotFound)
	}
}

func TestSQLiteStorage_Summaries(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for _, date := range []string{"2024-03-02", "2024-03-01", "2024-03-03"} {
		s := &model.DailySummary{Date: date, Cells: map[string]string{"income": "100"}}
		if err := store.SaveSummary(ctx, s); err != nil {
			t.Fatalf("SaveSummary failed: %v", err)
		}
	}
	if err := store.SaveSummary(ctx, &model.DailySummary{Date: "2024-03-01", Cells: map[string]string{"income": "250"}}); err != nil {
		t.Fatalf("SaveSummary overwrite failed: %v", err)
	}

	got, err := store.GetSummary(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got.Get("income") != "250" {
		t.Errorf("income = %q, want 250", got.Get("income"))
	}

	list, err := store.GetSummaries(ctx, service.DateRange{From: "2024-03-02"})
	if err != nil {
		t.Fatalf("GetSummaries failed: %v", err)
	}
	if len(list) != 2 || list[0].Date != "2024-03-02" || list[1].Date != "2024-03-03" {
		t.Errorf("GetSummaries = %+v", list)
	}

	if err := store.DeleteSummary(ctx, "2024-03-02"); err != nil {
		t.Fatalf("DeleteSummary failed: %v", err)
	}
	if _, err := store.GetSummary(ctx, "2024-03-02"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetSummary after delete error = %v, want %v", err, common.ErrNotFound)
	}
}

func TestSQLiteStorage_SyncState(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.GetSyncState(ctx, "sheets"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("GetSyncState error = %v, want %v", err, common.ErrNotFound)
	}
	if err := store.SaveSyncState(ctx, &service.SyncState{Target: "sheets", ExternalID: "abc"}); err != nil {
		t.Fatalf("SaveSyncState failed: %v", err)
	}
	state, err := store.GetSyncState(ctx, "sheets")
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state.ExternalID != "abc" || state.SyncedAt.IsZero() {
		t.Errorf("GetSyncState = %+v", state)
	}
}

func TestSQLiteStorage_TransactionRollback(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	if err := tx.InsertRow(ctx, newRow("a", model.SheetAE, 0, nil)); err != nil {
		t.Fatalf("tx.InsertRow failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	rows, err := store.GetRows(ctx, model.SheetAE)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rolled back insert left %d rows", len(rows))
	}
}

func TestSQLiteStorage_ResetLedger(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.InsertRow(ctx, newRow("a", model.SheetAE, 0, nil)); err != nil {
		t.Fatalf("InsertRow failed: %v", err)
	}
	if err := store.SaveFormula(ctx, &model.Formula{Sheet: model.SheetAE, Field: "vnd", Expression: "1"}); err != nil {
		t.Fatalf("SaveFormula failed: %v", err)
	}
	if err := store.ResetLedger(ctx); err != nil {
		t.Fatalf("ResetLedger failed: %v", err)
	}

	rows, _ := store.GetRows(ctx, model.SheetAE)
	formulas, _ := store.GetAllFormulas(ctx)
	if len(rows) != 0 || len(formulas) != 0 {
		t.Errorf("ResetLedger left %d rows and %d formulas", len(rows), len(formulas))
	}
}
