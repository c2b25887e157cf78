package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/formula"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	seq := 0
	svc := New(db.Storage,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("row-%d", seq)
		}),
	)
	return svc, db
}

func mustInsert(t *testing.T, svc *Service, sheet model.SheetKind) *model.Row {
	t.Helper()
	row, err := svc.InsertRow(context.Background(), sheet, -1)
	require.NoError(t, err)
	return row
}

func mustSet(t *testing.T, svc *Service, sheet model.SheetKind, id, field, value string) *Update {
	t.Helper()
	update, err := svc.SetCell(context.Background(), sheet, id, field, value)
	require.NoError(t, err)
	return update
}

func TestService_SetCellCascade(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	row := mustInsert(t, svc, model.SheetAE)

	t.Run("first value auto-fills the date", func(t *testing.T) {
		update := mustSet(t, svc, model.SheetAE, row.ID, "usdt", "100")
		assert.Equal(t, "2024-03-10", update.Row.Date())
		assert.Equal(t, []string{"date", "usdt"}, update.Changed)
		assert.Empty(t, update.Row.Get("vnd"), "vnd needs a rate")
		require.Len(t, update.Summaries, 1)
		assert.Equal(t, "0", update.Summaries[0].Get("ae_income"))
	})

	t.Run("rate computes vnd but net waits for fee", func(t *testing.T) {
		update := mustSet(t, svc, model.SheetAE, row.ID, "rate", "25950")
		assert.Equal(t, "2595000", update.Row.Get("vnd"))
		assert.Empty(t, update.Row.Get("net"))
		assert.Equal(t, []string{"rate", "vnd"}, update.Changed)
	})

	t.Run("fee completes the row", func(t *testing.T) {
		update := mustSet(t, svc, model.SheetAE, row.ID, "fee", "5,000")
		assert.Equal(t, "5000", update.Row.Get("fee"))
		assert.Equal(t, "2590000", update.Row.Get("net"))
		assert.Equal(t, "2590000", update.Row.Get("share"), "no participants keeps the whole net")
		require.Len(t, update.Summaries, 1)
		summary := update.Summaries[0]
		assert.Equal(t, "2590000", summary.Get("ae_income"))
		assert.Equal(t, "2590000", summary.Get("income"))
		assert.Equal(t, "2590000", summary.Get("balance"))
	})

	t.Run("participants split the share", func(t *testing.T) {
		update := mustSet(t, svc, model.SheetAE, row.ID, "chia", "An,Binh , Chi")
		assert.Equal(t, "An, Binh, Chi", update.Row.Get("chia"))
		assert.Equal(t, "863333", update.Row.Get("share"))
		assert.Equal(t, []string{"chia", "share"}, update.Changed)
	})

	t.Run("clearing an input clears its dependants", func(t *testing.T) {
		update := mustSet(t, svc, model.SheetAE, row.ID, "usdt", "")
		assert.Equal(t, []string{"net", "share", "usdt", "vnd"}, update.Changed)
		assert.Empty(t, update.Row.Get("vnd"))
		assert.Empty(t, update.Row.Get("share"))
		assert.Equal(t, "2024-03-10", update.Row.Date(), "date stays")
		require.Len(t, update.Summaries, 1)
		assert.Equal(t, "0", update.Summaries[0].Get("ae_income"))
	})

	t.Run("unchanged value reports nothing", func(t *testing.T) {
		update := mustSet(t, svc, model.SheetAE, row.ID, "rate", "25950")
		assert.Empty(t, update.Changed)
		assert.Empty(t, update.Summaries)
	})

	stored, err := svc.Rows(ctx, model.SheetAE)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "An, Binh, Chi", stored[0].Get("chia"))
}

func TestService_DateMoveRefreshesBothSummaries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	row := mustInsert(t, svc, model.SheetExpense)
	mustSet(t, svc, model.SheetExpense, row.ID, "amount", "50000")

	_, err := svc.Summary(ctx, "2024-03-10")
	require.NoError(t, err)

	update := mustSet(t, svc, model.SheetExpense, row.ID, "date", "09/03/2024")
	assert.Equal(t, "2024-03-09", update.Row.Date())
	require.Len(t, update.Summaries, 1, "old date has no rows left")
	assert.Equal(t, "2024-03-09", update.Summaries[0].Date)
	assert.Equal(t, "50000", update.Summaries[0].Get("expenses"))
	assert.Equal(t, "-50000", update.Summaries[0].Get("balance"))

	_, err = svc.Summary(ctx, "2024-03-10")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestService_SetCellErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ae := mustInsert(t, svc, model.SheetAE)

	tests := []struct {
		wantErr error
		name    string
		sheet   model.SheetKind
		id      string
		field   string
		value   string
	}{
		{name: "computed field", sheet: model.SheetAE, id: ae.ID, field: "vnd", value: "1", wantErr: ErrComputedField},
		{name: "unknown field", sheet: model.SheetAE, id: ae.ID, field: "amount", value: "1", wantErr: ErrUnknownField},
		{name: "bad number", sheet: model.SheetAE, id: ae.ID, field: "usdt", value: "abc", wantErr: ErrInvalidValue},
		{name: "bad date", sheet: model.SheetAE, id: ae.ID, field: "date", value: "31/02/2024", wantErr: ErrInvalidValue},
		{name: "unknown sheet", sheet: "payroll", id: ae.ID, field: "usdt", value: "1", wantErr: model.ErrUnknownSheet},
		{name: "dashboard is read-only", sheet: model.SheetDashboard, id: ae.ID, field: "expenses", value: "1", wantErr: ErrReadOnlySheet},
		{name: "missing row", sheet: model.SheetAE, id: "nope", field: "usdt", value: "1", wantErr: common.ErrNotFound},
		{name: "row of another sheet", sheet: model.SheetExchange, id: ae.ID, field: "usdt", value: "1", wantErr: common.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetCell(ctx, tt.sheet, tt.id, tt.field, tt.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	row, err := svc.storage.GetRow(ctx, ae.ID)
	require.NoError(t, err)
	assert.True(t, row.IsBlank(), "rejected edits store nothing")
}

func TestService_InsertAndDeleteRows(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	first := mustInsert(t, svc, model.SheetWithdraw)
	last := mustInsert(t, svc, model.SheetWithdraw)
	middle, err := svc.InsertRow(ctx, model.SheetWithdraw, 1)
	require.NoError(t, err)

	rows := db.MustGetRows(model.SheetWithdraw)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{first.ID, middle.ID, last.ID}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	update := mustSet(t, svc, model.SheetWithdraw, middle.ID, "amount", "2.000.000")
	assert.Equal(t, "2000000", update.Row.Get("amount"))
	assert.Empty(t, update.Row.Get("received"), "received waits for the fee")
	assert.Equal(t, "2024-03-10", update.Row.Date())

	require.NoError(t, svc.DeleteRow(ctx, model.SheetWithdraw, middle.ID))
	rows = db.MustGetRows(model.SheetWithdraw)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].Position)

	_, err = svc.Summary(ctx, "2024-03-10")
	assert.True(t, errors.Is(err, common.ErrNotFound), "summary of an emptied day is removed")

	_, err = svc.InsertRow(ctx, model.SheetDashboard, 0)
	assert.True(t, errors.Is(err, ErrReadOnlySheet))
	assert.True(t, errors.Is(svc.DeleteRow(ctx, model.SheetWithdraw, "missing"), common.ErrNotFound))
}

func TestService_AppendRow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	update, err := svc.AppendRow(ctx, model.SheetExchange, map[string]string{
		"usdt": "250.5",
		"rate": "25 400",
		"note": "  P2P  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", update.Row.Date())
	assert.Equal(t, "6362700", update.Row.Get("vnd"))
	assert.Equal(t, "P2P", update.Row.Get("note"))
	require.Len(t, update.Summaries, 1)
	assert.Equal(t, "250.5", update.Summaries[0].Get("exchanged_usdt"))

	_, err = svc.AppendRow(ctx, model.SheetExchange, map[string]string{"vnd": "1"})
	assert.True(t, errors.Is(err, ErrComputedField))
}

func TestService_InsertRowWithCells(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	first := mustInsert(t, svc, model.SheetExpense)

	update, err := svc.InsertRowWithCells(ctx, model.SheetExpense, 0, map[string]string{
		"item": "Coffee", "amount": "45000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Coffee", update.Row.Get("item"))
	assert.Equal(t, "2024-03-10", update.Row.Date())

	rows, err := svc.Rows(ctx, model.SheetExpense)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, update.Row.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)

	t.Run("no cells inserts a blank row", func(t *testing.T) {
		update, err := svc.InsertRowWithCells(ctx, model.SheetExpense, -1, nil)
		require.NoError(t, err)
		assert.True(t, update.Row.IsBlank())
		assert.Empty(t, update.Changed)
	})

	t.Run("invalid input leaves the sheet unchanged", func(t *testing.T) {
		_, err := svc.InsertRowWithCells(ctx, model.SheetExpense, 0, map[string]string{"amount": "lots"})
		assert.True(t, errors.Is(err, ErrInvalidValue))

		rows, err := svc.Rows(ctx, model.SheetExpense)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("dashboard is read-only", func(t *testing.T) {
		_, err := svc.InsertRowWithCells(ctx, model.SheetDashboard, -1, map[string]string{"income": "1"})
		assert.True(t, errors.Is(err, ErrReadOnlySheet))
	})
}

func TestService_AutoFilledDateUsesLocation(t *testing.T) {
	// 20:00 UTC on the 9th is already the 10th in Ho Chi Minh City.
	evening := time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		loc  *time.Location
		want string
	}{
		{"default zone", DefaultLocation(), "2024-03-10"},
		{"utc", time.UTC, "2024-03-09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			svc := New(db.Storage,
				WithClock(func() time.Time { return evening }),
				WithLocation(tt.loc),
			)
			assert.Equal(t, tt.want, svc.Today())

			update, err := svc.AppendRow(context.Background(), model.SheetExpense, map[string]string{
				"item": "Pho", "amount": "50000",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, update.Row.Date())

			summary, err := svc.Summary(context.Background(), tt.want)
			require.NoError(t, err)
			assert.Equal(t, "50000", summary.Get("expenses"))
		})
	}
}

func TestService_Formulas(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	row := mustInsert(t, svc, model.SheetAE)
	_, err := svc.SetCells(ctx, model.SheetAE, row.ID, map[string]string{
		"usdt": "100.5",
		"rate": "25950",
		"fee":  "0",
	})
	require.NoError(t, err)

	formulas, err := svc.Formulas(ctx, model.SheetAE)
	require.NoError(t, err)
	require.Len(t, formulas, 3)
	assert.Equal(t, "vnd", formulas[0].Field)
	assert.True(t, formulas[0].IsDefault)

	changed, err := svc.SetFormula(ctx, model.SheetAE, "vnd", "=round(usdt * rate, -3)")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	stored, err := svc.storage.GetRow(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, "2608000", stored.Get("vnd"))
	assert.Equal(t, "2608000", stored.Get("net"))

	summary, err := svc.Summary(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2608000", summary.Get("ae_income"))

	formulas, err = svc.Formulas(ctx, model.SheetAE)
	require.NoError(t, err)
	assert.Equal(t, "round(usdt * rate, -3)", formulas[0].Expression)
	assert.False(t, formulas[0].IsDefault)

	t.Run("rejects unknown variables", func(t *testing.T) {
		_, err := svc.SetFormula(ctx, model.SheetAE, "net", "vnd - tip")
		assert.True(t, errors.Is(err, formula.ErrUnknownVariable))
	})
	t.Run("rejects cycles", func(t *testing.T) {
		_, err := svc.SetFormula(ctx, model.SheetAE, "net", "share * 2")
		assert.True(t, errors.Is(err, formula.ErrCircularReference))
	})
	t.Run("rejects syntax errors", func(t *testing.T) {
		_, err := svc.SetFormula(ctx, model.SheetAE, "net", "vnd -")
		assert.True(t, errors.Is(err, formula.ErrSyntax))
	})
	t.Run("rejects input columns", func(t *testing.T) {
		_, err := svc.SetFormula(ctx, model.SheetAE, "fee", "1")
		assert.True(t, errors.Is(err, ErrNotComputed))
	})

	changed, err = svc.ResetFormula(ctx, model.SheetAE, "vnd")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	stored, err = svc.storage.GetRow(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, "2607975", stored.Get("vnd"))
}

func TestService_DashboardFormula(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AppendRow(ctx, model.SheetWithdraw, map[string]string{"amount": "1000000", "fee": "0"})
	require.NoError(t, err)
	_, err = svc.AppendRow(ctx, model.SheetExpense, map[string]string{"amount": "200000"})
	require.NoError(t, err)

	_, err = svc.SetFormula(ctx, model.SheetDashboard, "balance", "withdrawn - expenses")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, "800000", summary.Get("balance"))
	assert.Equal(t, "1000000", summary.Get("withdrawn"))
}

func TestService_Splits(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AppendRow(ctx, model.SheetAE, map[string]string{
		"usdt": "100", "rate": "25000", "fee": "0", "chia": "An, Binh",
	})
	require.NoError(t, err)
	_, err = svc.AppendRow(ctx, model.SheetAEQT, map[string]string{
		"usd": "10", "usd_rate": "1", "rate": "25000", "fee": "0", "chia": "Binh",
		"date": "2024-03-11",
	})
	require.NoError(t, err)
	_, err = svc.AppendRow(ctx, model.SheetExpense, map[string]string{"amount": "1", "note": "An"})
	require.NoError(t, err)

	splits, err := svc.Splits(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, splits, 2)
	assert.Equal(t, "An", splits[0].Name)
	assert.Equal(t, "1250000", splits[0].Total.String())
	assert.Equal(t, "Binh", splits[1].Name)
	assert.Equal(t, "1500000", splits[1].Total.String())
	assert.Equal(t, 2, splits[1].Rows)

	splits, err = svc.Splits(ctx, "2024-03-11", "2024-03-11")
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal(t, "250000", splits[0].Total.String())
}

func TestService_RebuildSummaries(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.AppendRow(ctx, model.SheetExpense, map[string]string{"amount": "10", "date": "2024-03-01"})
	require.NoError(t, err)
	require.NoError(t, db.Storage.DeleteSummary(ctx, "2024-03-01"))

	count, err := svc.Recalculate(ctx, model.SheetDashboard)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	summaries, err := svc.Summaries(ctx, "1/3/2024", "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "10", summaries[0].Get("expenses"))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-03-01", want: "2024-03-01"},
		{in: "2024-3-1", want: "2024-03-01"},
		{in: "01/03/2024", want: "2024-03-01"},
		{in: "1/3/2024", want: "2024-03-01"},
		{in: "01-03-2024", want: "2024-03-01"},
		{in: "01.03.2024", want: "2024-03-01"},
		{in: "March 1", wantErr: true},
		{in: "2024-02-30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidValue))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
