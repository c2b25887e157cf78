package server

import (
	"time"

	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/Veraticus/cashbook/internal/model"
)

type columnJSON struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	Scale    int32  `json:"scale"`
	Computed bool   `json:"computed"`
}

type sheetJSON struct {
	Kind     string       `json:"kind"`
	Title    string       `json:"title"`
	Columns  []columnJSON `json:"columns"`
	ReadOnly bool         `json:"read_only"`
}

func newSheetJSON(sheet model.Sheet) sheetJSON {
	out := sheetJSON{
		Kind:     string(sheet.Kind),
		Title:    sheet.Title,
		ReadOnly: sheet.ReadOnly(),
		Columns:  make([]columnJSON, 0, len(sheet.Columns)),
	}
	for _, col := range sheet.Columns {
		out.Columns = append(out.Columns, columnJSON{
			Key:      col.Key,
			Title:    col.Title,
			Kind:     string(col.Kind),
			Scale:    col.Scale,
			Computed: col.Computed,
		})
	}
	return out
}

type rowJSON struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Cells     map[string]string `json:"cells"`
	ID        string            `json:"id"`
	Sheet     string            `json:"sheet"`
	Position  int               `json:"position"`
}

func newRowJSON(row *model.Row) rowJSON {
	cells := row.Cells
	if cells == nil {
		cells = map[string]string{}
	}
	return rowJSON{
		ID:        row.ID,
		Sheet:     string(row.Sheet),
		Position:  row.Position,
		Cells:     cells,
		UpdatedAt: row.UpdatedAt,
	}
}

type summaryJSON struct {
	Cells map[string]string `json:"cells"`
	Date  string            `json:"date"`
}

func newSummariesJSON(summaries []model.DailySummary) []summaryJSON {
	out := make([]summaryJSON, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, summaryJSON{Date: s.Date, Cells: s.Cells})
	}
	return out
}

type updateJSON struct {
	Errors    map[string]string `json:"errors"`
	Changed   []string          `json:"changed"`
	Summaries []summaryJSON     `json:"summaries"`
	Row       rowJSON           `json:"row"`
}

func newUpdateJSON(update *ledger.Update) updateJSON {
	out := updateJSON{
		Row:       newRowJSON(update.Row),
		Changed:   update.Changed,
		Summaries: newSummariesJSON(update.Summaries),
		Errors:    make(map[string]string, len(update.Errors)),
	}
	for field, err := range update.Errors {
		out.Errors[field] = err.Error()
	}
	return out
}

type formulaJSON struct {
	Sheet      string `json:"sheet"`
	Field      string `json:"field"`
	Expression string `json:"expression"`
	IsDefault  bool   `json:"is_default"`
}

func newFormulasJSON(formulas []model.Formula) []formulaJSON {
	out := make([]formulaJSON, 0, len(formulas))
	for _, f := range formulas {
		out = append(out, formulaJSON{
			Sheet:      string(f.Sheet),
			Field:      f.Field,
			Expression: f.Expression,
			IsDefault:  f.IsDefault,
		})
	}
	return out
}

type splitJSON struct {
	Name      string `json:"name"`
	Total     string `json:"total"`
	Formatted string `json:"formatted"`
	Rows      int    `json:"rows"`
}
