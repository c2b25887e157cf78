package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupSheet(t *testing.T) {
	tests := []struct {
		name    string
		kind    SheetKind
		want    SheetKind
		wantErr bool
	}{
		{name: "by kind", kind: "ae", want: SheetAE},
		{name: "by title", kind: "AE-QT", want: SheetAEQT},
		{name: "mixed case with spaces", kind: "  Exchange ", want: SheetExchange},
		{name: "vietnamese title", kind: "Chi tiêu", want: SheetExpense},
		{name: "unknown", kind: "payroll", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := LookupSheet(tt.kind)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownSheet))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sheet.Kind)
		})
	}
}

func TestSheet_EveryComputedColumnHasDefaultFormula(t *testing.T) {
	for _, sheet := range Sheets() {
		formulas := DefaultFormulas(sheet.Kind)
		for _, key := range sheet.Computed() {
			assert.Contains(t, formulas, key, "%s.%s has no default formula", sheet.Kind, key)
		}
		for field := range formulas {
			col, ok := sheet.Column(field)
			assert.True(t, ok, "%s formula targets missing column %s", sheet.Kind, field)
			assert.True(t, col.Computed, "%s formula targets input column %s", sheet.Kind, field)
		}
	}
}

func TestSheet_Variables(t *testing.T) {
	sheet, err := LookupSheet(SheetAE)
	require.NoError(t, err)

	vars := sheet.Variables()
	assert.Contains(t, vars, "usdt")
	assert.Contains(t, vars, "vnd")
	assert.Contains(t, vars, "chia_count")
	assert.NotContains(t, vars, "customer")
	assert.NotContains(t, vars, "date")
}

func TestDefaultFormulas_ReturnsCopy(t *testing.T) {
	f := DefaultFormulas(SheetExchange)
	f["vnd"] = "0"
	assert.Equal(t, "usdt * rate", DefaultFormulas(SheetExchange)["vnd"])
}

func TestSheets_ReturnCopies(t *testing.T) {
	tests := []struct {
		name  string
		sheet func() Sheet
	}{
		{"Sheets", func() Sheet { return Sheets()[0] }},
		{"EditableSheets", func() Sheet { return EditableSheets()[0] }},
		{"LookupSheet", func() Sheet {
			s, err := LookupSheet(Sheets()[0].Kind)
			require.NoError(t, err)
			return s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.sheet()
			key := s.Columns[0].Key
			s.Columns[0].Key = "changed"
			s.Columns[0].Computed = true

			again := Sheets()[0]
			assert.Equal(t, key, again.Columns[0].Key)
			assert.False(t, again.Columns[0].Computed)
		})
	}
}

func TestEditableSheets_ExcludesDashboard(t *testing.T) {
	for _, s := range EditableSheets() {
		assert.NotEqual(t, SheetDashboard, s.Kind)
	}
	assert.Len(t, EditableSheets(), len(Sheets())-1)
}
