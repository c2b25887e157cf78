package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSheet is returned when a sheet kind is not one of the ledger sheets.
var ErrUnknownSheet = errors.New("unknown sheet")

// SheetKind identifies one of the ledger tables.
type SheetKind string

const (
	// SheetAE tracks domestic work income.
	SheetAE SheetKind = "ae"
	// SheetAEQT tracks international work income.
	SheetAEQT SheetKind = "ae-qt"
	// SheetExchange tracks USDT to VND conversions.
	SheetExchange SheetKind = "exchange"
	// SheetWithdraw tracks cash withdrawals.
	SheetWithdraw SheetKind = "withdraw"
	// SheetExpense tracks spending.
	SheetExpense SheetKind = "expense"
	// SheetDashboard holds one computed summary row per day.
	SheetDashboard SheetKind = "dashboard"
)

// ColumnKind determines how a cell value is parsed and bound into formulas.
type ColumnKind string

const (
	// ColumnDate holds a calendar day in YYYY-MM-DD form.
	ColumnDate ColumnKind = "date"
	// ColumnText holds free text.
	ColumnText ColumnKind = "text"
	// ColumnNumber holds a decimal amount.
	ColumnNumber ColumnKind = "number"
	// ColumnNames holds a comma-separated list of participants.
	ColumnNames ColumnKind = "names"
)

// Field keys shared by several sheets.
const (
	FieldDate  = "date"
	FieldNote  = "note"
	FieldChia  = "chia"
	FieldShare = "share"
)

// CountSuffix is appended to a names column key to form the formula
// variable holding the number of names in it (chia -> chia_count).
const CountSuffix = "_count"

// Column describes one column of a sheet.
type Column struct {
	Key      string
	Title    string
	Kind     ColumnKind
	Scale    int32
	Computed bool
}

// Sheet describes a ledger table and its columns in display order.
type Sheet struct {
	Kind    SheetKind
	Title   string
	Columns []Column
}

// Column returns the column with the given key.
func (s Sheet) Column(key string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// Computed returns the keys of the formula-driven columns.
func (s Sheet) Computed() []string {
	var keys []string
	for _, c := range s.Columns {
		if c.Computed {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Variables returns every name a formula on this sheet may reference:
// number columns (input or computed) and the count of each names column.
func (s Sheet) Variables() []string {
	var vars []string
	for _, c := range s.Columns {
		switch c.Kind {
		case ColumnNumber:
			vars = append(vars, c.Key)
		case ColumnNames:
			vars = append(vars, c.Key+CountSuffix)
		}
	}
	return vars
}

// Scales maps each number column to its number of decimal places.
func (s Sheet) Scales() map[string]int32 {
	scales := make(map[string]int32)
	for _, c := range s.Columns {
		if c.Kind == ColumnNumber {
			scales[c.Key] = c.Scale
		}
	}
	return scales
}

// ReadOnly reports whether rows of the sheet are maintained by the ledger
// rather than edited directly.
func (s Sheet) ReadOnly() bool {
	return s.Kind == SheetDashboard
}

func number(key, title string, scale int32) Column {
	return Column{Key: key, Title: title, Kind: ColumnNumber, Scale: scale}
}

func computed(key, title string, scale int32) Column {
	return Column{Key: key, Title: title, Kind: ColumnNumber, Scale: scale, Computed: true}
}

func text(key, title string) Column {
	return Column{Key: key, Title: title, Kind: ColumnText}
}

var (
	dateColumn = Column{Key: FieldDate, Title: "Ngày", Kind: ColumnDate}
	noteColumn = text(FieldNote, "Ghi chú")
	chiaColumn = Column{Key: FieldChia, Title: "Chia", Kind: ColumnNames}
)

var sheets = []Sheet{
	{
		Kind:  SheetAE,
		Title: "AE",
		Columns: []Column{
			dateColumn,
			text("customer", "Khách"),
			number("usdt", "USDT", 2),
			number("rate", "Tỷ giá", 0),
			computed("vnd", "Thành tiền", 0),
			number("fee", "Phí", 0),
			computed("net", "Thực nhận", 0),
			chiaColumn,
			computed(FieldShare, "Mỗi người", 0),
			noteColumn,
		},
	},
	{
		Kind:  SheetAEQT,
		Title: "AE-QT",
		Columns: []Column{
			dateColumn,
			text("customer", "Khách"),
			number("usd", "USD", 2),
			number("usd_rate", "USD/USDT", 4),
			computed("usdt", "USDT", 2),
			number("rate", "Tỷ giá", 0),
			computed("vnd", "Thành tiền", 0),
			number("fee", "Phí", 0),
			computed("net", "Thực nhận", 0),
			chiaColumn,
			computed(FieldShare, "Mỗi người", 0),
			noteColumn,
		},
	},
	{
		Kind:  SheetExchange,
		Title: "Đổi tiền",
		Columns: []Column{
			dateColumn,
			number("usdt", "USDT", 2),
			number("rate", "Tỷ giá", 0),
			computed("vnd", "Thành tiền", 0),
			noteColumn,
		},
	},
	{
		Kind:  SheetWithdraw,
		Title: "Rút tiền",
		Columns: []Column{
			dateColumn,
			number("amount", "Số tiền", 0),
			number("fee", "Phí", 0),
			computed("received", "Thực nhận", 0),
			noteColumn,
		},
	},
	{
		Kind:  SheetExpense,
		Title: "Chi tiêu",
		Columns: []Column{
			dateColumn,
			text("item", "Khoản chi"),
			number("amount", "Số tiền", 0),
			noteColumn,
		},
	},
	{
		Kind:  SheetDashboard,
		Title: "Tổng hợp",
		Columns: []Column{
			dateColumn,
			number("ae_income", "AE", 0),
			number("aeqt_income", "AE-QT", 0),
			computed("income", "Tổng thu", 0),
			number("exchanged_usdt", "USDT đã đổi", 2),
			number("exchanged_vnd", "VND đã đổi", 0),
			number("withdrawn", "Đã rút", 0),
			number("expenses", "Chi tiêu", 0),
			computed("balance", "Còn lại", 0),
		},
	},
}

var defaultFormulas = map[SheetKind]map[string]string{
	SheetAE: {
		"vnd":      "usdt * rate",
		"net":      "vnd - fee",
		FieldShare: "chia_count > 0 ? net / chia_count : net",
	},
	SheetAEQT: {
		"usdt":     "usd * usd_rate",
		"vnd":      "usdt * rate",
		"net":      "vnd - fee",
		FieldShare: "chia_count > 0 ? net / chia_count : net",
	},
	SheetExchange: {
		"vnd": "usdt * rate",
	},
	SheetWithdraw: {
		"received": "amount - fee",
	},
	SheetDashboard: {
		"income":  "ae_income + aeqt_income",
		"balance": "income - expenses",
	},
}

// clone returns a copy of s that shares no columns with the catalogue.
func (s Sheet) clone() Sheet {
	s.Columns = append([]Column(nil), s.Columns...)
	return s
}

// Sheets returns every sheet definition, dashboard last.
func Sheets() []Sheet {
	out := make([]Sheet, len(sheets))
	for i, s := range sheets {
		out[i] = s.clone()
	}
	return out
}

// EditableSheets returns the sheets whose rows are entered by hand.
func EditableSheets() []Sheet {
	var out []Sheet
	for _, s := range sheets {
		if !s.ReadOnly() {
			out = append(out, s.clone())
		}
	}
	return out
}

// LookupSheet returns the definition of kind. Lookups are case-insensitive
// and accept the display title ("AE-QT").
func LookupSheet(kind SheetKind) (Sheet, error) {
	k := strings.ToLower(strings.TrimSpace(string(kind)))
	for _, s := range sheets {
		if string(s.Kind) == k || strings.ToLower(s.Title) == k {
			return s.clone(), nil
		}
	}
	return Sheet{}, fmt.Errorf("%w: %q", ErrUnknownSheet, kind)
}

// DefaultFormulas returns a copy of the built-in formulas for a sheet,
// keyed by target column.
func DefaultFormulas(kind SheetKind) map[string]string {
	out := make(map[string]string, len(defaultFormulas[kind]))
	for field, expression := range defaultFormulas[kind] {
		out[field] = expression
	}
	return out
}
