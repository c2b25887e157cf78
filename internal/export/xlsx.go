package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/cashbook/internal/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes all tables into one workbook, one worksheet per table
// in the order given.
func WriteXLSX(w io.Writer, tables []Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to export")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	styles, err := newStyleSet(f)
	if err != nil {
		return err
	}

	for i, table := range tables {
		name := sheetName(table.Sheet.Title)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("failed to name worksheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add worksheet %s: %w", name, err)
		}

		if err := writeWorksheet(f, name, table, styles); err != nil {
			return fmt.Errorf("worksheet %s: %w", name, err)
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type styleSet struct {
	f       *excelize.File
	numbers map[int32]int
	header  int
}

func newStyleSet(f *excelize.File) (*styleSet, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E0E0E0"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &styleSet{f: f, header: header, numbers: make(map[int32]int)}, nil
}

// number returns a thousands-grouped style with scale decimal places.
func (s *styleSet) number(scale int32) (int, error) {
	if id, ok := s.numbers[scale]; ok {
		return id, nil
	}
	format := "#,##0"
	if scale > 0 {
		format += "." + strings.Repeat("0", int(scale))
	}
	id, err := s.f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return 0, fmt.Errorf("failed to create number style: %w", err)
	}
	s.numbers[scale] = id
	return id, nil
}

func writeWorksheet(f *excelize.File, name string, table Table, styles *styleSet) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}

	for i, col := range table.Sheet.Columns {
		if err := sw.SetColWidth(i+1, i+1, columnWidth(col)); err != nil {
			return err
		}
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	header := make([]any, len(table.Sheet.Columns))
	for i, title := range table.Header() {
		header[i] = excelize.Cell{StyleID: styles.header, Value: title}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r, row := range table.Rows {
		values := make([]any, len(row))
		for c, raw := range row {
			cell, err := xlsxCell(table.Sheet.Columns[c], raw, styles)
			if err != nil {
				return err
			}
			values[c] = cell
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, values); err != nil {
			return err
		}
	}

	return sw.Flush()
}

// xlsxCell writes numbers as numeric cells so totals work in Excel. Text
// that fails to parse as a number is kept verbatim.
func xlsxCell(col model.Column, raw string, styles *styleSet) (any, error) {
	if raw == "" || col.Kind != model.ColumnNumber {
		return raw, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw, nil
	}
	style, err := styles.number(col.Scale)
	if err != nil {
		return nil, err
	}
	return excelize.Cell{StyleID: style, Value: d.InexactFloat64()}, nil
}

func columnWidth(col model.Column) float64 {
	switch col.Kind {
	case model.ColumnDate:
		return 12
	case model.ColumnNumber:
		return 16
	case model.ColumnNames:
		return 24
	default:
		return 20
	}
}

// sheetName strips characters Excel rejects and enforces its 31 rune limit.
func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, title)
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}
