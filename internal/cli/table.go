package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RenderTable lays out rows under headers. Columns whose index is in
// numeric are right-aligned.
func RenderTable(headers []string, rows [][]string, numeric map[int]bool) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case numeric[col]:
				return NumberCellStyle
			default:
				return TableCellStyle
			}
		})
	return t.String()
}
