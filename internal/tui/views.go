package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/money"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const (
	minColumnWidth = 6
	maxColumnWidth = 22
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{m.renderTabs()}
	if m.ready {
		sections = append(sections, m.theme.BorderedBox.Render(m.table.View()))
	} else {
		sections = append(sections, m.theme.StatusInfo.Render("Loading "+m.sheet().Title+"..."))
	}
	sections = append(sections, m.renderCellBar(), m.renderStatus(), m.help.View(m.keymap))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(m.sheets))
	for i, sheet := range m.sheets {
		if i == m.sheetIndex {
			tabs = append(tabs, m.theme.ActiveTab.Render(sheet.Title))
			continue
		}
		tabs = append(tabs, m.theme.Tab.Render(sheet.Title))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderCellBar shows the focused cell, or the input while editing.
func (m Model) renderCellBar() string {
	sheet := m.sheet()
	col := sheet.Columns[m.column]
	label := m.theme.Bold.Render(col.Title + ":")

	if m.state == StateEditing {
		return label + " " + m.input.View()
	}

	var value string
	if row := m.currentRow(); row != nil {
		value = displayCell(col, row.Get(col.Key))
	} else if i := m.table.Cursor(); sheet.ReadOnly() && i >= 0 && i < len(m.summaries) {
		value = displayCell(col, m.summaries[i].Cells[col.Key])
	}

	line := label + " " + m.theme.Normal.Render(value)
	if col.Computed {
		line += " " + m.theme.Computed.Render("(computed)")
	}
	return line
}

func (m Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	switch m.statusKind {
	case statusSuccess:
		return m.theme.StatusSuccess.Render(m.status)
	case statusWarning:
		return m.theme.StatusWarning.Render(m.status)
	case statusError:
		return m.theme.StatusError.Render(m.status)
	default:
		return m.theme.StatusInfo.Render(m.status)
	}
}

// refreshTable rebuilds the table from the loaded rows and the column
// cursor. The focused column's title is marked.
func (m *Model) refreshTable() {
	sheet := m.sheet()
	cells := m.tableCells(sheet)

	columns := make([]table.Column, len(sheet.Columns))
	for i, col := range sheet.Columns {
		title := col.Title
		if i == m.column {
			title = "▸" + title
		}
		width := utf8.RuneCountInString(title)
		for _, row := range cells {
			width = max(width, utf8.RuneCountInString(row[i]))
		}
		columns[i] = table.Column{Title: title, Width: min(max(width, minColumnWidth), maxColumnWidth)}
	}

	m.table.SetRows(nil)
	m.table.SetColumns(columns)
	m.table.SetRows(cells)
}

func (m Model) tableCells(sheet model.Sheet) []table.Row {
	var sources []map[string]string
	if sheet.ReadOnly() {
		for _, summary := range m.summaries {
			sources = append(sources, summary.Cells)
		}
	} else {
		for _, row := range m.rows {
			sources = append(sources, row.Cells)
		}
	}

	rows := make([]table.Row, 0, len(sources))
	for _, cells := range sources {
		row := make(table.Row, len(sheet.Columns))
		for i, col := range sheet.Columns {
			row[i] = displayCell(col, cells[col.Key])
		}
		rows = append(rows, row)
	}
	return rows
}

// displayCell renders a stored value for the grid: numbers with grouping,
// everything else as stored.
func displayCell(col model.Column, raw string) string {
	if col.Kind != model.ColumnNumber {
		return strings.TrimSpace(raw)
	}
	return money.FormatStored(raw, col.Scale)
}
