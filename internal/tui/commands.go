package tui

import (
	"context"

	"github.com/Veraticus/cashbook/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

// loadSheet reads the rows of kind, or the daily summaries when kind is the
// dashboard. focusID names a row to put the cursor on once loaded.
func (m Model) loadSheet(kind model.SheetKind, focusID string) tea.Cmd {
	book := m.ledger
	timeout := m.config.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		msg := sheetLoadedMsg{kind: kind, focusID: focusID}
		sheet, err := model.LookupSheet(kind)
		if err != nil {
			msg.err = err
			return msg
		}
		if sheet.ReadOnly() {
			msg.summaries, msg.err = book.Summaries(ctx, "", "")
			return msg
		}
		msg.rows, msg.err = book.Rows(ctx, kind)
		return msg
	}
}

func (m Model) saveCell(kind model.SheetKind, id, field, value string) tea.Cmd {
	book := m.ledger
	timeout := m.config.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		update, err := book.SetCell(ctx, kind, id, field, value)
		return cellSavedMsg{update: update, field: field, err: err}
	}
}

func (m Model) insertRow(kind model.SheetKind, at int) tea.Cmd {
	book := m.ledger
	timeout := m.config.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		row, err := book.InsertRow(ctx, kind, at)
		return rowInsertedMsg{row: row, err: err}
	}
}

func (m Model) deleteRow(kind model.SheetKind, id string) tea.Cmd {
	book := m.ledger
	timeout := m.config.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		return rowDeletedMsg{id: id, err: book.DeleteRow(ctx, kind, id)}
	}
}
