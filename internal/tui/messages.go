package tui

import (
	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/Veraticus/cashbook/internal/model"
)

// Data loading messages.
type sheetLoadedMsg struct {
	err       error
	kind      model.SheetKind
	focusID   string
	rows      []model.Row
	summaries []model.DailySummary
}

// Edit results.
type cellSavedMsg struct {
	err    error
	update *ledger.Update
	field  string
}

type rowInsertedMsg struct {
	err error
	row *model.Row
}

type rowDeletedMsg struct {
	err error
	id  string
}
