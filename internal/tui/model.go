// Package tui is an interactive terminal editor for the ledger sheets.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Ledger is the part of the ledger service the editor drives.
type Ledger interface {
	Rows(ctx context.Context, kind model.SheetKind) ([]model.Row, error)
	Summaries(ctx context.Context, from, to string) ([]model.DailySummary, error)
	InsertRow(ctx context.Context, kind model.SheetKind, at int) (*model.Row, error)
	DeleteRow(ctx context.Context, kind model.SheetKind, id string) error
	SetCell(ctx context.Context, kind model.SheetKind, id, field, raw string) (*ledger.Update, error)
}

// State represents the current state of the TUI.
type State int

const (
	StateBrowse State = iota
	StateEditing
)

// statusKind selects the style of the status line.
type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusWarning
	statusError
)

// Model holds the main TUI state.
type Model struct {
	theme      themes.Theme
	ledger     Ledger
	lastError  error
	table      table.Model
	input      textinput.Model
	help       help.Model
	keymap     KeyMap
	config     Config
	status     string
	sheets     []model.Sheet
	rows       []model.Row
	summaries  []model.DailySummary
	sheetIndex int
	column     int
	width      int
	height     int
	statusKind statusKind
	state      State
	ready      bool
	quitting   bool
}

// newModel creates a new model with the given configuration.
func newModel(book Ledger, cfg Config) Model {
	sheets := model.Sheets()
	index := 0
	if sheet, err := model.LookupSheet(cfg.Sheet); err == nil {
		for i := range sheets {
			if sheets[i].Kind == sheet.Kind {
				index = i
			}
		}
	}

	keys := table.DefaultKeyMap()
	// d deletes a row here, so half-page down keeps only its ctrl chord.
	keys.HalfPageDown = key.NewBinding(key.WithKeys("ctrl+d"))

	input := textinput.New()
	input.CharLimit = 120
	input.Prompt = ""

	m := Model{
		theme:      cfg.Theme,
		ledger:     book,
		config:     cfg,
		keymap:     DefaultKeyMap(),
		help:       help.New(),
		input:      input,
		sheets:     sheets,
		sheetIndex: index,
		width:      cfg.Width,
		height:     cfg.Height,
		state:      StateBrowse,
		table: table.New(
			table.WithFocused(true),
			table.WithKeyMap(keys),
			table.WithStyles(cfg.Theme.TableStyles()),
		),
	}
	m.resize()
	return m
}

// Init loads the first sheet.
func (m Model) Init() tea.Cmd {
	return m.loadSheet(m.sheet().Kind, "")
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case sheetLoadedMsg:
		return m.handleSheetLoaded(msg), nil

	case cellSavedMsg:
		return m.handleCellSaved(msg), nil

	case rowInsertedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setStatus(statusSuccess, "Inserted row")
		return m, m.loadSheet(m.sheet().Kind, msg.row.ID)

	case rowDeletedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setStatus(statusSuccess, "Deleted row")
		return m, m.loadSheet(m.sheet().Kind, "")

	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.ForceQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.state == StateEditing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}

	if m.state == StateEditing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sheet := m.sheet()

	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil

	case key.Matches(msg, m.keymap.Left):
		if m.column > 0 {
			m.column--
			m.refreshTable()
		}
		return m, nil

	case key.Matches(msg, m.keymap.Right):
		if m.column < len(sheet.Columns)-1 {
			m.column++
			m.refreshTable()
		}
		return m, nil

	case key.Matches(msg, m.keymap.NextSheet):
		return m.switchSheet(1)

	case key.Matches(msg, m.keymap.PrevSheet):
		return m.switchSheet(-1)

	case key.Matches(msg, m.keymap.Refresh):
		return m, m.loadSheet(sheet.Kind, m.currentRowID())

	case key.Matches(msg, m.keymap.Edit):
		return m.startEditing()

	case key.Matches(msg, m.keymap.Insert):
		if sheet.ReadOnly() {
			m.setStatus(statusWarning, sheet.Title+" is read-only")
			return m, nil
		}
		at := -1
		if len(m.rows) > 0 {
			at = m.table.Cursor() + 1
		}
		return m, m.insertRow(sheet.Kind, at)

	case key.Matches(msg, m.keymap.Delete):
		if sheet.ReadOnly() {
			m.setStatus(statusWarning, sheet.Title+" is read-only")
			return m, nil
		}
		id := m.currentRowID()
		if id == "" {
			return m, nil
		}
		return m, m.deleteRow(sheet.Kind, id)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Cancel):
		m.stopEditing()
		m.setStatus(statusInfo, "Edit cancelled")
		return m, nil

	case key.Matches(msg, m.keymap.Save):
		sheet := m.sheet()
		field := sheet.Columns[m.column].Key
		id := m.currentRowID()
		value := m.input.Value()
		m.stopEditing()
		if id == "" {
			return m, nil
		}
		return m, m.saveCell(sheet.Kind, id, field, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startEditing() (tea.Model, tea.Cmd) {
	sheet := m.sheet()
	if sheet.ReadOnly() {
		m.setStatus(statusWarning, sheet.Title+" is read-only")
		return m, nil
	}
	col := sheet.Columns[m.column]
	if col.Computed {
		m.setStatus(statusWarning, col.Title+" is computed by a formula")
		return m, nil
	}
	row := m.currentRow()
	if row == nil {
		m.setStatus(statusInfo, "No rows yet, press o to add one")
		return m, nil
	}

	m.state = StateEditing
	m.table.Blur()
	m.input.SetValue(row.Get(col.Key))
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m *Model) stopEditing() {
	m.state = StateBrowse
	m.input.Blur()
	m.input.Reset()
	m.table.Focus()
}

func (m Model) switchSheet(step int) (tea.Model, tea.Cmd) {
	n := len(m.sheets)
	m.sheetIndex = (m.sheetIndex + step + n) % n
	m.column = 0
	m.rows = nil
	m.summaries = nil
	m.ready = false
	m.table.SetCursor(0)
	m.refreshTable()
	return m, m.loadSheet(m.sheet().Kind, "")
}

func (m Model) handleSheetLoaded(msg sheetLoadedMsg) Model {
	if msg.kind != m.sheet().Kind {
		return m
	}
	if msg.err != nil {
		m.setError(fmt.Errorf("failed to load %s: %w", msg.kind, msg.err))
		return m
	}

	m.rows = msg.rows
	m.summaries = msg.summaries
	m.ready = true
	m.refreshTable()

	if msg.focusID != "" {
		for i := range m.rows {
			if m.rows[i].ID == msg.focusID {
				m.table.SetCursor(i)
				break
			}
		}
	}
	if m.table.Cursor() >= m.rowCount() {
		m.table.SetCursor(max(m.rowCount()-1, 0))
	}
	return m
}

func (m Model) handleCellSaved(msg cellSavedMsg) Model {
	if msg.err != nil {
		m.setError(msg.err)
		return m
	}

	update := msg.update
	for i := range m.rows {
		if m.rows[i].ID == update.Row.ID {
			m.rows[i] = *update.Row
		}
	}
	m.refreshTable()

	if len(update.Errors) > 0 {
		fields := make([]string, 0, len(update.Errors))
		for field := range update.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		m.setStatus(statusWarning, "Saved, but could not compute "+strings.Join(fields, ", "))
		return m
	}

	var others []string
	for _, field := range update.Changed {
		if field != msg.field {
			others = append(others, field)
		}
	}
	switch {
	case len(update.Changed) == 0:
		m.setStatus(statusInfo, "No change")
	case len(others) == 0:
		m.setStatus(statusSuccess, "Saved "+msg.field)
	default:
		m.setStatus(statusSuccess, fmt.Sprintf("Saved %s, updated %s", msg.field, strings.Join(others, ", ")))
	}
	return m
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
	if kind != statusError {
		m.lastError = nil
	}
}

func (m *Model) setError(err error) {
	m.lastError = err
	m.statusKind = statusError
	m.status = err.Error()
}

func (m Model) sheet() model.Sheet {
	return m.sheets[m.sheetIndex]
}

func (m Model) rowCount() int {
	if m.sheet().ReadOnly() {
		return len(m.summaries)
	}
	return len(m.rows)
}

func (m Model) currentRow() *model.Row {
	if m.sheet().ReadOnly() {
		return nil
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return &m.rows[i]
}

func (m Model) currentRowID() string {
	if row := m.currentRow(); row != nil {
		return row.ID
	}
	return ""
}

// resize fits the table between the tab bar and the footer.
func (m *Model) resize() {
	footer := 4
	if m.help.ShowAll {
		footer += 4
	}
	m.table.SetWidth(max(m.width-2, 20))
	m.table.SetHeight(max(m.height-footer-4, 3))
	m.help.Width = m.width
}
