// Package ledger applies cell edits to ledger sheets and cascades their
// effects: date auto-fill, formula recalculation and daily summaries.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/formula"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/google/uuid"
)

// DefaultTimezone is the zone used for auto-filled dates.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

// Update describes the outcome of an edit.
type Update struct {
	Row       *model.Row
	Errors    map[string]error
	Changed   []string
	Summaries []model.DailySummary
}

// Service edits ledger rows and keeps computed fields and summaries current.
type Service struct {
	storage  service.Storage
	engine   *formula.Engine
	now      func() time.Time
	newID    func() string
	location *time.Location
	logger   *slog.Logger
	mu       sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used for auto-filled dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the zone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator sets how new row IDs are made.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// New creates a ledger service.
func New(storage service.Storage, opts ...Option) *Service {
	s := &Service{
		storage:  storage,
		engine:   formula.NewEngine(),
		now:      time.Now,
		newID:    uuid.NewString,
		location: DefaultLocation(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultLocation returns the Vietnam time zone, falling back to a fixed
// UTC+7 offset when the zone database is unavailable.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// Today returns the current date in the service's zone.
func (s *Service) Today() string {
	return s.now().In(s.location).Format(model.DateLayout)
}

// Engine exposes the formula engine, for callers that preview formulas.
func (s *Service) Engine() *formula.Engine {
	return s.engine
}

// withTx serializes ledger mutations and runs fn in a storage transaction.
func (s *Service) withTx(ctx context.Context, fn func(tx service.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Rows returns a sheet's rows in display order.
func (s *Service) Rows(ctx context.Context, kind model.SheetKind) ([]model.Row, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return nil, err
	}
	if sheet.ReadOnly() {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlySheet, sheet.Kind)
	}
	return s.storage.GetRows(ctx, sheet.Kind)
}

// InsertRow adds an empty row at position at, shifting later rows down.
// A negative or out-of-range position appends.
func (s *Service) InsertRow(ctx context.Context, kind model.SheetKind, at int) (*model.Row, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return nil, err
	}
	if sheet.ReadOnly() {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlySheet, sheet.Kind)
	}

	row := s.newRow(sheet, at)
	err = s.withTx(ctx, func(tx service.Transaction) error {
		return tx.InsertRow(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Inserted row", "sheet", sheet.Kind, "id", row.ID, "position", row.Position)
	return row, nil
}

// AppendRow adds a row at the end of a sheet with the given typed values
// and cascades them as SetCells would.
func (s *Service) AppendRow(ctx context.Context, kind model.SheetKind, raw map[string]string) (*Update, error) {
	return s.InsertRowWithCells(ctx, kind, -1, raw)
}

// InsertRowWithCells adds a row at position at, as InsertRow does, and
// applies the typed values in the same transaction. Invalid input leaves
// the sheet unchanged.
func (s *Service) InsertRowWithCells(ctx context.Context, kind model.SheetKind, at int, raw map[string]string) (*Update, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return nil, err
	}
	values, err := parseCells(sheet, raw)
	if err != nil {
		return nil, err
	}

	row := s.newRow(sheet, at)
	update := &Update{Row: row}
	err = s.withTx(ctx, func(tx service.Transaction) error {
		if err := tx.InsertRow(ctx, row); err != nil {
			return err
		}
		if len(values) == 0 {
			return nil
		}
		var applyErr error
		update, applyErr = s.applyCells(ctx, tx, sheet, row, values)
		return applyErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Inserted row", "sheet", sheet.Kind, "id", row.ID, "position", row.Position, "cells", len(values))
	return update, nil
}

// DeleteRow removes a row and refreshes the summary of its date.
func (s *Service) DeleteRow(ctx context.Context, kind model.SheetKind, id string) error {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return err
	}
	if sheet.ReadOnly() {
		return fmt.Errorf("%w: %s", ErrReadOnlySheet, sheet.Kind)
	}

	err = s.withTx(ctx, func(tx service.Transaction) error {
		row, err := loadRow(ctx, tx, sheet, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteRow(ctx, id); err != nil {
			return err
		}
		if date := row.Date(); date != "" {
			if _, err := s.refreshSummary(ctx, tx, date); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Deleted row", "sheet", sheet.Kind, "id", id)
	return nil
}

// SetCell stores typed input into one cell and cascades the change.
func (s *Service) SetCell(ctx context.Context, kind model.SheetKind, id, field, raw string) (*Update, error) {
	return s.SetCells(ctx, kind, id, map[string]string{field: raw})
}

// SetCells stores several typed inputs into one row as a single edit.
// Invalid input rejects the whole edit.
func (s *Service) SetCells(ctx context.Context, kind model.SheetKind, id string, raw map[string]string) (*Update, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return nil, err
	}
	values, err := parseCells(sheet, raw)
	if err != nil {
		return nil, err
	}

	var update *Update
	err = s.withTx(ctx, func(tx service.Transaction) error {
		row, err := loadRow(ctx, tx, sheet, id)
		if err != nil {
			return err
		}
		var applyErr error
		update, applyErr = s.applyCells(ctx, tx, sheet, row, values)
		return applyErr
	})
	if err != nil {
		return nil, err
	}
	return update, nil
}

// applyCells writes parsed values into row and runs the cascade: date
// auto-fill, formulas, save, then the summaries of the old and new dates.
func (s *Service) applyCells(ctx context.Context, q service.Queries, sheet model.Sheet, row *model.Row, values map[string]string) (*Update, error) {
	before := row.Clone()

	filled := false
	for _, col := range sheet.Columns {
		value, ok := values[col.Key]
		if !ok {
			continue
		}
		row.Set(col.Key, value)
		if col.Key != model.FieldDate && value != "" {
			filled = true
		}
	}
	if _, setsDate := values[model.FieldDate]; filled && !setsDate && row.Date() == "" {
		row.Set(model.FieldDate, s.Today())
	}

	set, err := s.formulaSet(ctx, q, sheet)
	if err != nil {
		return nil, err
	}
	evalErrs, err := applyFormulas(sheet, set, row)
	if err != nil {
		return nil, err
	}

	update := &Update{
		Row:     row,
		Changed: model.ChangedFields(before, row),
		Errors:  evalErrs,
	}
	if len(update.Changed) == 0 {
		return update, nil
	}

	row.UpdatedAt = s.now().UTC()
	if err := q.SaveRow(ctx, row); err != nil {
		return nil, err
	}

	for _, date := range affectedDates(before.Date(), row.Date()) {
		summary, err := s.refreshSummary(ctx, q, date)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			update.Summaries = append(update.Summaries, *summary)
		}
	}

	for target, evalErr := range evalErrs {
		s.logger.Warn("Formula evaluation failed",
			"sheet", sheet.Kind, "row", row.ID, "field", target, "error", evalErr)
	}
	s.logger.Debug("Updated row", "sheet", sheet.Kind, "id", row.ID, "changed", update.Changed)
	return update, nil
}

// Recalculate re-resolves every row of a sheet against its current
// formulas and refreshes the affected summaries. For the dashboard it
// rebuilds every summary. It returns the number of rows rewritten.
func (s *Service) Recalculate(ctx context.Context, kind model.SheetKind) (int, error) {
	sheet, err := model.LookupSheet(kind)
	if err != nil {
		return 0, err
	}

	var changed int
	err = s.withTx(ctx, func(tx service.Transaction) error {
		var recalcErr error
		if sheet.ReadOnly() {
			changed, recalcErr = s.rebuildSummaries(ctx, tx)
			return recalcErr
		}
		changed, recalcErr = s.recalculate(ctx, tx, sheet)
		return recalcErr
	})
	return changed, err
}

// RebuildSummaries recomputes the summary of every dated day and drops
// summaries of days that no longer have rows.
func (s *Service) RebuildSummaries(ctx context.Context) (int, error) {
	var count int
	err := s.withTx(ctx, func(tx service.Transaction) error {
		var rebuildErr error
		count, rebuildErr = s.rebuildSummaries(ctx, tx)
		return rebuildErr
	})
	return count, err
}

func (s *Service) recalculate(ctx context.Context, q service.Queries, sheet model.Sheet) (int, error) {
	set, err := s.formulaSet(ctx, q, sheet)
	if err != nil {
		return 0, err
	}
	rows, err := q.GetRows(ctx, sheet.Kind)
	if err != nil {
		return 0, err
	}

	dates := make(map[string]bool)
	changed := 0
	for i := range rows {
		row := &rows[i]
		before := row.Clone()
		if _, err := applyFormulas(sheet, set, row); err != nil {
			return 0, err
		}
		if len(model.ChangedFields(before, row)) == 0 {
			continue
		}
		row.UpdatedAt = s.now().UTC()
		if err := q.SaveRow(ctx, row); err != nil {
			return 0, err
		}
		changed++
		if date := row.Date(); date != "" {
			dates[date] = true
		}
	}

	for _, date := range sortedKeys(dates) {
		if _, err := s.refreshSummary(ctx, q, date); err != nil {
			return 0, err
		}
	}

	s.logger.Info("Recalculated sheet", "sheet", sheet.Kind, "rows", len(rows), "changed", changed)
	return changed, nil
}

func (s *Service) rebuildSummaries(ctx context.Context, q service.Queries) (int, error) {
	rows, err := q.GetRowsByDate(ctx, service.DateRange{})
	if err != nil {
		return 0, err
	}
	existing, err := q.GetSummaries(ctx, service.DateRange{})
	if err != nil {
		return 0, err
	}

	dates := make(map[string]bool)
	for _, row := range rows {
		dates[row.Date()] = true
	}
	for _, summary := range existing {
		dates[summary.Date] = true
	}

	keys := sortedKeys(dates)
	for _, date := range keys {
		if _, err := s.refreshSummary(ctx, q, date); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func (s *Service) newRow(sheet model.Sheet, at int) *model.Row {
	if at < 0 {
		at = math.MaxInt32
	}
	now := s.now().UTC()
	return &model.Row{
		ID:        s.newID(),
		Sheet:     sheet.Kind,
		Position:  at,
		Cells:     make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// loadRow fetches a row and checks it belongs to sheet.
func loadRow(ctx context.Context, q service.Queries, sheet model.Sheet, id string) (*model.Row, error) {
	row, err := q.GetRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.Sheet != sheet.Kind {
		return nil, fmt.Errorf("row %s on sheet %s: %w", id, sheet.Kind, common.ErrNotFound)
	}
	return row, nil
}

func affectedDates(before, after string) []string {
	var dates []string
	if after != "" {
		dates = append(dates, after)
	}
	if before != "" && before != after {
		dates = append(dates, before)
	}
	return dates
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsNotFound reports whether err means a sheet, row or field does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound) ||
		errors.Is(err, model.ErrUnknownSheet) ||
		errors.Is(err, ErrUnknownField)
}
