// Package backup writes and restores complete JSON snapshots of the ledger.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	json "github.com/bytedance/sonic"
)

// Version is the snapshot format written by Export.
const Version = 1

var (
	// ErrUnsupportedVersion is returned for snapshots from a newer format.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	// ErrInvalidSnapshot is returned when a snapshot fails validation.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Snapshot is the on-disk form of the whole ledger.
type Snapshot struct {
	ExportedAt time.Time       `json:"exported_at"`
	Rows       []RowRecord     `json:"rows"`
	Formulas   []FormulaRecord `json:"formulas"`
	Summaries  []SummaryRecord `json:"summaries"`
	Version    int             `json:"version"`
}

// RowRecord is a ledger row in a snapshot.
type RowRecord struct {
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Cells     map[string]string `json:"cells"`
	ID        string            `json:"id"`
	Sheet     string            `json:"sheet"`
	Position  int               `json:"position"`
}

// FormulaRecord is a formula override in a snapshot.
type FormulaRecord struct {
	UpdatedAt  time.Time `json:"updated_at"`
	Sheet      string    `json:"sheet"`
	Field      string    `json:"field"`
	Expression string    `json:"expression"`
}

// SummaryRecord is a dashboard row in a snapshot.
type SummaryRecord struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Cells     map[string]string `json:"cells"`
	Date      string            `json:"date"`
}

// Collect reads the whole ledger into a snapshot.
func Collect(ctx context.Context, q service.Queries, now time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		Version:    Version,
		ExportedAt: now.UTC(),
		Rows:       []RowRecord{},
		Formulas:   []FormulaRecord{},
		Summaries:  []SummaryRecord{},
	}

	for _, sheet := range model.EditableSheets() {
		rows, err := q.GetRows(ctx, sheet.Kind)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s rows: %w", sheet.Kind, err)
		}
		for _, row := range rows {
			snap.Rows = append(snap.Rows, RowRecord{
				ID:        row.ID,
				Sheet:     string(row.Sheet),
				Position:  row.Position,
				Cells:     row.Cells,
				CreatedAt: row.CreatedAt,
				UpdatedAt: row.UpdatedAt,
			})
		}
	}

	formulas, err := q.GetAllFormulas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read formulas: %w", err)
	}
	for _, f := range formulas {
		snap.Formulas = append(snap.Formulas, FormulaRecord{
			Sheet:      string(f.Sheet),
			Field:      f.Field,
			Expression: f.Expression,
			UpdatedAt:  f.UpdatedAt,
		})
	}

	summaries, err := q.GetSummaries(ctx, service.DateRange{})
	if err != nil {
		return nil, fmt.Errorf("failed to read summaries: %w", err)
	}
	for _, s := range summaries {
		snap.Summaries = append(snap.Summaries, SummaryRecord{
			Date:      s.Date,
			Cells:     s.Cells,
			UpdatedAt: s.UpdatedAt,
		})
	}

	return snap, nil
}

// Export writes the whole ledger as indented JSON.
func Export(ctx context.Context, q service.Queries, w io.Writer, now time.Time) (*Snapshot, error) {
	snap, err := Collect(ctx, q, now)
	if err != nil {
		return nil, err
	}

	data, err := json.ConfigStd.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return snap, nil
}

// Decode reads and validates a snapshot.
func Decode(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks versions, sheets, fields and row IDs before anything is
// written.
func (s *Snapshot) Validate() error {
	if s.Version < 1 || s.Version > Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}

	seen := make(map[string]bool, len(s.Rows))
	for _, row := range s.Rows {
		if row.ID == "" {
			return fmt.Errorf("%w: row without id", ErrInvalidSnapshot)
		}
		if seen[row.ID] {
			return fmt.Errorf("%w: duplicate row id %s", ErrInvalidSnapshot, row.ID)
		}
		seen[row.ID] = true

		sheet, err := model.LookupSheet(model.SheetKind(row.Sheet))
		if err != nil || sheet.ReadOnly() {
			return fmt.Errorf("%w: row %s has sheet %q", ErrInvalidSnapshot, row.ID, row.Sheet)
		}
		for field := range row.Cells {
			if _, ok := sheet.Column(field); !ok {
				return fmt.Errorf("%w: row %s has unknown field %q", ErrInvalidSnapshot, row.ID, field)
			}
		}
	}

	for _, f := range s.Formulas {
		sheet, err := model.LookupSheet(model.SheetKind(f.Sheet))
		if err != nil {
			return fmt.Errorf("%w: formula on sheet %q", ErrInvalidSnapshot, f.Sheet)
		}
		col, ok := sheet.Column(f.Field)
		if !ok || !col.Computed {
			return fmt.Errorf("%w: %s.%s is not a computed column", ErrInvalidSnapshot, f.Sheet, f.Field)
		}
	}

	for _, summary := range s.Summaries {
		if _, err := time.Parse(model.DateLayout, summary.Date); err != nil {
			return fmt.Errorf("%w: summary date %q", ErrInvalidSnapshot, summary.Date)
		}
	}
	return nil
}

// Import replaces every row, formula and summary with the snapshot's
// contents in a single transaction.
func Import(ctx context.Context, storage service.Storage, r io.Reader) (*Snapshot, error) {
	snap, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if err := Restore(ctx, storage, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore writes a validated snapshot over the current ledger.
func Restore(ctx context.Context, storage service.Storage, snap *Snapshot) (err error) {
	tx, err := storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.ResetLedger(ctx); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}

	rows := make([]RowRecord, len(snap.Rows))
	copy(rows, snap.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Sheet != rows[j].Sheet {
			return rows[i].Sheet < rows[j].Sheet
		}
		return rows[i].Position < rows[j].Position
	})

	for _, rec := range rows {
		sheet, _ := model.LookupSheet(model.SheetKind(rec.Sheet))
		row := &model.Row{
			ID:        rec.ID,
			Sheet:     sheet.Kind,
			Position:  rec.Position,
			Cells:     rec.Cells,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
		if err = tx.InsertRow(ctx, row); err != nil {
			return fmt.Errorf("failed to restore row %s: %w", rec.ID, err)
		}
	}

	for _, rec := range snap.Formulas {
		sheet, _ := model.LookupSheet(model.SheetKind(rec.Sheet))
		if err = tx.SaveFormula(ctx, &model.Formula{
			Sheet:      sheet.Kind,
			Field:      rec.Field,
			Expression: rec.Expression,
			UpdatedAt:  rec.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("failed to restore formula %s.%s: %w", rec.Sheet, rec.Field, err)
		}
	}

	for _, rec := range snap.Summaries {
		if err = tx.SaveSummary(ctx, &model.DailySummary{
			Date:      rec.Date,
			Cells:     rec.Cells,
			UpdatedAt: rec.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("failed to restore summary %s: %w", rec.Date, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit restore: %w", err)
	}
	return nil
}
