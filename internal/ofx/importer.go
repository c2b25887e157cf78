package ofx

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/Veraticus/cashbook/internal/model"
)

// Progress receives one tick per processed entry; progressbar.ProgressBar
// satisfies it.
type Progress interface {
	Add(n int) error
}

// Result counts what an import did.
type Result struct {
	Expenses    int
	Withdrawals int
	Credits     int
	Duplicates  int
}

// Total returns the number of rows added to the ledger.
func (r Result) Total() int {
	return r.Expenses + r.Withdrawals
}

var (
	fitIDPattern = regexp.MustCompile(`\[ofx:([^\]]+)\]`)
	cashPattern  = regexp.MustCompile(`(?i)\b(ATM|CASH|RUT TIEN|RÚT TIỀN)\b`)
)

// Importer books statement entries into the ledger. Debits become expense
// rows, ATM and cash debits become withdraw rows, and credits are skipped.
// Each booked row carries its FITID in the note so re-imports are skipped.
type Importer struct {
	ledger   *ledger.Service
	logger   *slog.Logger
	location *time.Location
}

// NewImporter creates an importer writing through svc.
func NewImporter(svc *ledger.Service, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		ledger:   svc,
		logger:   logger,
		location: ledger.DefaultLocation(),
	}
}

// WithLocation sets the zone posting times are converted to before taking
// their date.
func (i *Importer) WithLocation(loc *time.Location) *Importer {
	if loc != nil {
		i.location = loc
	}
	return i
}

// Import books entries in order. progress may be nil.
func (i *Importer) Import(ctx context.Context, entries []Entry, progress Progress) (Result, error) {
	var result Result
	if err := ctx.Err(); err != nil {
		return result, err
	}

	seen, err := i.importedIDs(ctx)
	if err != nil {
		return result, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		kind, cells, ok := i.cellsFor(entry)
		switch {
		case !ok:
			result.Credits++
		case entry.FitID != "" && seen[entry.FitID]:
			result.Duplicates++
		default:
			update, err := i.ledger.AppendRow(ctx, kind, cells)
			if err != nil {
				return result, fmt.Errorf("failed to import %s: %w", entry.FitID, err)
			}
			for field, evalErr := range update.Errors {
				i.logger.Warn("Imported row has a formula error", "fitid", entry.FitID, "field", field, "error", evalErr)
			}
			if entry.FitID != "" {
				seen[entry.FitID] = true
			}
			if kind == model.SheetWithdraw {
				result.Withdrawals++
			} else {
				result.Expenses++
			}
		}

		if progress != nil {
			_ = progress.Add(1)
		}
	}

	i.logger.Info("OFX import completed",
		"expenses", result.Expenses,
		"withdrawals", result.Withdrawals,
		"credits_skipped", result.Credits,
		"duplicates", result.Duplicates)
	return result, nil
}

// cellsFor maps a debit to the sheet and raw cells it is booked as.
func (i *Importer) cellsFor(entry Entry) (model.SheetKind, map[string]string, bool) {
	if !entry.IsDebit() {
		return "", nil, false
	}

	date := entry.Date.In(i.location).Format(model.DateLayout)
	amount := entry.Amount.Abs().String()
	note := noteFor(entry)

	if isCashWithdrawal(entry) {
		return model.SheetWithdraw, map[string]string{
			model.FieldDate: date,
			"amount":        amount,
			"fee":           "0",
			model.FieldNote: note,
		}, true
	}

	item := entry.Payee
	if item == "" {
		item = entry.Memo
	}
	return model.SheetExpense, map[string]string{
		model.FieldDate: date,
		"item":          item,
		"amount":        amount,
		model.FieldNote: note,
	}, true
}

func noteFor(entry Entry) string {
	var parts []string
	if entry.Memo != "" && entry.Memo != entry.Payee {
		parts = append(parts, entry.Memo)
	}
	if entry.FitID != "" {
		parts = append(parts, "[ofx:"+entry.FitID+"]")
	}
	return strings.Join(parts, " ")
}

func isCashWithdrawal(entry Entry) bool {
	switch entry.Type {
	case "ATM", "CASH":
		return true
	}
	return cashPattern.MatchString(entry.Payee) || cashPattern.MatchString(entry.Memo)
}

// importedIDs collects the FITIDs already present in expense and withdraw notes.
func (i *Importer) importedIDs(ctx context.Context) (map[string]bool, error) {
	seen := make(map[string]bool)
	for _, kind := range []model.SheetKind{model.SheetExpense, model.SheetWithdraw} {
		rows, err := i.ledger.Rows(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			for _, match := range fitIDPattern.FindAllStringSubmatch(row.Get(model.FieldNote), -1) {
				seen[match[1]] = true
			}
		}
	}
	return seen, nil
}
