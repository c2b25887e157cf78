package ledger

import (
	"context"
	"sort"

	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/shopspring/decimal"
)

// aggregate names a dashboard input and the sheet column it totals.
type aggregate struct {
	target string
	sheet  model.SheetKind
	field  string
}

var aggregates = []aggregate{
	{target: "ae_income", sheet: model.SheetAE, field: "net"},
	{target: "aeqt_income", sheet: model.SheetAEQT, field: "net"},
	{target: "exchanged_usdt", sheet: model.SheetExchange, field: "usdt"},
	{target: "exchanged_vnd", sheet: model.SheetExchange, field: "vnd"},
	{target: "withdrawn", sheet: model.SheetWithdraw, field: "received"},
	{target: "expenses", sheet: model.SheetExpense, field: "amount"},
}

// Totals sums the dashboard inputs over rows. Blank cells count as zero.
func Totals(rows []model.Row) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal, len(aggregates))
	for _, agg := range aggregates {
		totals[agg.target] = decimal.Zero
	}
	for _, row := range rows {
		for _, agg := range aggregates {
			if row.Sheet != agg.sheet {
				continue
			}
			raw := row.Get(agg.field)
			if raw == "" {
				continue
			}
			d, err := decimal.NewFromString(raw)
			if err != nil {
				continue
			}
			totals[agg.target] = totals[agg.target].Add(d)
		}
	}
	return totals
}

// refreshSummary recomputes the dashboard row of date. When no row carries
// the date any more the summary is deleted and nil is returned.
func (s *Service) refreshSummary(ctx context.Context, q service.Queries, date string) (*model.DailySummary, error) {
	rows, err := q.GetRowsByDate(ctx, service.DateRange{From: date, To: date})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if err := q.DeleteSummary(ctx, date); err != nil {
			return nil, err
		}
		return nil, nil
	}

	dashboard, err := model.LookupSheet(model.SheetDashboard)
	if err != nil {
		return nil, err
	}
	scales := dashboard.Scales()

	cells := map[string]string{model.FieldDate: date}
	for target, total := range Totals(rows) {
		cells[target] = total.Round(scales[target]).String()
	}

	set, err := s.formulaSet(ctx, q, dashboard)
	if err != nil {
		return nil, err
	}
	holder := &model.Row{Sheet: model.SheetDashboard, Cells: cells}
	evalErrs, err := applyFormulas(dashboard, set, holder)
	if err != nil {
		return nil, err
	}
	for target, evalErr := range evalErrs {
		s.logger.Warn("Dashboard formula failed", "date", date, "field", target, "error", evalErr)
	}

	summary := &model.DailySummary{
		Date:      date,
		Cells:     holder.Cells,
		UpdatedAt: s.now().UTC(),
	}
	if err := q.SaveSummary(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// Summary returns the dashboard row of a day. The date may be typed in any
// accepted date form.
func (s *Service) Summary(ctx context.Context, date string) (*model.DailySummary, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	return s.storage.GetSummary(ctx, day)
}

// Summaries returns the dashboard rows between from and to inclusive.
// Empty bounds are open.
func (s *Service) Summaries(ctx context.Context, from, to string) ([]model.DailySummary, error) {
	dates, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	return s.storage.GetSummaries(ctx, dates)
}

// Split is one participant's portion of shared income.
type Split struct {
	Name  string
	Total decimal.Decimal
	Rows  int
}

// Splits credits every participant listed in the chia column of AE and
// AE-QT rows with that row's share, totalled per name and sorted by name.
func (s *Service) Splits(ctx context.Context, from, to string) ([]Split, error) {
	dates, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	rows, err := s.storage.GetRowsByDate(ctx, dates)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Split)
	for _, row := range rows {
		if row.Sheet != model.SheetAE && row.Sheet != model.SheetAEQT {
			continue
		}
		share, err := decimal.NewFromString(row.Get(model.FieldShare))
		if err != nil {
			continue
		}
		for _, name := range model.ParseNames(row.Get(model.FieldChia)) {
			split, ok := byName[name]
			if !ok {
				split = &Split{Name: name}
				byName[name] = split
			}
			split.Total = split.Total.Add(share)
			split.Rows++
		}
	}

	splits := make([]Split, 0, len(byName))
	for _, split := range byName {
		splits = append(splits, *split)
	}
	sort.Slice(splits, func(i, j int) bool {
		return splits[i].Name < splits[j].Name
	})
	return splits, nil
}

func parseRange(from, to string) (service.DateRange, error) {
	var dates service.DateRange
	var err error
	if from != "" {
		if dates.From, err = ParseDate(from); err != nil {
			return dates, err
		}
	}
	if to != "" {
		if dates.To, err = ParseDate(to); err != nil {
			return dates, err
		}
	}
	return dates, nil
}
