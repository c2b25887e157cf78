package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/export"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Pusher uploads ledger tables into a spreadsheet and returns its ID.
type Pusher interface {
	Push(ctx context.Context, spreadsheetID string, tables []export.Table) (string, error)
}

// Writer pushes ledger tables into same-named tabs of a spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWriterWithService(srv, config, logger), nil
}

// NewWriterWithService wraps an already configured Sheets client.
func NewWriterWithService(srv *sheets.Service, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Writer{
		config:  config,
		service: srv,
		logger:  logger,
	}
}

// Push writes every table into its tab, replacing previous contents. An
// empty spreadsheetID creates a new spreadsheet.
func (w *Writer) Push(ctx context.Context, spreadsheetID string, tables []export.Table) (string, error) {
	w.logger.Info("starting sheets push", "tables", len(tables))

	retryOpts := service.RetryOptions{
		MaxAttempts:  max(w.config.RetryAttempts, 1),
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	var tabs map[string]int64
	err := common.WithRetry(ctx, func() error {
		var openErr error
		spreadsheetID, tabs, openErr = w.getOrCreateSpreadsheet(ctx, spreadsheetID, tables)
		return classifyError(openErr)
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	if err := w.ensureTabs(ctx, spreadsheetID, tables, tabs); err != nil {
		return "", fmt.Errorf("failed to create tabs: %w", err)
	}

	for _, table := range tables {
		values := tableValues(table)
		err := common.WithRetry(ctx, func() error {
			if clearErr := w.clearTab(ctx, spreadsheetID, table.Sheet.Title); clearErr != nil {
				return classifyError(clearErr)
			}
			return classifyError(w.writeData(ctx, spreadsheetID, table.Sheet.Title, values))
		}, retryOpts)
		if err != nil {
			return "", fmt.Errorf("failed to write %s: %w", table.Sheet.Title, err)
		}
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return classifyError(w.applyFormatting(ctx, spreadsheetID, tables, tabs))
		}, retryOpts)
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("sheets push completed", "spreadsheet_id", spreadsheetID)
	return spreadsheetID, nil
}

// classifyError stops retries on client errors other than throttling.
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
		return common.Permanent(err)
	}
	return err
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := oauthConfig(config.ClientID, config.ClientSecret, "")
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet returns the spreadsheet ID and its tab IDs by title.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context, spreadsheetID string, tables []export.Table) (string, map[string]int64, error) {
	if spreadsheetID != "" {
		existing, err := w.service.Spreadsheets.Get(spreadsheetID).
			Fields("spreadsheetId", "sheets.properties").
			Context(ctx).
			Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, err)
		}
		return existing.SpreadsheetId, tabIDs(existing), nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
	}
	for _, table := range tables {
		spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{Title: table.Sheet.Title},
		})
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, tabIDs(created), nil
}

func tabIDs(spreadsheet *sheets.Spreadsheet) map[string]int64 {
	tabs := make(map[string]int64, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			tabs[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}
	return tabs
}

// ensureTabs adds a tab for every table missing from the spreadsheet and
// records the new tab IDs in tabs.
func (w *Writer) ensureTabs(ctx context.Context, spreadsheetID string, tables []export.Table, tabs map[string]int64) error {
	var requests []*sheets.Request
	for _, table := range tables {
		if _, ok := tabs[table.Sheet.Title]; ok {
			continue
		}
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: table.Sheet.Title},
			},
		})
	}
	if len(requests) == 0 {
		return nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return err
	}

	for _, reply := range resp.Replies {
		if reply == nil || reply.AddSheet == nil || reply.AddSheet.Properties == nil {
			continue
		}
		props := reply.AddSheet.Properties
		tabs[props.Title] = props.SheetId
		w.logger.Debug("added tab", "title", props.Title, "sheet_id", props.SheetId)
	}
	return nil
}

// clearTab clears all data from a tab.
func (w *Writer) clearTab(ctx context.Context, spreadsheetID, title string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, quoteTitle(title), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func tableValues(table export.Table) [][]any {
	values := make([][]any, 0, len(table.Rows)+1)

	header := make([]any, 0, len(table.Sheet.Columns))
	for _, title := range table.Header() {
		header = append(header, title)
	}
	values = append(values, header)

	for _, row := range table.Rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		values = append(values, cells)
	}
	return values
}

// writeData writes values into a tab in batches of rows.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, title string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		batch := values[i:end]
		valueRange := &sheets.ValueRange{
			Values: batch,
		}

		rangeStr := fmt.Sprintf("%s!A%d", quoteTitle(title), i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()

		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "tab", title, "start_row", i+1, "rows", len(batch))
	}

	return nil
}

// applyFormatting bolds and freezes each tab's header and applies a
// grouped number format matching each number column's scale.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, tables []export.Table, tabs map[string]int64) error {
	var requests []*sheets.Request
	for _, table := range tables {
		sheetID, ok := tabs[table.Sheet.Title]
		if !ok {
			continue
		}
		requests = append(requests, tabFormatting(sheetID, table)...)
	}
	if len(requests) == 0 {
		return nil
	}

	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}

func tabFormatting(sheetID int64, table export.Table) []*sheets.Request {
	columns := int64(len(table.Sheet.Columns))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	for i, col := range table.Sheet.Columns {
		if col.Kind != model.ColumnNumber {
			continue
		}
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    1,
					StartColumnIndex: int64(i),
					EndColumnIndex:   int64(i + 1),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "NUMBER",
							Pattern: numberPattern(col.Scale),
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}

	requests = append(requests, &sheets.Request{
		AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "COLUMNS",
				StartIndex: 0,
				EndIndex:   columns,
			},
		},
	})
	return requests
}

func numberPattern(scale int32) string {
	if scale <= 0 {
		return "#,##0"
	}
	return "#,##0." + strings.Repeat("0", int(scale))
}

// quoteTitle renders a tab title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
