package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Veraticus/cashbook/internal/export"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSheets implements the handful of Sheets endpoints the writer calls.
type fakeSheets struct {
	tabs        map[string]int64
	values      map[string][][]any
	cleared     []string
	requests    []*sheets.Request
	created     int
	failWrites  int
	failStatus  int
	nextSheetID int64
	mu          sync.Mutex
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		tabs:        make(map[string]int64),
		values:      make(map[string][][]any),
		nextSheetID: 100,
	}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets")
	switch {
	case r.Method == http.MethodPost && path == "":
		var req sheets.Spreadsheet
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.created++
		for _, sheet := range req.Sheets {
			f.addTab(sheet.Properties.Title)
		}
		f.reply(w, f.spreadsheet("created-id"))

	case strings.HasSuffix(path, ":batchUpdate"):
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := &sheets.BatchUpdateSpreadsheetResponse{}
		for _, request := range req.Requests {
			f.requests = append(f.requests, request)
			reply := &sheets.Response{}
			if request.AddSheet != nil {
				id := f.addTab(request.AddSheet.Properties.Title)
				reply.AddSheet = &sheets.AddSheetResponse{
					Properties: &sheets.SheetProperties{Title: request.AddSheet.Properties.Title, SheetId: id},
				}
			}
			resp.Replies = append(resp.Replies, reply)
		}
		f.reply(w, resp)

	case strings.Contains(path, "/values/") && strings.HasSuffix(path, ":clear"):
		title := rangeTitle(strings.TrimSuffix(path, ":clear"))
		f.cleared = append(f.cleared, title)
		delete(f.values, title)
		f.reply(w, &sheets.ClearValuesResponse{})

	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		if f.failWrites > 0 {
			f.failWrites--
			w.WriteHeader(f.failStatus)
			_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"try again"}}`, f.failStatus)
			return
		}
		var req sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&req)
		title := rangeTitle(path)
		f.values[title] = append(f.values[title], req.Values...)
		f.reply(w, &sheets.UpdateValuesResponse{})

	case r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/")
		if id != "existing-id" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
			return
		}
		f.reply(w, f.spreadsheet(id))

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeSheets) addTab(title string) int64 {
	f.nextSheetID++
	f.tabs[title] = f.nextSheetID
	return f.nextSheetID
}

func (f *fakeSheets) spreadsheet(id string) *sheets.Spreadsheet {
	s := &sheets.Spreadsheet{SpreadsheetId: id}
	for title, sheetID := range f.tabs {
		s.Sheets = append(s.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{Title: title, SheetId: sheetID},
		})
	}
	return s
}

func (f *fakeSheets) reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// rangeTitle extracts the tab title from ".../values/'Title'!A1".
func rangeTitle(path string) string {
	rng := path[strings.Index(path, "/values/")+len("/values/"):]
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[:i]
	}
	rng = strings.TrimSuffix(strings.TrimPrefix(rng, "'"), "'")
	return strings.ReplaceAll(rng, "''", "'")
}

func newTestWriter(t *testing.T, fake *fakeSheets, config Config) *Writer {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	require.NoError(t, err)
	return NewWriterWithService(srv, config, slog.Default())
}

func testTables(t *testing.T) []export.Table {
	t.Helper()
	expense, err := model.LookupSheet(model.SheetExpense)
	require.NoError(t, err)
	dashboard, err := model.LookupSheet(model.SheetDashboard)
	require.NoError(t, err)
	return []export.Table{
		{Sheet: expense, Rows: [][]string{
			{"2024-03-10", "Cafe", "45000", ""},
			{"2024-03-11", "Taxi", "120000", "airport"},
		}},
		{Sheet: dashboard, Rows: [][]string{
			{"2024-03-10", "0", "0", "0", "0", "0", "0", "45000", "-45000"},
		}},
	}
}

func TestWriter_PushCreatesSpreadsheet(t *testing.T) {
	fake := newFakeSheets()
	config := DefaultConfig()
	w := newTestWriter(t, fake, config)

	id, err := w.Push(context.Background(), "", testTables(t))
	require.NoError(t, err)
	assert.Equal(t, "created-id", id)
	assert.Equal(t, 1, fake.created)

	assert.ElementsMatch(t, []string{"Chi tiêu", "Tổng hợp"}, fake.cleared)
	rows := fake.values["Chi tiêu"]
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"Ngày", "Khoản chi", "Số tiền", "Ghi chú"}, rows[0])
	assert.Equal(t, []any{"2024-03-11", "Taxi", "120000", "airport"}, rows[2])

	var frozen, numberFormats int
	for _, req := range fake.requests {
		if req.UpdateSheetProperties != nil {
			frozen++
		}
		if req.RepeatCell != nil && req.RepeatCell.Cell.UserEnteredFormat.NumberFormat != nil {
			numberFormats++
		}
	}
	assert.Equal(t, 2, frozen, "one frozen header per tab")
	assert.Equal(t, 1+8, numberFormats, "expense amount plus the dashboard's number columns")
}

func TestWriter_PushAddsMissingTabs(t *testing.T) {
	fake := newFakeSheets()
	fake.addTab("Chi tiêu")
	config := DefaultConfig()
	config.EnableFormatting = false
	w := newTestWriter(t, fake, config)

	id, err := w.Push(context.Background(), "existing-id", testTables(t))
	require.NoError(t, err)
	assert.Equal(t, "existing-id", id)
	assert.Zero(t, fake.created)

	require.Len(t, fake.requests, 1, "only the missing dashboard tab is added")
	assert.Equal(t, "Tổng hợp", fake.requests[0].AddSheet.Properties.Title)
	assert.Len(t, fake.values["Tổng hợp"], 2)
}

func TestWriter_PushBatches(t *testing.T) {
	fake := newFakeSheets()
	config := DefaultConfig()
	config.BatchSize = 2
	config.EnableFormatting = false
	w := newTestWriter(t, fake, config)

	_, err := w.Push(context.Background(), "", testTables(t))
	require.NoError(t, err)
	assert.Len(t, fake.values["Chi tiêu"], 3, "header and two rows across two batches")
}

func TestWriter_PushRetriesServerErrors(t *testing.T) {
	fake := newFakeSheets()
	fake.failWrites = 1
	fake.failStatus = http.StatusServiceUnavailable
	config := DefaultConfig()
	config.RetryDelay = 0
	config.EnableFormatting = false
	w := newTestWriter(t, fake, config)

	_, err := w.Push(context.Background(), "", testTables(t))
	require.NoError(t, err)
	assert.Len(t, fake.values["Chi tiêu"], 3)
}

func TestWriter_PushUnknownSpreadsheet(t *testing.T) {
	fake := newFakeSheets()
	config := DefaultConfig()
	config.RetryAttempts = 3
	w := newTestWriter(t, fake, config)

	_, err := w.Push(context.Background(), "missing-id", testTables(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-id")
	assert.NotContains(t, err.Error(), "after 3 attempts", "client errors are not retried")
}

func TestQuoteTitle(t *testing.T) {
	assert.Equal(t, "'Đổi tiền'", quoteTitle("Đổi tiền"))
	assert.Equal(t, "'It''s'", quoteTitle("It's"))
	assert.Equal(t, "It's", rangeTitle("/x/values/'It''s'!A1"))
}

func TestNumberPattern(t *testing.T) {
	assert.Equal(t, "#,##0", numberPattern(0))
	assert.Equal(t, "#,##0.0000", numberPattern(4))
}
