package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/rates"
	"github.com/Veraticus/cashbook/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeRates struct {
	err   error
	quote rates.Quote
}

func (f *fakeRates) Current(context.Context) (rates.Quote, error) {
	return f.quote, f.err
}

type testServer struct {
	router *gin.Engine
	ledger *ledger.Service
	rates  *fakeRates
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	svc := ledger.New(db.Storage, ledger.WithClock(func() time.Time {
		return time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)
	}))
	fr := &fakeRates{quote: rates.Quote{
		Asset:     "USDT",
		Fiat:      "VND",
		Price:     decimal.RequireFromString("25950"),
		Source:    "binance-p2p",
		FetchedAt: time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC),
	}}
	return &testServer{
		router: SetupRouter(NewAPI(svc, db.Storage, fr), nil),
		ledger: svc,
		rates:  fr,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "health", w.Body.String())
}

func TestGetRate(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/rate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	quote := decode[map[string]any](t, w)
	assert.Equal(t, "25950", quote["price"])
	assert.Equal(t, "binance-p2p", quote["source"])
	assert.Equal(t, false, quote["stale"])

	t.Run("preflight", func(t *testing.T) {
		w := s.do(t, http.MethodOptions, "/api/rate", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unavailable", func(t *testing.T) {
		s.rates.err = fmt.Errorf("%w: all sources down", common.ErrRateUnavailable)
		w := s.do(t, http.MethodGet, "/api/rate", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRowLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/sheets/ae/rows", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[updateJSON](t, w)
	rowID := created.Row.ID
	require.NotEmpty(t, rowID)

	value := func(v string) map[string]any { return map[string]any{"value": v} }
	base := "/api/v1/sheets/ae/rows/" + rowID + "/cells/"

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, base+"usdt", value("100")).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, base+"rate", value("25.950")).Code)

	w = s.do(t, http.MethodPut, base+"fee", value("5.000"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	update := decode[updateJSON](t, w)
	assert.Equal(t, "2024-03-10", update.Row.Cells["date"])
	assert.Equal(t, "2595", update.Row.Cells["vnd"], "a single dot is a decimal point")
	assert.Equal(t, []string{"fee", "net", "share"}, update.Changed)
	require.Len(t, update.Summaries, 1)

	t.Run("computed column is rejected", func(t *testing.T) {
		w := s.do(t, http.MethodPut, base+"vnd", value("1"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("invalid number is rejected", func(t *testing.T) {
		w := s.do(t, http.MethodPut, base+"usdt", value("abc"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("missing value is a bad request", func(t *testing.T) {
		w := s.do(t, http.MethodPut, base+"usdt", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field, row and sheet", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, base+"tip", value("1")).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/v1/sheets/ae/rows/nope/cells/usdt", value("1")).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/sheets/savings/rows", nil).Code)
	})

	t.Run("dashboard is read-only", func(t *testing.T) {
		assert.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPost, "/api/v1/sheets/dashboard/rows", nil).Code)
	})

	w = s.do(t, http.MethodGet, "/api/v1/sheets/ae/rows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode[[]rowJSON](t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, "100", rows[0].Cells["usdt"])

	w = s.do(t, http.MethodGet, "/api/v1/sheets/dashboard/rows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]summaryJSON](t, w), 1)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/sheets/ae/rows/"+rowID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/sheets/ae/rows/"+rowID, nil).Code)
}

func TestInsertRowWithCells(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/sheets/exchange/rows", map[string]any{
		"cells": map[string]string{"usdt": "250,5", "rate": "25400"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	update := decode[updateJSON](t, w)
	assert.Equal(t, "6362700", update.Row.Cells["vnd"])

	w = s.do(t, http.MethodPost, "/api/v1/sheets/exchange/rows", map[string]any{
		"position": 0,
		"cells":    map[string]string{"usdt": "nope"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	rows, err := s.ledger.Rows(context.Background(), model.SheetExchange)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "a failed fill does not leave a blank row behind")
}

func TestFormulaRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/sheets/withdraw/formulas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	formulas := decode[[]formulaJSON](t, w)
	require.Len(t, formulas, 1)
	assert.Equal(t, "amount - fee", formulas[0].Expression)
	assert.True(t, formulas[0].IsDefault)

	w = s.do(t, http.MethodPut, "/api/v1/sheets/withdraw/formulas/received", map[string]any{"expression": "amount - fee - 1000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"is_default":false`)

	tests := []struct {
		name string
		path string
		expr string
		code int
	}{
		{"syntax error", "/api/v1/sheets/withdraw/formulas/received", "amount -", http.StatusUnprocessableEntity},
		{"unknown variable", "/api/v1/sheets/withdraw/formulas/received", "amount - tip", http.StatusUnprocessableEntity},
		{"input column", "/api/v1/sheets/withdraw/formulas/amount", "1", http.StatusUnprocessableEntity},
		{"unknown column", "/api/v1/sheets/withdraw/formulas/bonus", "1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPut, tt.path, map[string]any{"expression": tt.expr})
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	w = s.do(t, http.MethodDelete, "/api/v1/sheets/withdraw/formulas/received", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_default":true`)

	w = s.do(t, http.MethodPost, "/api/v1/sheets/withdraw/recalculate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSummariesAndSplits(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, date := range []string{"2024-03-09", "2024-03-10"} {
		_, err := s.ledger.AppendRow(ctx, model.SheetAE, map[string]string{
			"date": date, "usdt": "100", "rate": "25000", "fee": "0", "chia": "An, Binh",
		})
		require.NoError(t, err)
	}

	w := s.do(t, http.MethodGet, "/api/v1/summaries?from=2024-03-10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summaries := decode[[]summaryJSON](t, w)
	require.Len(t, summaries, 1)
	assert.Equal(t, "2500000", summaries[0].Cells["income"])

	w = s.do(t, http.MethodGet, "/api/v1/splits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	splits := decode[[]splitJSON](t, w)
	require.Len(t, splits, 2)
	assert.Equal(t, "An", splits[0].Name)
	assert.Equal(t, "2500000", splits[0].Total)
	assert.Equal(t, 2, splits[0].Rows)

	w = s.do(t, http.MethodGet, "/api/v1/summaries?from=yesterday", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	_, err := s.ledger.AppendRow(context.Background(), model.SheetExpense, map[string]string{
		"item": "Cafe", "amount": "45000",
	})
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/v1/export/csv?sheet=expense", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cashbook-expense-")
	assert.True(t, strings.HasSuffix(w.Body.String(), "2024-03-10,Cafe,45000,\n"))

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/export/csv", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/export/pdf", nil).Code)

	w = s.do(t, http.MethodGet, "/api/v1/export/xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Len(t, f.GetSheetList(), len(model.Sheets()))
}

func TestListSheets(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/sheets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sheets := decode[[]sheetJSON](t, w)
	require.Len(t, sheets, len(model.Sheets()))
	assert.True(t, sheets[len(sheets)-1].ReadOnly)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(common.ErrNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fmt.Errorf("x: %w", ledger.ErrInvalidValue)))
	assert.Equal(t, http.StatusBadGateway, statusFor(common.ErrRateUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
