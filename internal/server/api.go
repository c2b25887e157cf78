package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/export"
	"github.com/Veraticus/cashbook/internal/formula"
	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/money"
	"github.com/Veraticus/cashbook/internal/rates"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/gin-gonic/gin"
)

// RateSource provides the current exchange rate.
type RateSource interface {
	Current(ctx context.Context) (rates.Quote, error)
}

// API holds the handlers.
type API struct {
	ledger  *ledger.Service
	storage service.Queries
	rates   RateSource
}

// NewAPI creates the handlers. rateSource may be nil, in which case
// /api/rate always answers 502.
func NewAPI(svc *ledger.Service, storage service.Queries, rateSource RateSource) *API {
	return &API{ledger: svc, storage: storage, rates: rateSource}
}

// SheetParams binds the sheet path segment.
type SheetParams struct {
	Sheet string `uri:"sheet" binding:"required"`
}

// RowParams binds a row of a sheet.
type RowParams struct {
	Sheet string `uri:"sheet" binding:"required"`
	RowID string `uri:"row_id" binding:"required"`
}

// CellParams binds one cell of a row.
type CellParams struct {
	Sheet string `uri:"sheet" binding:"required"`
	RowID string `uri:"row_id" binding:"required"`
	Field string `uri:"field" binding:"required"`
}

// FieldParams binds a column of a sheet.
type FieldParams struct {
	Sheet string `uri:"sheet" binding:"required"`
	Field string `uri:"field" binding:"required"`
}

// RangeQuery binds optional inclusive date bounds.
type RangeQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// InsertRowRequest inserts a row, optionally filling it in the same call.
type InsertRowRequest struct {
	Position *int              `json:"position"`
	Cells    map[string]string `json:"cells"`
}

// SetCellRequest sets one cell. An empty value clears it.
type SetCellRequest struct {
	Value *string `json:"value" binding:"required"`
}

// SetCellsRequest sets several cells of a row at once.
type SetCellsRequest struct {
	Cells map[string]string `json:"cells" binding:"required"`
}

// SetFormulaRequest replaces a computed column's expression.
type SetFormulaRequest struct {
	Expression string `json:"expression" binding:"required"`
}

// GetRateAction answers with the current quote.
func (api *API) GetRateAction(c *gin.Context) {
	if api.rates == nil {
		abortWithError(c, fmt.Errorf("%w: no rate source configured", common.ErrRateUnavailable))
		return
	}
	quote, err := api.rates.Current(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// ListSheetsAction describes every sheet and its columns.
func (api *API) ListSheetsAction(c *gin.Context) {
	sheets := model.Sheets()
	response := make([]sheetJSON, 0, len(sheets))
	for _, sheet := range sheets {
		response = append(response, newSheetJSON(sheet))
	}
	c.JSON(http.StatusOK, response)
}

// ListRowsAction lists a sheet's rows in order. The dashboard lists its
// daily summaries.
func (api *API) ListRowsAction(c *gin.Context) {
	params := SheetParams{}
	if !bindURI(c, &params) {
		return
	}

	sheet, err := model.LookupSheet(model.SheetKind(params.Sheet))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if sheet.ReadOnly() {
		summaries, err := api.ledger.Summaries(c.Request.Context(), "", "")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, newSummariesJSON(summaries))
		return
	}

	rows, err := api.ledger.Rows(c.Request.Context(), sheet.Kind)
	if err != nil {
		abortWithError(c, err)
		return
	}
	response := make([]rowJSON, 0, len(rows))
	for i := range rows {
		response = append(response, newRowJSON(&rows[i]))
	}
	c.JSON(http.StatusOK, response)
}

// InsertRowAction inserts a blank row at position (appending when absent)
// and applies any cells given.
func (api *API) InsertRowAction(c *gin.Context) {
	params := SheetParams{}
	request := InsertRowRequest{}
	if !bindURI(c, &params) {
		return
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	kind := model.SheetKind(params.Sheet)
	position := -1
	if request.Position != nil {
		position = *request.Position
	}

	update, err := api.ledger.InsertRowWithCells(ctx, kind, position, request.Cells)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUpdateJSON(update))
}

// DeleteRowAction removes a row.
func (api *API) DeleteRowAction(c *gin.Context) {
	params := RowParams{}
	if !bindURI(c, &params) {
		return
	}
	if err := api.ledger.DeleteRow(c.Request.Context(), model.SheetKind(params.Sheet), params.RowID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetCellAction stores one cell and answers with the cascaded update.
func (api *API) SetCellAction(c *gin.Context) {
	params := CellParams{}
	request := SetCellRequest{}
	if !bindURI(c, &params) || !bindJSON(c, &request) {
		return
	}

	update, err := api.ledger.SetCell(c.Request.Context(), model.SheetKind(params.Sheet), params.RowID, params.Field, *request.Value)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUpdateJSON(update))
}

// SetCellsAction stores several cells of one row.
func (api *API) SetCellsAction(c *gin.Context) {
	params := RowParams{}
	request := SetCellsRequest{}
	if !bindURI(c, &params) || !bindJSON(c, &request) {
		return
	}

	update, err := api.ledger.SetCells(c.Request.Context(), model.SheetKind(params.Sheet), params.RowID, request.Cells)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUpdateJSON(update))
}

// ListFormulasAction lists the effective formulas of a sheet.
func (api *API) ListFormulasAction(c *gin.Context) {
	params := SheetParams{}
	if !bindURI(c, &params) {
		return
	}
	formulas, err := api.ledger.Formulas(c.Request.Context(), model.SheetKind(params.Sheet))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFormulasJSON(formulas))
}

// SetFormulaAction replaces a formula and recalculates the sheet.
func (api *API) SetFormulaAction(c *gin.Context) {
	params := FieldParams{}
	request := SetFormulaRequest{}
	if !bindURI(c, &params) || !bindJSON(c, &request) {
		return
	}

	changed, err := api.ledger.SetFormula(c.Request.Context(), model.SheetKind(params.Sheet), params.Field, request.Expression)
	if err != nil {
		abortWithError(c, err)
		return
	}
	api.respondFormulas(c, params.Sheet, changed)
}

// ResetFormulaAction restores a column's default formula.
func (api *API) ResetFormulaAction(c *gin.Context) {
	params := FieldParams{}
	if !bindURI(c, &params) {
		return
	}

	changed, err := api.ledger.ResetFormula(c.Request.Context(), model.SheetKind(params.Sheet), params.Field)
	if err != nil {
		abortWithError(c, err)
		return
	}
	api.respondFormulas(c, params.Sheet, changed)
}

func (api *API) respondFormulas(c *gin.Context, sheet string, changed int) {
	formulas, err := api.ledger.Formulas(c.Request.Context(), model.SheetKind(sheet))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "formulas": newFormulasJSON(formulas)})
}

// RecalculateAction re-resolves every row of a sheet.
func (api *API) RecalculateAction(c *gin.Context) {
	params := SheetParams{}
	if !bindURI(c, &params) {
		return
	}
	changed, err := api.ledger.Recalculate(c.Request.Context(), model.SheetKind(params.Sheet))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// ListSummariesAction lists dashboard rows between from and to.
func (api *API) ListSummariesAction(c *gin.Context) {
	query := RangeQuery{}
	if !bindQuery(c, &query) {
		return
	}
	summaries, err := api.ledger.Summaries(c.Request.Context(), query.From, query.To)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSummariesJSON(summaries))
}

// ListSplitsAction totals each participant's share between from and to.
func (api *API) ListSplitsAction(c *gin.Context) {
	query := RangeQuery{}
	if !bindQuery(c, &query) {
		return
	}
	splits, err := api.ledger.Splits(c.Request.Context(), query.From, query.To)
	if err != nil {
		abortWithError(c, err)
		return
	}
	response := make([]splitJSON, 0, len(splits))
	for _, split := range splits {
		response = append(response, splitJSON{
			Name:      split.Name,
			Total:     split.Total.String(),
			Formatted: money.FormatVND(split.Total),
			Rows:      split.Rows,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ExportAction downloads one sheet as CSV (?sheet=) or the workbook as XLSX.
func (api *API) ExportAction(c *gin.Context) {
	ctx := c.Request.Context()
	stamp := time.Now().Format("20060102")

	switch c.Param("format") {
	case "csv":
		kind := c.Query("sheet")
		if kind == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "sheet query parameter is required for csv"})
			return
		}
		table, err := export.CollectSheet(ctx, api.storage, model.SheetKind(kind))
		if err != nil {
			abortWithError(c, err)
			return
		}
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, table); err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="cashbook-%s-%s.csv"`, table.Sheet.Kind, stamp))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())

	case "xlsx":
		tables, err := export.Collect(ctx, api.storage)
		if err != nil {
			abortWithError(c, err)
			return
		}
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, tables); err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="cashbook-%s.xlsx"`, stamp))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())

	default:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown export format " + c.Param("format")})
	}
}

func bindURI(c *gin.Context, params any) bool {
	if err := c.ShouldBindUri(params); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func bindJSON(c *gin.Context, request any) bool {
	if err := c.ShouldBindJSON(request); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, query any) bool {
	if err := c.ShouldBindQuery(query); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		common.LoggerFrom(c.Request.Context()).Debug("Request rejected", "status", status, "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

var unprocessable = []error{
	ledger.ErrInvalidValue,
	ledger.ErrComputedField,
	ledger.ErrReadOnlySheet,
	ledger.ErrNotComputed,
	money.ErrInvalidAmount,
	formula.ErrSyntax,
	formula.ErrEmptyFormula,
	formula.ErrNotNumeric,
	formula.ErrNotFinite,
	formula.ErrUnknownVariable,
	formula.ErrCircularReference,
}

func statusFor(err error) int {
	if ledger.IsNotFound(err) {
		return http.StatusNotFound
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	if errors.Is(err, common.ErrRateUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
