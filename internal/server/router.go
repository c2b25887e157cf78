// Package server exposes the ledger and the exchange rate over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/gin-gonic/gin"
)

// APIVersion prefixes the ledger routes.
const APIVersion = "v1"

// SetupRouter wires every route to api.
func SetupRouter(api *API, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "health")
	})

	rate := router.Group("/api/rate", allowAnyOrigin())
	rate.GET("", api.GetRateAction)
	rate.OPTIONS("", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	v1 := router.Group("/api/" + APIVersion)
	v1.GET("/sheets", api.ListSheetsAction)
	v1.GET("/sheets/:sheet/rows", api.ListRowsAction)
	v1.POST("/sheets/:sheet/rows", api.InsertRowAction)
	v1.DELETE("/sheets/:sheet/rows/:row_id", api.DeleteRowAction)
	v1.PUT("/sheets/:sheet/rows/:row_id/cells", api.SetCellsAction)
	v1.PUT("/sheets/:sheet/rows/:row_id/cells/:field", api.SetCellAction)
	v1.GET("/sheets/:sheet/formulas", api.ListFormulasAction)
	v1.PUT("/sheets/:sheet/formulas/:field", api.SetFormulaAction)
	v1.DELETE("/sheets/:sheet/formulas/:field", api.ResetFormulaAction)
	v1.POST("/sheets/:sheet/recalculate", api.RecalculateAction)
	v1.GET("/summaries", api.ListSummariesAction)
	v1.GET("/splits", api.ListSplitsAction)
	v1.GET("/export/:format", api.ExportAction)

	return router
}

func allowAnyOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.With("method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(common.WithLogger(c.Request.Context(), reqLogger))

		c.Next()

		attrs := []any{
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			reqLogger.Error("Request failed", attrs...)
		default:
			reqLogger.Debug("Request handled", attrs...)
		}
	}
}
