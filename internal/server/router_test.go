package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := gin.New()
	router.Use(requestLogger(logger))
	router.GET("/ok", func(c *gin.Context) {
		common.LoggerFrom(c.Request.Context()).Info("Handling")
		c.Status(http.StatusNoContent)
	})
	router.GET("/rejected", func(c *gin.Context) {
		abortWithError(c, ledger.ErrInvalidValue)
	})
	router.GET("/broken", func(c *gin.Context) {
		abortWithError(c, errors.New("disk full"))
	})

	tests := []struct {
		path   string
		status int
		want   []string
	}{
		{"/ok", http.StatusNoContent, []string{`"msg":"Handling"`, `"path":"/ok"`, `"msg":"Request handled"`}},
		{"/rejected", http.StatusUnprocessableEntity, []string{`"msg":"Request rejected"`, `"path":"/rejected"`, `"status":422`}},
		{"/broken", http.StatusInternalServerError, []string{`"level":"ERROR"`, `"msg":"Request failed"`, `disk full`}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			w := httptest.NewRecorder()
			req, err := http.NewRequest(http.MethodGet, tt.path, nil)
			require.NoError(t, err)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
			assert.Contains(t, buf.String(), `"method":"GET"`)
		})
	}
}
