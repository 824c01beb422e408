package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	return &buf
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggingMiddleware())
	r.Use(gin.CustomRecovery(HandlePanics()))
	return r
}

func TestHandlePanics(t *testing.T) {
	tests := map[string]struct {
		recovered any
		expLog    string
	}{
		"An error panic should be logged and hidden.": {recovered: errors.New("secret detail"), expLog: "secret detail"},
		"A value panic should be logged and hidden.":  {recovered: "plain value", expLog: "plain value"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			logs := captureLogs(t)
			r := newRouter()
			r.GET("/boom", func(*gin.Context) { panic(test.recovered) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.NotContains(t, w.Body.String(), test.expLog)
			assert.Contains(t, logs.String(), test.expLog)
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	logs := captureLogs(t)
	r := newRouter()
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/missing", entry["path"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
}
