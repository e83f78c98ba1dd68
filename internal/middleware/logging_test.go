package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedRouter() (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	router := gin.New()
	router.Use(LoggingMiddleware(logger), RecoveryMiddleware(logger))
	router.GET("/problems/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(*gin.Context) { panic("kaboom") })
	return router, logs
}

func TestLoggingMiddlewareRequestID(t *testing.T) {
	router, logs := newLoggedRouter()
	incoming := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/problems/42", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/problems/42", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\nforged")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)

	entries := logs.FilterMessage("Request completed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "/problems/:id", entries[0].ContextMap()["route"])
	assert.Equal(t, generated, entries[1].ContextMap()["request_id"])
}

func TestRecoveryMiddlewareAnswers500(t *testing.T) {
	router, logs := newLoggedRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, w.Header().Get(RequestIDHeader), body["request_id"])

	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	serverErrors := logs.FilterMessage("Server error").All()
	require.Len(t, serverErrors, 1)
	assert.Equal(t, zapcore.ErrorLevel, serverErrors[0].Level)
}
