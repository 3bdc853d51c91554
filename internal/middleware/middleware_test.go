package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newEngine(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Recovery(logger), Logging(logger))
	engine.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })
	return engine
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine := newEngine(zap.New(core))

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestLogging_PropagatesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	engine := newEngine(zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	entries := logs.FilterMessage("Request completed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "abc-123", entries[0].ContextMap()["request_id"])
		assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	}
}
