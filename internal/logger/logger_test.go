package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithTenantID(WithRequestID(context.Background(), "req-1"), 7)
	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, uint64(7), fields["tenant_id"])
}

func TestGinMiddleware_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))

	require.Equal(t, 2, logs.Len())
	last := logs.All()[1]
	assert.Equal(t, "http_request", last.Message)
	assert.Equal(t, "abc", last.ContextMap()["request_id"])
	assert.Equal(t, "/ping", last.ContextMap()["route"])
}
