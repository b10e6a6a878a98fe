package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Levels(t *testing.T) {
	assert.True(t, NewLogger("debug", "test").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, NewLogger("warn", "test").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, NewLogger("bogus", "test").Core().Enabled(zapcore.InfoLevel), "unknown level falls back to info")
}

func TestTracingMiddleware_EchoesTraceID(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec.Header().Get("X-Trace-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("X-Trace-Id"))
}

func TestZapLoggerMiddleware_LevelByStatus(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	core, logs := observer.New(zapcore.InfoLevel)

	status := http.StatusOK
	h := TracingMiddleware(ZapLoggerMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})))

	for _, s := range []int{http.StatusOK, http.StatusNotFound, http.StatusBadGateway} {
		status = s
		req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)
		req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[0].ContextMap()["trace_id"])
		assert.Equal(t, int64(http.StatusBadGateway), entries[2].ContextMap()["status"])
	}
}
