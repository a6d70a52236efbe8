package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/picklefed/court-reservation/internal/api"
	"github.com/picklefed/court-reservation/internal/pkg/apperr"
	"github.com/picklefed/court-reservation/internal/pkg/logger"
	"github.com/picklefed/court-reservation/internal/pkg/metrics"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

func serve(e *echo.Echo, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Get()
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(prev) })
	return logs
}

func TestSetupMiddleware(t *testing.T) {
	e := newEcho()
	reg := prometheus.NewRegistry()
	SetupMiddleware(e, Options{RateLimit: 100, Metrics: metrics.NewWithRegistry(reg)})

	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "test")
	})

	rec := serve(e, http.MethodGet, "/test", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		handler   echo.HandlerFunc
		wantCode  int
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{
			name:      "成功",
			handler:   func(c echo.Context) error { return c.String(http.StatusOK, "success") },
			wantCode:  http.StatusOK,
			wantLevel: zapcore.InfoLevel,
			wantMsg:   "request completed",
		},
		{
			name:      "クライアントエラー",
			handler:   func(c echo.Context) error { return apperr.NewValidationError("date", "不正") },
			wantCode:  http.StatusBadRequest,
			wantLevel: zapcore.WarnLevel,
			wantMsg:   "client error",
		},
		{
			name:      "サーバーエラー",
			handler:   func(c echo.Context) error { return errors.New("boom") },
			wantCode:  http.StatusInternalServerError,
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			e := newEcho()
			e.Use(RequestLogger())
			e.GET("/test", tt.handler)

			rec := serve(e, http.MethodGet, "/test", map[string]string{"X-User-ID": "user-1"})

			assert.Equal(t, tt.wantCode, rec.Code)
			entries := logs.FilterMessage(tt.wantMsg).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
			fields := entries[0].ContextMap()
			assert.Equal(t, "/test", fields["route"])
			assert.Equal(t, int64(tt.wantCode), fields["status"])
			assert.Equal(t, "user-1", fields["user_id"])
		})
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestPrometheusMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	e := newEcho()
	e.Use(PrometheusMiddleware(m))

	e.GET("/reservations/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/reservations", func(c echo.Context) error {
		return apperr.ErrSlotUnavailable
	})

	serve(e, http.MethodGet, "/reservations/r-1", nil)
	serve(e, http.MethodGet, "/reservations/r-2", nil)
	rec := serve(e, http.MethodPost, "/reservations", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, 2.0, counterValue(t, reg, "http_requests_total",
		map[string]string{"method": "GET", "path": "/reservations/:id", "status_code": "200"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "http_requests_total",
		map[string]string{"method": "POST", "path": "/reservations", "status_code": "409"}))
}

func TestRateLimit(t *testing.T) {
	e := newEcho()
	e.Use(RateLimit(1))
	e.GET("/test", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	user := map[string]string{"X-User-ID": "user-1"}
	// burst は2
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/test", user).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/test", user).Code)
	rec := serve(e, http.MethodGet, "/test", user)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retryable":true`)

	// 別ユーザーは独立して数える
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/test", map[string]string{"X-User-ID": "user-2"}).Code)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health", user).Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	e := newEcho()
	e.Use(RateLimit(0))
	e.GET("/test", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/test", nil).Code)
	}
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	e := newEcho()
	e.Use(Tracing())
	var inner trace.SpanContext
	e.GET("/reservations/:id", func(c echo.Context) error {
		inner = trace.SpanContextFromContext(c.Request().Context())
		return errors.New("boom")
	})

	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	rec := serve(e, http.MethodGet, "/reservations/r-1", map[string]string{"traceparent": parent})
	require.NoError(t, tp.ForceFlush(context.Background()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /reservations/:id", spans[0].Name)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, spans[0].SpanContext.SpanID(), inner.SpanID())
	assert.Equal(t, "Error", spans[0].Status.Code.String())
}
