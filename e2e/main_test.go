package e2e

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/picklefed/court-reservation/internal/api"
	"github.com/picklefed/court-reservation/internal/api/handler"
	"github.com/picklefed/court-reservation/internal/api/middleware"
	"github.com/picklefed/court-reservation/internal/application"
	"github.com/picklefed/court-reservation/internal/domain/court"
	"github.com/picklefed/court-reservation/internal/domain/pricing"
	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/infrastructure/memory"
	"github.com/picklefed/court-reservation/internal/infrastructure/payment"
	"github.com/picklefed/court-reservation/internal/pkg/clock"
	"github.com/picklefed/court-reservation/internal/pkg/metrics"
)

// 2025-06-01 09:00 UTC から開始する
var baseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo    *echo.Echo
	Clock   *clock.Fixed
	Service *application.BookingService
	Store   *memory.ReservationStore
}

// NewTestServer はインメモリストアでサーバーを組み立てる
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	clk := clock.NewFixed(baseTime)
	courts := memory.NewCourtStore(
		&court.Court{
			ID: "court-1", ClubID: "club-1", Name: "Center Court", Type: court.TypeIndoor,
			HourlyRate: 4500, MemberRate: 3500, IsAvailable: true,
		},
		&court.Court{
			ID: "court-closed", ClubID: "club-1", Name: "Closed Court", Type: court.TypeOutdoor,
			HourlyRate: 3000, MemberRate: 2500, IsAvailable: false,
		},
	)
	store := memory.NewReservationStore()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	svc := application.NewBookingService(courts, store, payment.NoopGateway{}, clk, application.NewLocalLocker(),
		application.WithCalculator(pricing.NewCalculator(pricing.PerGuestPerHour(500))),
		application.WithCancellationPolicy(reservation.DefaultPolicy()),
		application.WithMetrics(m),
	)

	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, middleware.Options{Metrics: m})

	e.GET("/health", handler.NewHealthHandler(nil).Check)
	v1 := e.Group("/api/v1")
	handler.NewAvailabilityHandler(svc).Register(v1)
	handler.NewReservationHandler(svc).Register(v1)

	return &TestServer{Echo: e, Clock: clk, Service: svc, Store: store}
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func asUser(id string) map[string]string {
	return map[string]string{handler.HeaderUserID: id}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v (%s)", err, rec.Body.String())
	}
	return v
}
