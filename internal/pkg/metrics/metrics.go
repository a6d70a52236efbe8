package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約の総数（status: success, unavailable, invalid, lock_failed, error）
	BookingsTotal *prometheus.CounterVec

	// コート・日付ロックの操作時間（operation: acquire/release, status: success/failed）
	CourtLockDuration *prometheus.HistogramVec

	// 状態遷移の総数（event, result: success/rejected）
	ReservationTransitionsTotal *prometheus.CounterVec

	// 決済の総数（result: success/declined/error）
	PaymentsTotal *prometheus.CounterVec

	// 無断キャンセルとして処理された予約数
	NoShowsMarkedTotal prometheus.Counter
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "court_bookings_total",
				Help: "Total number of court booking attempts",
			},
			[]string{"status"},
		),
		CourtLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "court_lock_duration_seconds",
				Help:    "Time spent on court-day lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		ReservationTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_transitions_total",
				Help: "Total number of reservation lifecycle transitions",
			},
			[]string{"event", "result"},
		),
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_total",
				Help: "Total number of payment attempts",
			},
			[]string{"result"},
		),
		NoShowsMarkedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reservation_no_shows_marked_total",
				Help: "Total number of reservations marked as no-show",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.CourtLockDuration,
		m.ReservationTransitionsTotal,
		m.PaymentsTotal,
		m.NoShowsMarkedTotal,
	)

	return m
}

// ObserveBooking は予約結果をカウントする。nil の場合は何もしない
func (m *Metrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(status).Inc()
}

// ObserveLock はロック操作の所要時間を記録する
func (m *Metrics) ObserveLock(operation string, ok bool, started time.Time) {
	if m == nil {
		return
	}
	m.CourtLockDuration.WithLabelValues(operation, result(ok, "success", "failed")).Observe(time.Since(started).Seconds())
}

// ObserveTransition は状態遷移をカウントする
func (m *Metrics) ObserveTransition(event string, ok bool) {
	if m == nil {
		return
	}
	m.ReservationTransitionsTotal.WithLabelValues(event, result(ok, "success", "rejected")).Inc()
}

// ObservePayment は決済結果をカウントする
func (m *Metrics) ObservePayment(res string) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(res).Inc()
}

// AddNoShows は無断キャンセル件数を加算する
func (m *Metrics) AddNoShows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NoShowsMarkedTotal.Add(float64(n))
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
