package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/picklefed/court-reservation/internal/pkg/metrics"
)

// Options は共通ミドルウェアの設定
type Options struct {
	// 利用者ごとの秒間リクエスト数。0以下なら制限しない
	RateLimit float64
	Metrics   *metrics.Metrics
}

// SetupMiddleware は共通ミドルウェアを設定する
func SetupMiddleware(e *echo.Echo, opts Options) {
	e.Use(middleware.RequestID())
	e.Use(Tracing())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.POST},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-User-ID"},
	}))
	if opts.Metrics != nil {
		e.Use(PrometheusMiddleware(opts.Metrics))
	}
	e.Use(RateLimit(opts.RateLimit))
}
