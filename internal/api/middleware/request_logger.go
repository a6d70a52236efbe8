package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/picklefed/court-reservation/internal/pkg/logger"
)

// RequestLogger はリクエストの構造化ログを出力するミドルウェア。
// リクエストIDは echo の RequestID ミドルウェアが付与したものを使う
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			err := next(c)
			if err != nil {
				// ステータスを確定させてから記録する
				c.Error(err)
			}

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = res.Header().Get(echo.HeaderXRequestID)
			}
			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", res.Status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if uid := req.Header.Get("X-User-ID"); uid != "" {
				fields = append(fields, zap.String("user_id", uid))
			}

			log := logger.Ctx(req.Context())
			switch {
			case res.Status >= 500:
				log.Error("server error", append(fields, zap.Error(err))...)
			case res.Status >= 400:
				log.Warn("client error", append(fields, zap.Error(err))...)
			default:
				log.Info("request completed", fields...)
			}
			return nil
		}
	}
}
