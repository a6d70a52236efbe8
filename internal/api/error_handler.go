package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/picklefed/court-reservation/internal/pkg/apperr"
	"github.com/picklefed/court-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// エラー種別とHTTPステータスの対応。public が空でなければ内部のエラー文言の代わりに返す
var errorKinds = []struct {
	err    error
	status int
	kind   string
	public string
}{
	{apperr.ErrValidation, http.StatusBadRequest, "validation", ""},
	{apperr.ErrNotFound, http.StatusNotFound, "not_found", ""},
	{apperr.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable", ""},
	{apperr.ErrInvalidTransition, http.StatusConflict, "invalid_transition", ""},
	{apperr.ErrPayment, http.StatusPaymentRequired, "payment", ""},
	{apperr.ErrPersistence, http.StatusServiceUnavailable, "persistence", "一時的に処理できません。時間をおいて再試行してください"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "timeout", "処理がタイムアウトしました"},
}

// StatusFor はエラー種別に対応するHTTPステータスを返す
func StatusFor(err error) (int, string) {
	status, kind, _ := classify(err)
	return status, kind
}

func classify(err error) (int, string, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			msg := k.public
			if msg == "" {
				msg = err.Error()
			}
			return k.status, k.kind, msg
		}
	}
	return http.StatusInternalServerError, "", "内部サーバーエラー"
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, kind, message := classify(err)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Ctx(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{
		Error:     message,
		Code:      code,
		Kind:      kind,
		Retryable: apperr.IsRetryable(err),
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
