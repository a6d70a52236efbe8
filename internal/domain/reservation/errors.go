package reservation

import (
	"errors"
	"fmt"

	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound = fmt.Errorf("予約が見つかりません: %w", apperr.ErrNotFound)
	ErrOverlap             = errors.New("時間が重なる予約が既に存在します")
	ErrVersionConflict     = errors.New("予約が他の操作で更新されています")
	ErrCourtIDRequired     = apperr.NewValidationError("court_id", "コートIDは必須です")
	ErrUserIDRequired      = apperr.NewValidationError("user_id", "ユーザーIDは必須です")
	ErrDateRequired        = apperr.NewValidationError("reservation_date", "予約日は必須です")
	ErrMatchTypeRequired   = apperr.NewValidationError("match_type", "試合形式は必須です")
	ErrInvalidGuestCount   = apperr.NewValidationError("guest_count", "ゲスト数は0以上である必要があります")
	ErrInvalidAmount       = apperr.NewValidationError("final_amount", "金額が不正です")
	ErrCancelledByRequired = apperr.NewValidationError("cancelled_by", "キャンセル実行者は必須です")
)

// InvalidTransitionError は遷移表にない操作を試みたことを表す
type InvalidTransitionError struct {
	From   Status
	Event  Event
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("%s: 状態 %s に対して %s はできません", apperr.ErrInvalidTransition.Error(), e.From, e.Event)
	if e.Reason != "" {
		msg += "（" + e.Reason + "）"
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error { return apperr.ErrInvalidTransition }
