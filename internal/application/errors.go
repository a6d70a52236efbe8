package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/picklefed/court-reservation/internal/domain/availability"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

// ErrLockContended はロックの取得を諦めたことを表す
var ErrLockContended = errors.New("コート・日付が他の予約処理で使用中です")

// SlotUnavailableError は枠が予約済み・メンテナンス中・グリッド外であることを表す。
// 空き状況を取り直して再試行できる
type SlotUnavailableError struct {
	CourtID string
	Date    time.Time
	Slot    timeslot.Slot
	Reason  availability.Reason
	Err     error
}

func (e *SlotUnavailableError) Error() string {
	msg := fmt.Sprintf("%s: court=%s date=%s slot=%s",
		apperr.ErrSlotUnavailable.Error(), e.CourtID, timeslot.DateKey(e.Date), e.Slot)
	if e.Reason != availability.ReasonNone {
		msg += " reason=" + string(e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SlotUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperr.ErrSlotUnavailable}
	}
	return []error{apperr.ErrSlotUnavailable, e.Err}
}

// PersistenceError はストレージ操作の失敗。バックオフ付きで再試行できる
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", apperr.ErrPersistence.Error(), e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{apperr.ErrPersistence, e.Err}
}

// PaymentFailure は決済の失敗。予約は pending のまま残る
type PaymentFailure struct {
	ReservationID string
	Reference     string
	Message       string
	Err           error
}

func (e *PaymentFailure) Error() string {
	msg := fmt.Sprintf("%s: reservation=%s", apperr.ErrPayment.Error(), e.ReservationID)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentFailure) Unwrap() []error {
	if e.Err == nil {
		return []error{apperr.ErrPayment}
	}
	return []error{apperr.ErrPayment, e.Err}
}

func persistenceError(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
