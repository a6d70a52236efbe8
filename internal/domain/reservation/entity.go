package reservation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/picklefed/court-reservation/internal/domain/timeslot"
	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

// PaymentStatus は支払いの状態を表す
type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentCompleted   PaymentStatus = "completed"
	PaymentRefunded    PaymentStatus = "refunded"
	PaymentNotRequired PaymentStatus = "not_required"
)

// Pricing は予約時点の料金スナップショット
type Pricing struct {
	HourlyRate     int64
	TotalAmount    int64
	MemberDiscount int64
	FinalAmount    int64
}

// Reservation はコート予約エンティティ。物理削除はせず、キャンセルも履歴として残す
type Reservation struct {
	ID                 string
	CourtID            string
	UserID             string
	ClubID             string
	ReservationDate    time.Time
	Location           *time.Location // コートのタイムゾーン。nil はUTC
	StartTime          timeslot.Clock
	EndTime            timeslot.Clock
	DurationHours      float64
	MatchType          string
	GuestCount         int
	HourlyRate         int64
	TotalAmount        int64
	MemberDiscount     int64
	FinalAmount        int64
	PaymentStatus      PaymentStatus
	PaymentReference   string
	Status             Status
	CheckedInAt        *time.Time
	ActualStartTime    *time.Time
	ActualEndTime      *time.Time
	CancelledAt        *time.Time
	CancelledBy        string
	CancellationReason string
	RefundAmount       int64
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int // 楽観的ロック用
}

// NewParams は予約作成時の入力
type NewParams struct {
	CourtID         string
	ClubID          string
	UserID          string
	Date            time.Time
	Location        *time.Location
	Slot            timeslot.Slot
	MatchType       string
	GuestCount      int
	Notes           string
	Pricing         Pricing
	RequiresPayment bool
}

// NewReservation は create 遷移で予約を作成する。
// 支払いが不要な場合は confirmed で作成する。
func NewReservation(p NewParams, now time.Time) (*Reservation, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	status, paymentStatus := StatusPending, PaymentPending
	if !p.RequiresPayment {
		status, paymentStatus = StatusConfirmed, PaymentNotRequired
	}
	return &Reservation{
		ID:              uuid.New().String(),
		CourtID:         p.CourtID,
		ClubID:          p.ClubID,
		UserID:          p.UserID,
		ReservationDate: timeslot.NormalizeDate(p.Date),
		Location:        p.Location,
		StartTime:       p.Slot.Start,
		EndTime:         p.Slot.End,
		DurationHours:   p.Slot.Hours(),
		MatchType:       strings.TrimSpace(p.MatchType),
		GuestCount:      p.GuestCount,
		HourlyRate:      p.Pricing.HourlyRate,
		TotalAmount:     p.Pricing.TotalAmount,
		MemberDiscount:  p.Pricing.MemberDiscount,
		FinalAmount:     p.Pricing.FinalAmount,
		PaymentStatus:   paymentStatus,
		Status:          status,
		Notes:           p.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (p NewParams) validate() error {
	if p.CourtID == "" {
		return ErrCourtIDRequired
	}
	if p.UserID == "" {
		return ErrUserIDRequired
	}
	if p.Date.IsZero() {
		return ErrDateRequired
	}
	if strings.TrimSpace(p.MatchType) == "" {
		return ErrMatchTypeRequired
	}
	if p.GuestCount < 0 {
		return ErrInvalidGuestCount
	}
	if err := p.Slot.Validate(); err != nil {
		return err
	}
	pr := p.Pricing
	if pr.TotalAmount < 0 || pr.MemberDiscount < 0 || pr.FinalAmount < 0 ||
		pr.FinalAmount != pr.TotalAmount-pr.MemberDiscount {
		return ErrInvalidAmount
	}
	return nil
}

// Slot は予約の時間枠を返す
func (r *Reservation) Slot() timeslot.Slot {
	return timeslot.Slot{Start: r.StartTime, End: r.EndTime}
}

// StartsAt は開始時刻をコートのタイムゾーンで解釈した絶対時刻を返す
func (r *Reservation) StartsAt() time.Time {
	start, _ := r.Slot().On(r.ReservationDate, r.Location)
	return start
}

// EndsAt は終了時刻の絶対時刻を返す
func (r *Reservation) EndsAt() time.Time {
	_, end := r.Slot().On(r.ReservationDate, r.Location)
	return end
}

// Blocks はこの予約が枠を占有しているかを返す
func (r *Reservation) Blocks() bool {
	return r.Status.Blocking()
}

// Conflicts は同じコート・日付で時間が重なる占有中の予約かを返す
func (r *Reservation) Conflicts(o *Reservation) bool {
	return r.CourtID == o.CourtID &&
		timeslot.DateKey(r.ReservationDate) == timeslot.DateKey(o.ReservationDate) &&
		r.Blocks() && o.Blocks() &&
		r.Slot().Overlaps(o.Slot())
}

// Clone はポインタ項目も含めて複製する
func (r *Reservation) Clone() *Reservation {
	c := *r
	c.CheckedInAt = cloneTime(r.CheckedInAt)
	c.ActualStartTime = cloneTime(r.ActualStartTime)
	c.ActualEndTime = cloneTime(r.ActualEndTime)
	c.CancelledAt = cloneTime(r.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ConfirmPayment は支払い完了により pending から confirmed にする
func (r *Reservation) ConfirmPayment(reference string, now time.Time) error {
	next, err := r.next(EventConfirmPayment)
	if err != nil {
		return err
	}
	r.Status = next
	r.PaymentStatus = PaymentCompleted
	r.PaymentReference = reference
	r.UpdatedAt = now
	return nil
}

// CancelParams はキャンセル時の入力
type CancelParams struct {
	By     string
	Reason string
}

// Cancel は予約をキャンセルし、ポリシーに従って返金額を計算する。
// 未払いの予約は返金額0でポリシーを呼ばない。
func (r *Reservation) Cancel(p CancelParams, policy CancellationPolicy, now time.Time) error {
	next, err := r.next(EventCancel)
	if err != nil {
		return err
	}
	if p.By == "" {
		return ErrCancelledByRequired
	}
	var refund int64
	if r.PaymentStatus == PaymentCompleted {
		if policy == nil {
			policy = NoRefundPolicy{}
		}
		refund = clampRefund(policy.Refund(r.FinalAmount, r.StartsAt().Sub(now)), r.FinalAmount)
	}
	r.Status = next
	r.CancelledAt = &now
	r.CancelledBy = p.By
	r.CancellationReason = p.Reason
	r.RefundAmount = refund
	if refund > 0 {
		r.PaymentStatus = PaymentRefunded
	}
	r.UpdatedAt = now
	return nil
}

func clampRefund(refund, max int64) int64 {
	if refund < 0 {
		return 0
	}
	if refund > max {
		return max
	}
	return refund
}

// CheckIn は来場を記録する。状態は confirmed のまま
func (r *Reservation) CheckIn(now time.Time) error {
	if _, err := r.next(EventCheckIn); err != nil {
		return err
	}
	if r.CheckedInAt != nil {
		return &InvalidTransitionError{From: r.Status, Event: EventCheckIn, Reason: "チェックイン済みです"}
	}
	r.CheckedInAt = &now
	r.ActualStartTime = &now
	r.UpdatedAt = now
	return nil
}

// Complete はチェックイン済みの予約をプレー終了として completed にする
func (r *Reservation) Complete(now time.Time) error {
	next, err := r.next(EventComplete)
	if err != nil {
		return err
	}
	if r.CheckedInAt == nil {
		return &InvalidTransitionError{From: r.Status, Event: EventComplete, Reason: "チェックインされていません"}
	}
	r.Status = next
	r.ActualEndTime = &now
	r.UpdatedAt = now
	return nil
}

// MarkNoShow は開始時刻を過ぎてもチェックインのない予約を no_show にする。返金はしない
func (r *Reservation) MarkNoShow(now time.Time) error {
	next, err := r.next(EventNoShow)
	if err != nil {
		return err
	}
	if r.CheckedInAt != nil {
		return &InvalidTransitionError{From: r.Status, Event: EventNoShow, Reason: "チェックイン済みです"}
	}
	if now.Before(r.StartsAt()) {
		return &InvalidTransitionError{From: r.Status, Event: EventNoShow, Reason: "開始時刻前です"}
	}
	r.Status = next
	r.RefundAmount = 0
	r.UpdatedAt = now
	return nil
}

func (r *Reservation) next(ev Event) (Status, error) {
	to, ok := Transition(r.Status, ev)
	if !ok {
		return r.Status, &InvalidTransitionError{From: r.Status, Event: ev}
	}
	return to, nil
}

// Validate は保存前の整合性を検証する
func (r *Reservation) Validate() error {
	if r.ID == "" {
		return apperr.NewValidationError("id", "予約IDは必須です")
	}
	if !r.Status.Valid() {
		return apperr.NewValidationError("status", "不明な状態です: "+string(r.Status))
	}
	if r.FinalAmount != r.TotalAmount-r.MemberDiscount || r.FinalAmount < 0 {
		return ErrInvalidAmount
	}
	return r.Slot().Validate()
}
