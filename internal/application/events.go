package application

import (
	"context"
	"time"

	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

// ドメインイベントのルーティングキー
const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationCheckedIn = "reservation.checked_in"
	EventReservationCompleted = "reservation.completed"
	EventReservationNoShow    = "reservation.no_show"
)

// EventPublisher はコミット後のドメインイベントを配信する
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// ReservationEvent はイベントのペイロード
type ReservationEvent struct {
	ReservationID string    `json:"reservation_id"`
	CourtID       string    `json:"court_id"`
	ClubID        string    `json:"club_id,omitempty"`
	UserID        string    `json:"user_id"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	FinalAmount   int64     `json:"final_amount"`
	RefundAmount  int64     `json:"refund_amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func newReservationEvent(r *reservation.Reservation, now time.Time) ReservationEvent {
	return ReservationEvent{
		ReservationID: r.ID,
		CourtID:       r.CourtID,
		ClubID:        r.ClubID,
		UserID:        r.UserID,
		Date:          timeslot.DateKey(r.ReservationDate),
		StartTime:     r.StartTime.String(),
		EndTime:       r.EndTime.String(),
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		FinalAmount:   r.FinalAmount,
		RefundAmount:  r.RefundAmount,
		OccurredAt:    now,
	}
}
