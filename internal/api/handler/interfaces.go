package handler

import (
	"context"
	"time"

	"github.com/picklefed/court-reservation/internal/application"
	"github.com/picklefed/court-reservation/internal/domain/court"
	"github.com/picklefed/court-reservation/internal/domain/reservation"
)

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	Book(ctx context.Context, in application.BookInput) (*reservation.Reservation, error)
	Availability(ctx context.Context, courtID string, date time.Time) (*application.AvailabilitySnapshot, error)
	ListCourts(ctx context.Context, clubID string) ([]*court.Court, error)
	ConfirmPayment(ctx context.Context, id, paymentMethod string) (*reservation.Reservation, error)
	Cancel(ctx context.Context, in application.CancelInput) (*reservation.Reservation, error)
	CheckIn(ctx context.Context, id string) (*reservation.Reservation, error)
	Complete(ctx context.Context, id string) (*reservation.Reservation, error)
	MarkNoShow(ctx context.Context, id string) (*reservation.Reservation, error)
	GetReservation(ctx context.Context, id string) (*reservation.Reservation, error)
	ListUserReservations(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error)
}

var _ BookingServiceInterface = (*application.BookingService)(nil)
