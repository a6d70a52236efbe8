package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/picklefed/court-reservation/internal/domain/court"
	"github.com/picklefed/court-reservation/internal/domain/payment"
	"github.com/picklefed/court-reservation/internal/domain/reservation"
)

// === Mock implementations ===

// MockCourtRepository implements court.Repository
type MockCourtRepository struct {
	mock.Mock
}

func (m *MockCourtRepository) GetByID(ctx context.Context, id string) (*court.Court, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*court.Court), args.Error(1)
}

func (m *MockCourtRepository) ListByClub(ctx context.Context, clubID string) ([]*court.Court, error) {
	args := m.Called(ctx, clubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*court.Court), args.Error(1)
}

// MockReservationRepository implements reservation.Repository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) LoadReservations(ctx context.Context, courtID string, date time.Time) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, courtID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Insert(ctx context.Context, r *reservation.Reservation) (*reservation.Reservation, error) {
	args := m.Called(ctx, r)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(*reservation.Reservation) *reservation.Reservation:
		return v(r), args.Error(1)
	default:
		return v.(*reservation.Reservation), args.Error(1)
	}
}

func (m *MockReservationRepository) Update(ctx context.Context, r *reservation.Reservation) (*reservation.Reservation, error) {
	args := m.Called(ctx, r)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(*reservation.Reservation) *reservation.Reservation:
		return v(r), args.Error(1)
	default:
		return v.(*reservation.Reservation), args.Error(1)
	}
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListNoShowCandidates(ctx context.Context, before time.Time) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

// MockGateway implements payment.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Receipt, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Receipt), args.Error(1)
}

// MockPublisher implements EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, payload any) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

// MockAvailabilityCache implements AvailabilityCache
type MockAvailabilityCache struct {
	mock.Mock
}

func (m *MockAvailabilityCache) Get(ctx context.Context, courtID, date string) (*AvailabilitySnapshot, int64, error) {
	args := m.Called(ctx, courtID, date)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).(*AvailabilitySnapshot), args.Get(1).(int64), args.Error(2)
}

func (m *MockAvailabilityCache) Set(ctx context.Context, gen int64, snap *AvailabilitySnapshot) error {
	args := m.Called(ctx, gen, snap)
	return args.Error(0)
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context, courtID, date string) error {
	args := m.Called(ctx, courtID, date)
	return args.Error(0)
}

// MockLocker implements Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Lock), args.Error(1)
}

// MockLock implements Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// echoSaved は渡された予約をバージョンを進めて返す
func echoSaved(r *reservation.Reservation) *reservation.Reservation {
	out := r.Clone()
	out.Version++
	return out
}
