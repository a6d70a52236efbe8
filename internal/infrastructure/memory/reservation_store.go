package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

// ReservationStore は予約のインメモリ実装。
// 重複チェックと保存は同一ロック内で行う
type ReservationStore struct {
	mu   sync.RWMutex
	byID map[string]*reservation.Reservation
	// court_id + date ごとの予約ID
	byCourtDay map[string][]string
}

// NewReservationStore はReservationStoreを作成する
func NewReservationStore() *ReservationStore {
	return &ReservationStore{
		byID:       make(map[string]*reservation.Reservation),
		byCourtDay: make(map[string][]string),
	}
}

func courtDayKey(courtID string, date time.Time) string {
	return courtID + "|" + timeslot.DateKey(date)
}

func (s *ReservationStore) LoadReservations(ctx context.Context, courtID string, date time.Time) ([]*reservation.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byCourtDay[courtDayKey(courtID, date)]
	list := make([]*reservation.Reservation, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.byID[id].Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime < list[j].StartTime })
	return list, nil
}

func (s *ReservationStore) Insert(ctx context.Context, r *reservation.Reservation) (*reservation.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		return nil, reservation.ErrOverlap
	}
	key := courtDayKey(r.CourtID, r.ReservationDate)
	if r.Blocks() {
		for _, id := range s.byCourtDay[key] {
			if s.byID[id].Conflicts(r) {
				return nil, reservation.ErrOverlap
			}
		}
	}

	stored := r.Clone()
	stored.Version = 1
	s.byID[stored.ID] = stored
	s.byCourtDay[key] = append(s.byCourtDay[key], stored.ID)
	return stored.Clone(), nil
}

func (s *ReservationStore) Update(ctx context.Context, r *reservation.Reservation) (*reservation.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[r.ID]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	if current.Version != r.Version {
		return nil, reservation.ErrVersionConflict
	}
	if current.CourtID != r.CourtID || !current.ReservationDate.Equal(r.ReservationDate) || current.Slot() != r.Slot() {
		return nil, reservation.ErrVersionConflict
	}

	stored := r.Clone()
	stored.Version = current.Version + 1
	s.byID[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *ReservationStore) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return r.Clone(), nil
}

func (s *ReservationStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var list []*reservation.Reservation
	for _, r := range s.byID {
		if r.UserID == userID {
			list = append(list, r.Clone())
		}
	}
	s.mu.RUnlock()

	// 新しい予約日から
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ReservationDate.Equal(list[j].ReservationDate) {
			return list[i].ReservationDate.After(list[j].ReservationDate)
		}
		return list[i].StartTime > list[j].StartTime
	})
	if offset >= len(list) {
		return []*reservation.Reservation{}, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (s *ReservationStore) ListNoShowCandidates(ctx context.Context, before time.Time) ([]*reservation.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*reservation.Reservation
	for _, r := range s.byID {
		if r.Status == reservation.StatusConfirmed && r.CheckedInAt == nil && !r.StartsAt().After(before) {
			list = append(list, r.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartsAt().Before(list[j].StartsAt()) })
	return list, nil
}

// All は保存されている全予約を返す
func (s *ReservationStore) All() []*reservation.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*reservation.Reservation, 0, len(s.byID))
	for _, r := range s.byID {
		list = append(list, r.Clone())
	}
	return list
}
