package application

import (
	"context"
	"time"

	"github.com/picklefed/court-reservation/internal/domain/availability"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

// SlotAvailability は1枠の空き状況
type SlotAvailability struct {
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	StartsAt      time.Time `json:"starts_at"`
	Available     bool      `json:"available"`
	ReservationID string    `json:"reservation_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// AvailabilitySnapshot はコート・日付の空き状況一覧
type AvailabilitySnapshot struct {
	CourtID    string             `json:"court_id"`
	Date       string             `json:"date"`
	HourlyRate int64              `json:"hourly_rate"`
	MemberRate int64              `json:"member_rate"`
	Slots      []SlotAvailability `json:"slots"`
}

// AvailableCount は空き枠数を返す
func (s *AvailabilitySnapshot) AvailableCount() int {
	n := 0
	for _, sl := range s.Slots {
		if sl.Available {
			n++
		}
	}
	return n
}

// closePast は開始時刻を過ぎた空き枠を予約不可にする
func (s *AvailabilitySnapshot) closePast(now time.Time) {
	for i, sl := range s.Slots {
		if sl.Available && sl.StartsAt.Before(now) {
			s.Slots[i].Available = false
			s.Slots[i].Reason = string(availability.ReasonPast)
		}
	}
}

// AvailabilityCache は参照用の空き状況キャッシュ。予約処理の判定には使わない。
// 保存は読み込み前に Get で得た世代で行い、Invalidate で世代が進むと古い保存は読まれなくなる
type AvailabilityCache interface {
	// Get は現在の世代とキャッシュを取得する。未登録なら snapshot は nil
	Get(ctx context.Context, courtID, date string) (*AvailabilitySnapshot, int64, error)
	Set(ctx context.Context, gen int64, snap *AvailabilitySnapshot) error
	Invalidate(ctx context.Context, courtID, date string) error
}

func newSnapshot(courtID string, date time.Time, loc *time.Location, hourly, member int64, slots []timeslot.Slot, idx availability.Index) *AvailabilitySnapshot {
	snap := &AvailabilitySnapshot{
		CourtID:    courtID,
		Date:       timeslot.DateKey(date),
		HourlyRate: hourly,
		MemberRate: member,
		Slots:      make([]SlotAvailability, 0, len(slots)),
	}
	for _, se := range idx.Ordered(slots) {
		start, _ := se.Slot.On(date, loc)
		snap.Slots = append(snap.Slots, SlotAvailability{
			StartTime:     se.Slot.Start.String(),
			EndTime:       se.Slot.End.String(),
			StartsAt:      start.UTC(),
			Available:     se.Available,
			ReservationID: se.ReservationID,
			Reason:        string(se.Reason),
		})
	}
	return snap
}
