// Package availability はコート・日付ごとの予約枠の空き状況を計算する
package availability

import (
	"time"

	"github.com/picklefed/court-reservation/internal/domain/court"
	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

// Reason は予約不可の理由
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonReserved      Reason = "reserved"
	ReasonMaintenance   Reason = "maintenance"
	ReasonCourtDisabled Reason = "court_disabled"
	ReasonOffGrid       Reason = "off_grid"
	ReasonPast          Reason = "past"
)

// Entry は1枠の空き状況
type Entry struct {
	Available     bool
	ReservationID string
	Reason        Reason
}

// Index は枠ごとの空き状況
type Index map[timeslot.Slot]Entry

// SlotEntry は順序付きで返すための枠と空き状況の組
type SlotEntry struct {
	Slot timeslot.Slot
	Entry
}

// Build は枠のグリッドと既存予約を突き合わせる。I/Oは行わない。
// 他のコート・日付の予約や占有しない状態の予約は無視する。
func Build(c *court.Court, date time.Time, slots []timeslot.Slot, existing []*reservation.Reservation) Index {
	idx := make(Index, len(slots))
	dateKey := timeslot.DateKey(date)

	for _, s := range slots {
		switch {
		case !c.IsAvailable:
			idx[s] = Entry{Reason: ReasonCourtDisabled}
			continue
		case c.InMaintenance(date, s):
			idx[s] = Entry{Reason: ReasonMaintenance}
			continue
		}

		entry := Entry{Available: true}
		for _, r := range existing {
			if r.CourtID != c.ID || timeslot.DateKey(r.ReservationDate) != dateKey || !r.Blocks() {
				continue
			}
			if s.Overlaps(r.Slot()) {
				entry = Entry{ReservationID: r.ID, Reason: ReasonReserved}
				break
			}
		}
		idx[s] = entry
	}
	return idx
}

// Lookup は枠の空き状況を返す。グリッド外の枠は ok=false
func (idx Index) Lookup(s timeslot.Slot) (Entry, bool) {
	e, ok := idx[s]
	return e, ok
}

// Ordered はslotsの順に空き状況を並べる
func (idx Index) Ordered(slots []timeslot.Slot) []SlotEntry {
	out := make([]SlotEntry, 0, len(slots))
	for _, s := range slots {
		if e, ok := idx[s]; ok {
			out = append(out, SlotEntry{Slot: s, Entry: e})
		}
	}
	return out
}

// AvailableCount は空き枠の数を返す
func (idx Index) AvailableCount() int {
	n := 0
	for _, e := range idx {
		if e.Available {
			n++
		}
	}
	return n
}
