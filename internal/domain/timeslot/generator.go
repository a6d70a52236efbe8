package timeslot

import (
	"fmt"
	"time"

	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

// Generate は [openHour, closeHour) を slotDuration ごとに区切った枠を返す。
// 末尾の端数は切り捨てず、枠ごと捨てる。
func Generate(openHour, closeHour int, slotDuration time.Duration) ([]Slot, error) {
	if openHour < 0 || closeHour > 24 || openHour >= closeHour {
		return nil, apperr.NewValidationError("hours",
			fmt.Sprintf("0 <= open(%d) < close(%d) <= 24 である必要があります", openHour, closeHour))
	}
	if slotDuration <= 0 {
		return nil, apperr.NewValidationError("slot_duration", "0より大きい必要があります")
	}
	if slotDuration%time.Minute != 0 {
		return nil, apperr.NewValidationError("slot_duration", "分単位である必要があります")
	}

	step := Clock(slotDuration / time.Minute)
	end := At(closeHour, 0)
	slots := make([]Slot, 0, int(end-At(openHour, 0))/int(step))
	for start := At(openHour, 0); start+step <= end; start += step {
		slots = append(slots, Slot{Start: start, End: start + step})
	}
	return slots, nil
}

// Covering は s をちょうど敷き詰めるグリッド上の連続枠を返す。
// 境界がグリッドに揃っていなければ false を返す。
func Covering(grid []Slot, s Slot) ([]Slot, bool) {
	var covered []Slot
	next := s.Start
	for _, g := range grid {
		if g.End <= s.Start {
			continue
		}
		if g.Start != next {
			return nil, false
		}
		covered = append(covered, g)
		next = g.End
		if next == s.End {
			return covered, true
		}
		if next > s.End {
			return nil, false
		}
	}
	return nil, false
}
