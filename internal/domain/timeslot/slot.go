// Package timeslot はコートの予約枠（タイムスロット）を扱う
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

// DateLayout は予約日の文字列表現
const DateLayout = "2006-01-02"

// MinutesPerDay は1日の分数（24:00 を終端として許容する）
const MinutesPerDay = 24 * 60

// Clock は0時からの経過分で表す時刻
type Clock int

// At は時・分からClockを作成する
func At(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// Hour は時を返す
func (c Clock) Hour() int { return int(c) / 60 }

// Minute は分を返す
func (c Clock) Minute() int { return int(c) % 60 }

// String は HH:MM 形式を返す
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// ParseClock は HH:MM 形式を解析する
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, apperr.NewValidationError("time", fmt.Sprintf("HH:MM形式ではありません: %q", s))
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, apperr.NewValidationError("time", fmt.Sprintf("時が不正です: %q", s))
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, apperr.NewValidationError("time", fmt.Sprintf("分が不正です: %q", s))
	}
	c := At(h, m)
	if h < 0 || c > MinutesPerDay {
		return 0, apperr.NewValidationError("time", fmt.Sprintf("範囲外の時刻です: %q", s))
	}
	return c, nil
}

// Slot は [Start, End) の半開区間
type Slot struct {
	Start Clock
	End   Clock
}

// New はSlotを作成する
func New(start, end Clock) (Slot, error) {
	s := Slot{Start: start, End: end}
	if err := s.Validate(); err != nil {
		return Slot{}, err
	}
	return s, nil
}

// ParseSlot は "08:00-10:00" 形式を解析する
func ParseSlot(s string) (Slot, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Slot{}, apperr.NewValidationError("slot", fmt.Sprintf("HH:MM-HH:MM形式ではありません: %q", s))
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return Slot{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return Slot{}, err
	}
	return New(start, end)
}

// Validate は開始 < 終了 かつ1日の範囲内であることを検証する
func (s Slot) Validate() error {
	if s.Start < 0 || s.End > MinutesPerDay {
		return apperr.NewValidationError("slot", "1日の範囲外です")
	}
	if s.Start >= s.End {
		return apperr.NewValidationError("slot", "開始時刻は終了時刻より前である必要があります")
	}
	return nil
}

// Duration は枠の長さを返す
func (s Slot) Duration() time.Duration {
	return time.Duration(s.End-s.Start) * time.Minute
}

// Hours は枠の長さを時間単位で返す
func (s Slot) Hours() float64 {
	return s.Duration().Hours()
}

// Overlaps は半開区間として重なるかを返す（連続する枠は重ならない）
func (s Slot) Overlaps(o Slot) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains はoが完全にsの内側にあるかを返す
func (s Slot) Contains(o Slot) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// On は date の暦日を loc の壁時計時刻として絶対時刻に変換する。loc が nil なら UTC
func (s Slot) On(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, int(s.Start), 0, 0, loc), time.Date(y, m, d, 0, int(s.End), 0, 0, loc)
}

func (s Slot) String() string {
	return s.Start.String() + "-" + s.End.String()
}

// NormalizeDate は日付の0時に揃える
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate は YYYY-MM-DD 形式を暦日として解析する。
// 戻り値はUTC 0時の日付キーで、壁時計時刻への変換は Slot.On で会場のタイムゾーンを指定する
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperr.NewValidationError("date", fmt.Sprintf("YYYY-MM-DD形式ではありません: %q", s))
	}
	return t, nil
}

// DateKey は日付の比較キーを返す
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
