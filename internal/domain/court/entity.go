package court

import (
	"time"

	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

// Type はコートの種別を表す
type Type string

const (
	TypeIndoor  Type = "indoor"
	TypeOutdoor Type = "outdoor"
	TypeCovered Type = "covered"
)

// 営業時間と枠の既定値
const (
	DefaultOpenHour     = 6
	DefaultCloseHour    = 22
	DefaultSlotDuration = 2 * time.Hour
)

// Court はクラブが所有するコート
type Court struct {
	ID               string
	ClubID           string
	Name             string
	Type             Type
	Surface          string
	HourlyRate       int64 // 一般料金（最小通貨単位/時間）
	MemberRate       int64 // 会員料金（最小通貨単位/時間）
	IsAvailable      bool
	IsMaintenance    bool
	MaintenanceStart *time.Time
	MaintenanceEnd   *time.Time
	OpenHour         int
	CloseHour        int
	SlotDuration     time.Duration
	Location         *time.Location // 会場のタイムゾーン
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Grid はコートの営業時間と枠の長さから予約枠を生成する
func (c *Court) Grid() ([]timeslot.Slot, error) {
	open, closeHour, d := c.OpenHour, c.CloseHour, c.SlotDuration
	if open == 0 && closeHour == 0 {
		open, closeHour = DefaultOpenHour, DefaultCloseHour
	}
	if d == 0 {
		d = DefaultSlotDuration
	}
	return timeslot.Generate(open, closeHour, d)
}

// Zone は枠の壁時計時刻を解釈するタイムゾーンを返す。未設定ならUTC
func (c *Court) Zone() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// InMaintenance は枠がメンテナンスに掛かるかを返す。
// 期間未設定のメンテナンス中コートは終日利用不可として扱う。
func (c *Court) InMaintenance(date time.Time, slot timeslot.Slot) bool {
	if !c.IsMaintenance {
		return false
	}
	if c.MaintenanceStart == nil || c.MaintenanceEnd == nil {
		return true
	}
	start, end := slot.On(date, c.Zone())
	return start.Before(*c.MaintenanceEnd) && c.MaintenanceStart.Before(end)
}

// Validate はコートの料金設定を検証する
func (c *Court) Validate() error {
	if c.ID == "" {
		return ErrCourtIDRequired
	}
	if c.HourlyRate < 0 || c.MemberRate < 0 {
		return ErrInvalidRate
	}
	switch c.Type {
	case TypeIndoor, TypeOutdoor, TypeCovered, "":
	default:
		return ErrInvalidType
	}
	return nil
}
