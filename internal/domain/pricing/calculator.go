// Package pricing は予約料金を計算する
package pricing

import (
	"time"

	"github.com/picklefed/court-reservation/internal/domain/court"
	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

// Quote は料金の内訳
type Quote struct {
	BaseRate       int64 // 適用された時間単価
	HourlyRate     int64 // 一般料金の時間単価
	// TotalAmount は会員割引前の金額。一般料金×時間にゲスト追加料金を加える
	TotalAmount int64
	// MemberDiscount は会員の場合の (一般料金 - 会員料金)×時間
	MemberDiscount int64
	GuestSurcharge int64
	FinalAmount    int64 // TotalAmount - MemberDiscount
}

// ToPricing は予約に保存する料金スナップショットへ変換する
func (q Quote) ToPricing() reservation.Pricing {
	return reservation.Pricing{
		HourlyRate:     q.BaseRate,
		TotalAmount:    q.TotalAmount,
		MemberDiscount: q.MemberDiscount,
		FinalAmount:    q.FinalAmount,
	}
}

// GuestSurcharge はゲスト人数に応じた追加料金を計算する
type GuestSurcharge interface {
	Surcharge(c *court.Court, duration time.Duration, guestCount int) int64
}

// GuestSurchargeFunc は関数をGuestSurchargeとして扱う
type GuestSurchargeFunc func(c *court.Court, duration time.Duration, guestCount int) int64

func (f GuestSurchargeFunc) Surcharge(c *court.Court, duration time.Duration, guestCount int) int64 {
	return f(c, duration, guestCount)
}

// NoSurcharge は追加料金なし
type NoSurcharge struct{}

func (NoSurcharge) Surcharge(*court.Court, time.Duration, int) int64 { return 0 }

// PerGuestPerHour はゲスト1人1時間あたりの定額追加料金
type PerGuestPerHour int64

func (p PerGuestPerHour) Surcharge(_ *court.Court, duration time.Duration, guestCount int) int64 {
	return prorate(int64(p)*int64(guestCount), duration)
}

// Calculator は決定的な料金計算を行う
type Calculator struct {
	Surcharge GuestSurcharge
}

// NewCalculator はCalculatorを作成する。sがnilなら追加料金なし
func NewCalculator(s GuestSurcharge) *Calculator {
	if s == nil {
		s = NoSurcharge{}
	}
	return &Calculator{Surcharge: s}
}

// Price は料金を計算する。
// total は一般料金×時間（+ゲスト追加料金）、会員は一般料金との差額を割引として計上する。
func (c *Calculator) Price(ct *court.Court, duration time.Duration, guestCount int, isMember bool) (Quote, error) {
	if duration <= 0 {
		return Quote{}, apperr.NewValidationError("duration", "0より大きい必要があります")
	}
	if guestCount < 0 {
		return Quote{}, apperr.NewValidationError("guest_count", "0以上である必要があります")
	}
	if ct.HourlyRate < 0 || ct.MemberRate < 0 {
		return Quote{}, apperr.NewValidationError("rate", "料金は0以上である必要があります")
	}

	base := ct.HourlyRate
	var discount int64
	if isMember && ct.MemberRate < ct.HourlyRate {
		base = ct.MemberRate
		discount = prorate(ct.HourlyRate-ct.MemberRate, duration)
	}

	var surcharge int64
	if c.Surcharge != nil && guestCount > 0 {
		surcharge = max(c.Surcharge.Surcharge(ct, duration, guestCount), 0)
	}

	total := prorate(ct.HourlyRate, duration) + surcharge
	return Quote{
		BaseRate:       base,
		HourlyRate:     ct.HourlyRate,
		TotalAmount:    total,
		MemberDiscount: discount,
		GuestSurcharge: surcharge,
		FinalAmount:    total - discount,
	}, nil
}

// prorate は時間単価を分単位で按分する（端数切り捨て）
func prorate(hourly int64, d time.Duration) int64 {
	return hourly * int64(d/time.Minute) / 60
}
