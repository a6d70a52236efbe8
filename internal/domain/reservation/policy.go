package reservation

import "time"

// CancellationPolicy は返金額を決める。(最終金額, 開始までの時間) の純粋関数であること
type CancellationPolicy interface {
	Refund(finalAmount int64, untilStart time.Duration) int64
}

// CancellationPolicyFunc は関数をCancellationPolicyとして使う
type CancellationPolicyFunc func(finalAmount int64, untilStart time.Duration) int64

func (f CancellationPolicyFunc) Refund(finalAmount int64, untilStart time.Duration) int64 {
	return f(finalAmount, untilStart)
}

// NoRefundPolicy は常に返金しない
type NoRefundPolicy struct{}

func (NoRefundPolicy) Refund(int64, time.Duration) int64 { return 0 }

// TieredPolicy は開始までの時間で段階的に返金する。
// FullRefundBefore 以上前なら全額、PartialRefundBefore 以上前なら PartialPercent%、それ以降は返金なし。
type TieredPolicy struct {
	FullRefundBefore    time.Duration
	PartialRefundBefore time.Duration
	PartialPercent      int
}

// DefaultPolicy は24時間前まで全額、2時間前まで50%の既定ポリシー
func DefaultPolicy() TieredPolicy {
	return TieredPolicy{
		FullRefundBefore:    24 * time.Hour,
		PartialRefundBefore: 2 * time.Hour,
		PartialPercent:      50,
	}
}

func (p TieredPolicy) Refund(finalAmount int64, untilStart time.Duration) int64 {
	switch {
	case untilStart < 0:
		return 0
	case untilStart >= p.FullRefundBefore:
		return finalAmount
	case untilStart >= p.PartialRefundBefore:
		return finalAmount * int64(p.PartialPercent) / 100
	default:
		return 0
	}
}
