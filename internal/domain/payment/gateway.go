// Package payment は決済代行への委譲口を定義する
package payment

import (
	"context"
	"errors"
)

// ErrDeclined は決済が拒否されたことを表す
var ErrDeclined = errors.New("決済が拒否されました")

// Receipt は決済結果
type Receipt struct {
	Success   bool
	Reference string
	Message   string
}

// ChargeRequest は決済の依頼内容。Amount は最小通貨単位
type ChargeRequest struct {
	Amount int64
	Method string
	// IdempotencyKey が同じ依頼は決済代行側で一度だけ処理される
	IdempotencyKey string
	Metadata       map[string]string
}

// Gateway は決済の実行を提供する
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
}
