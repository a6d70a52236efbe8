package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	paydomain "github.com/picklefed/court-reservation/internal/domain/payment"
)

// Omise の課金状態
const omiseChargeSuccessful = "successful"

type createChargeFunc func(op *operations.CreateCharge) (*omise.Charge, error)

// OmiseGateway は Omise のカードトークンで課金する
type OmiseGateway struct {
	create   createChargeFunc
	currency string
}

// NewOmiseGateway は公開鍵とシークレットキーから OmiseGateway を作成する
func NewOmiseGateway(publicKey, secretKey, currency string) (*OmiseGateway, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("Omiseクライアント作成に失敗: %w", err)
	}
	create := func(op *operations.CreateCharge) (*omise.Charge, error) {
		ch := &omise.Charge{}
		if err := c.Do(ch, op); err != nil {
			return nil, err
		}
		return ch, nil
	}
	return &OmiseGateway{create: create, currency: strings.ToLower(currency)}, nil
}

// Charge はカードトークン req.Method で課金する。
// 冪等キーはメタデータ idempotency_key として記録し、照合に使う
func (g *OmiseGateway) Charge(ctx context.Context, req paydomain.ChargeRequest) (paydomain.Receipt, error) {
	if req.Amount <= 0 {
		return paydomain.Receipt{}, fmt.Errorf("決済金額が不正です: %d", req.Amount)
	}
	if err := ctx.Err(); err != nil {
		return paydomain.Receipt{}, err
	}
	meta := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if req.IdempotencyKey != "" {
		meta["idempotency_key"] = req.IdempotencyKey
	}

	ch, err := g.create(&operations.CreateCharge{
		Amount:   req.Amount,
		Currency: g.currency,
		Card:     req.Method,
		Metadata: meta,
	})
	if err != nil {
		return paydomain.Receipt{}, fmt.Errorf("Omise決済に失敗: %w", err)
	}

	receipt := paydomain.Receipt{Reference: ch.ID, Success: string(ch.Status) == omiseChargeSuccessful}
	if !receipt.Success {
		receipt.Message = fmt.Sprintf("決済が完了していません: %s", ch.Status)
		if ch.FailureMessage != nil {
			receipt.Message = *ch.FailureMessage
		}
	}
	return receipt, nil
}

var _ paydomain.Gateway = (*OmiseGateway)(nil)
