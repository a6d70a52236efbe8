package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	paydomain "github.com/picklefed/court-reservation/internal/domain/payment"
)

// paymentIntents は Stripe PaymentIntent API のうち利用する機能
type paymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway は Stripe の PaymentIntent を即時確定して決済する
type StripeGateway struct {
	intents  paymentIntents
	currency string
}

// NewStripeGateway はシークレットキーから StripeGateway を作成する
func NewStripeGateway(secretKey, currency string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{intents: sc.PaymentIntents, currency: strings.ToLower(currency)}
}

// Charge は支払い方法 req.Method で決済する。Method は PaymentMethod ID
func (g *StripeGateway) Charge(ctx context.Context, req paydomain.ChargeRequest) (paydomain.Receipt, error) {
	if req.Amount <= 0 {
		return paydomain.Receipt{}, fmt.Errorf("決済金額が不正です: %d", req.Amount)
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(req.Method),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return paydomain.Receipt{Success: false, Message: stripeErr.Msg}, nil
		}
		return paydomain.Receipt{}, fmt.Errorf("Stripe決済に失敗: %w", err)
	}

	receipt := paydomain.Receipt{Reference: pi.ID, Success: pi.Status == stripe.PaymentIntentStatusSucceeded}
	if !receipt.Success {
		receipt.Message = fmt.Sprintf("決済が完了していません: %s", pi.Status)
	}
	return receipt, nil
}

var _ paydomain.Gateway = (*StripeGateway)(nil)
