// Package payment は決済代行サービスへの接続を提供する
package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/picklefed/court-reservation/internal/config"
	paydomain "github.com/picklefed/court-reservation/internal/domain/payment"
)

// NoopGateway は外部決済を行わず常に承認する。開発環境用
type NoopGateway struct{}

func (NoopGateway) Charge(ctx context.Context, _ paydomain.ChargeRequest) (paydomain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return paydomain.Receipt{}, err
	}
	return paydomain.Receipt{Success: true, Reference: "noop_" + uuid.New().String()}, nil
}

// NewGateway は設定されたプロバイダーの決済ゲートウェイを返す
func NewGateway(cfg config.PaymentConfig) (paydomain.Gateway, error) {
	switch cfg.Provider {
	case config.PaymentProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY が設定されていません")
		}
		return NewStripeGateway(cfg.StripeSecretKey, cfg.Currency), nil
	case config.PaymentProviderOmise:
		return NewOmiseGateway(cfg.OmisePublicKey, cfg.OmiseSecretKey, cfg.Currency)
	case config.PaymentProviderNone, "":
		return NoopGateway{}, nil
	default:
		return nil, fmt.Errorf("未対応の決済プロバイダーです: %s", cfg.Provider)
	}
}
