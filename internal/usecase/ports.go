package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 決済プロバイダーに渡す明細
type GatewayLineItem struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

type CheckoutSessionRequest struct {
	LineItems     []GatewayLineItem
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// 決済プロバイダー（Stripe）
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
}

// メール送信
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order model.Order, items []model.OrderItem) error
	SendStatusUpdate(ctx context.Context, order model.Order, previous model.OrderStatus) error
	SendShippingNotification(ctx context.Context, n model.ShippingNotification) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
