package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	Email         string
	From          *time.Time
	To            *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	//stripe_session_idをキーに決済確定を1文で反映
	ConfirmPayment(ctx context.Context, sessionID string, c model.PaymentConfirmation) error

	//payment_intent_idをキーに更新。該当なし（未知の支払い、または既に確定済み）はErrNotFound
	MarkPaymentFailed(ctx context.Context, paymentIntentID string) error
	MarkRefunded(ctx context.Context, paymentIntentID string) error

	UpdateFulfillment(ctx context.Context, orderID string, u model.FulfillmentUpdate) error
}
