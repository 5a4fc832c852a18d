package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 顧客向けの一覧は固定件数
const myOrdersLimit = 50

type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

type OrderItemOutput struct {
	ProductID   string  `json:"product_id"`
	VariantID   *string `json:"variant_id,omitempty"`
	Name        string  `json:"name"`
	VariantName *string `json:"variant_name,omitempty"`
	UnitPrice   int64   `json:"unit_price_cents"`
	TotalPrice  int64   `json:"total_price_cents"`
	Quantity    int64   `json:"quantity"`
}

type OrderOutput struct {
	ID              string                `json:"id"`
	OrderNumber     string                `json:"order_number"`
	UserID          *string               `json:"user_id"`
	Email           string                `json:"email"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"payment_status"`
	Subtotal        int64                 `json:"subtotal_cents"`
	Shipping        int64                 `json:"shipping_cents"`
	Tax             int64                 `json:"tax_cents"`
	Discount        int64                 `json:"discount_cents"`
	Total           int64                 `json:"total_cents"`
	TrackingNumber  *string               `json:"tracking_number"`
	TrackingURL     *string               `json:"tracking_url"`
	Carrier         *string               `json:"carrier"`
	AdminNotes      *string               `json:"admin_notes,omitempty"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time             `json:"created_at"`
	ShippedAt       *time.Time            `json:"shipped_at"`
	DeliveredAt     *time.Time            `json:"delivered_at"`
	Items           []OrderItemOutput     `json:"items"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string) ([]OrderOutput, error) {
	if userID == "" {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, myOrdersLimit)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			out := toOrderOutput(o, items)
			//管理メモは顧客に見せない
			out.AdminNotes = nil
			outs = append(outs, out)
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if userID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID == nil || *o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		out.AdminNotes = nil
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 決済完了ページ用（session_idを知っている人だけが見られる）
func (u *OrderUsecase) GetBySessionID(ctx context.Context, sessionID string) (OrderOutput, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid session_id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindBySessionID(ctx, sessionID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		out.AdminNotes = nil
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			Name:        it.ProductName,
			VariantName: it.VariantName,
			UnitPrice:   it.UnitPriceCents,
			TotalPrice:  it.TotalPriceCents,
			Quantity:    it.Quantity,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Email:           o.Email,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Subtotal:        o.SubtotalCents,
		Shipping:        o.ShippingCents,
		Tax:             o.TaxCents,
		Discount:        o.DiscountCents,
		Total:           o.TotalCents,
		TrackingNumber:  o.TrackingNumber,
		TrackingURL:     o.TrackingURL,
		Carrier:         o.Carrier,
		AdminNotes:      o.AdminNotes,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		Items:           outItems,
	}
}
