package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// order_numberの衝突時に作り直す回数
const orderNumberAttempts = 3

// usecaseがValidatorInterfaceに依存する約束
type CheckoutValidator interface {
	ValidateCheckout(ctx context.Context, in CheckoutInput) error
}

type CheckoutLine struct {
	ProductID string
	VariantID *string
	Quantity  int64
}

type CheckoutInput struct {
	Items           []CheckoutLine
	CustomerEmail   string
	ShippingAddress *model.ShippingAddress
	SuccessURL      string
	CancelURL       string
	// ログイン中でもブラウザに残っているゲストカートのトークン（決済後に消す）
	CartSessionID string
}

type CheckoutOutput struct {
	URL         string `json:"url"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	SessionID   string `json:"session_id"`
}

type CheckoutUsecase struct {
	products  repo.ProductRepository
	tx        repo.TransactionManager
	gateway   PaymentGateway
	validator CheckoutValidator
	clock     Clock
	log       *log.Logger

	newOrderNumber func() string
}

func NewCheckoutUsecase(
	products repo.ProductRepository,
	tx repo.TransactionManager,
	gateway PaymentGateway,
	validator CheckoutValidator,
	clock Clock,
	logger *log.Logger,
) *CheckoutUsecase {
	u := &CheckoutUsecase{
		products:  products,
		tx:        tx,
		gateway:   gateway,
		validator: validator,
		clock:     clock,
		log:       logger,
	}
	u.newOrderNumber = func() string { return NewOrderNumber(u.clock.Now()) }
	return u
}

// サーバー側で価格を確定した1行
type pricedLine struct {
	product model.Product
	variant *model.ProductVariant
	qty     int64
	unit    int64
}

func (l pricedLine) total() int64 {
	return l.unit * l.qty
}

func (l pricedLine) displayName() string {
	if l.variant != nil && l.variant.Name != "" {
		return l.product.Name + " - " + l.variant.Name
	}
	return l.product.Name
}

// CreateSession は価格を再計算し、Stripeのセッションを作ってから
// pending注文と明細を保存する。
func (u *CheckoutUsecase) CreateSession(ctx context.Context, owner model.CartOwner, in CheckoutInput) (CheckoutOutput, error) {
	if err := u.validator.ValidateCheckout(ctx, in); err != nil {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}

	//クライアントの価格は使わない
	lines, subtotal, err := u.priceLines(ctx, in.Items)
	if err != nil {
		return CheckoutOutput{}, err
	}

	//ゲストならowner自身のトークン、ログイン中なら残っているゲストトークン
	guestToken := owner.SessionID
	if guestToken == "" {
		guestToken = strings.TrimSpace(in.CartSessionID)
	}

	metadata := map[string]string{}
	if owner.UserID != "" {
		metadata["user_id"] = owner.UserID
	}
	if guestToken != "" {
		metadata["cart_session_id"] = guestToken
	}

	gatewayItems := make([]GatewayLineItem, 0, len(lines))
	for _, l := range lines {
		gatewayItems = append(gatewayItems, GatewayLineItem{
			Name:            l.displayName(),
			UnitAmountCents: l.unit,
			Quantity:        l.qty,
		})
	}

	session, err := u.gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		LineItems:     gatewayItems,
		CustomerEmail: in.CustomerEmail,
		SuccessURL:    in.SuccessURL,
		CancelURL:     in.CancelURL,
		Metadata:      metadata,
	})
	if err != nil {
		u.log.Errorf("create checkout session: %v", err)
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "failed to create checkout session")
	}

	order := model.Order{
		Email:           in.CustomerEmail,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		SubtotalCents:   subtotal,
		TotalCents:      subtotal, // 送料・税はwebhookで確定
		StripeSessionID: session.ID,
	}
	if in.ShippingAddress != nil {
		order.ShippingAddress = *in.ShippingAddress
	}
	if owner.UserID != "" {
		uid := owner.UserID
		order.UserID = &uid
	}
	if guestToken != "" {
		order.CartSessionID = &guestToken
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		item := model.OrderItem{
			ProductID:       l.product.ID,
			Quantity:        l.qty,
			UnitPriceCents:  l.unit,
			TotalPriceCents: l.total(),
			ProductName:     l.product.Name,
		}
		if l.variant != nil {
			vid, vname := l.variant.ID, l.variant.Name
			item.VariantID = &vid
			item.VariantName = &vname
		}
		items = append(items, item)
	}

	if err := u.persist(ctx, &order, items); err != nil {
		//Stripe側のセッションは残る（支払われなければ期限切れになる）
		u.log.Errorj(log.JSON{
			"msg":        "order persist failed after checkout session was created",
			"session_id": session.ID,
			"error":      err.Error(),
		})
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "failed to create order")
	}

	u.log.Infoj(log.JSON{
		"msg":          "checkout session created",
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"session_id":   session.ID,
		"subtotal":     subtotal,
		"guest":        order.UserID == nil,
	})

	return CheckoutOutput{
		URL:         session.URL,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SessionID:   session.ID,
	}, nil
}

func (u *CheckoutUsecase) priceLines(ctx context.Context, in []CheckoutLine) ([]pricedLine, int64, error) {
	lines := make([]pricedLine, 0, len(in))
	var subtotal int64

	for _, it := range in {
		p, err := u.products.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			return nil, 0, NewHTTPError(http.StatusNotFound, "product not found: "+it.ProductID)
		}
		if err != nil {
			return nil, 0, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		line := pricedLine{product: p, qty: it.Quantity}
		if it.VariantID != nil && *it.VariantID != "" {
			v, err := u.products.FindVariant(ctx, p.ID, *it.VariantID)
			if errors.Is(err, repo.ErrNotFound) {
				return nil, 0, NewHTTPError(http.StatusNotFound, "variant not found: "+*it.VariantID)
			}
			if err != nil {
				return nil, 0, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			line.variant = &v
		}

		line.unit = model.UnitPrice(p, line.variant)
		subtotal += line.total()
		lines = append(lines, line)
	}
	return lines, subtotal, nil
}

// 注文と明細は1トランザクションで保存する
func (u *CheckoutUsecase) persist(ctx context.Context, order *model.Order, items []model.OrderItem) error {
	var err error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order.ID = uuid.NewString()
		order.OrderNumber = u.newOrderNumber()

		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			if err := r.Orders().Create(ctx, order); err != nil {
				return err
			}
			return r.OrderItems().CreateBulk(ctx, order.ID, items)
		})
		if !errors.Is(err, repo.ErrDuplicate) {
			return err
		}
		u.log.Warnf("order number %s collided (attempt %d)", order.OrderNumber, attempt)
	}
	return fmt.Errorf("order number: %w", err)
}
