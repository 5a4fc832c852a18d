package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/domain/webhook"
	repo "storefront/internal/repository"
	"storefront/internal/retry"

	"github.com/labstack/gommon/log"
)

// 署名検証（Stripe）
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (webhook.Envelope, error)
}

// 決済完了後のカート削除（失敗しても返さない）
type CartClearer interface {
	Clear(ctx context.Context, userID, sessionID string)
}

type WebhookUsecase struct {
	verifier WebhookVerifier
	orders   repo.OrderRepository
	items    repo.OrderItemRepository
	events   repo.WebhookEventStore
	carts    CartClearer
	mailer   Mailer
	log      *log.Logger

	emailPolicy retry.Policy
}

func NewWebhookUsecase(
	verifier WebhookVerifier,
	orders repo.OrderRepository,
	items repo.OrderItemRepository,
	events repo.WebhookEventStore,
	carts CartClearer,
	mailer Mailer,
	logger *log.Logger,
) *WebhookUsecase {
	return &WebhookUsecase{
		verifier:    verifier,
		orders:      orders,
		items:       items,
		events:      events,
		carts:       carts,
		mailer:      mailer,
		log:         logger,
		emailPolicy: retry.EmailPolicy(),
	}
}

// Process は署名を検証してイベントを処理する。
// 400: 署名なし/不正、payload不正 / 404: 対象注文なし / 500: それ以外
func (u *WebhookUsecase) Process(ctx context.Context, payload []byte, signatureHeader string) error {
	env, err := u.verifier.Verify(payload, signatureHeader)
	if err != nil {
		u.log.Warnf("webhook rejected: %v", err)
		return NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ev, err := webhook.Parse(env)
	if err != nil {
		u.log.Warnf("webhook %s (%s) rejected: %v", env.ID, env.Type, err)
		return NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return u.Handle(ctx, ev)
}

// Handle は検証済みイベントを種別ごとに処理する。
func (u *WebhookUsecase) Handle(ctx context.Context, ev webhook.Event) error {
	//再送は副作用なしで200
	seen, err := u.events.Seen(ctx, ev.EventID())
	if err != nil {
		u.log.Warnf("webhook dedupe lookup failed for %s: %v", ev.EventID(), err)
	}
	if seen {
		u.log.Infof("webhook %s (%s) already processed", ev.EventID(), ev.EventType())
		return nil
	}

	switch e := ev.(type) {
	case webhook.CheckoutSessionCompleted:
		err = u.checkoutCompleted(ctx, e)
	case webhook.PaymentIntentSucceeded:
		u.log.Infof("payment intent %s succeeded", e.PaymentIntentID)
	case webhook.PaymentIntentFailed:
		err = u.paymentFailed(ctx, e)
	case webhook.ChargeRefunded:
		err = u.chargeRefunded(ctx, e)
	default:
		u.log.Infof("unhandled webhook event type %s (%s)", ev.EventType(), ev.EventID())
	}
	if err != nil {
		return err
	}

	if err := u.events.MarkProcessed(ctx, ev.EventID()); err != nil {
		u.log.Warnf("webhook dedupe mark failed for %s: %v", ev.EventID(), err)
	}
	return nil
}

func (u *WebhookUsecase) checkoutCompleted(ctx context.Context, e webhook.CheckoutSessionCompleted) error {
	order, err := u.orders.FindBySessionID(ctx, e.SessionID)
	if errors.Is(err, repo.ErrNotFound) {
		u.log.Errorf("no order for checkout session %s", e.SessionID)
		return NewHTTPError(http.StatusNotFound, "order not found for session: "+e.SessionID)
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	c := model.PaymentConfirmation{
		PaymentIntentID: e.PaymentIntentID,
		ShippingCents:   e.ShippingCents,
		TaxCents:        e.TaxCents,
		DiscountCents:   e.DiscountCents,
		Address:         confirmedAddress(e),
	}
	if e.Customer != nil {
		c.Email = e.Customer.Email
	}

	if err := u.orders.ConfirmPayment(ctx, e.SessionID, c); err != nil {
		u.log.Errorf("confirm payment for order %s: %v", order.ID, err)
		return NewHTTPError(http.StatusInternalServerError, "failed to update order")
	}

	u.log.Infoj(log.JSON{
		"msg":          "payment confirmed",
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"session_id":   e.SessionID,
		"shipping":     e.ShippingCents,
		"tax":          e.TaxCents,
		"discount":     e.DiscountCents,
	})

	userID, guestToken := cartOwnerOf(order, e.Metadata)
	u.carts.Clear(ctx, userID, guestToken)

	//ここから先の失敗は決済確定を巻き戻さない
	confirmed, err := u.orders.FindByID(ctx, order.ID)
	if err != nil {
		u.log.Errorf("reload order %s for confirmation email: %v", order.ID, err)
		return nil
	}
	items, err := u.items.ListByOrderID(ctx, order.ID)
	if err != nil {
		u.log.Errorf("load items of order %s for confirmation email: %v", order.ID, err)
		return nil
	}

	err = u.emailPolicy.Do(ctx, func(ctx context.Context) error {
		return u.mailer.SendOrderConfirmation(ctx, confirmed, items)
	}, func(attempt int, err error) {
		u.log.Warnf("confirmation email for order %s failed (attempt %d): %v", order.ID, attempt, err)
	})
	if err != nil {
		u.log.Errorf("confirmation email for order %s not sent: %v", order.ID, err)
	}
	return nil
}

func (u *WebhookUsecase) paymentFailed(ctx context.Context, e webhook.PaymentIntentFailed) error {
	err := u.orders.MarkPaymentFailed(ctx, e.PaymentIntentID)
	if errors.Is(err, repo.ErrNotFound) {
		//注文との紐付け前の失敗か、支払い済みの後に遅れて届いた失敗
		u.log.Warnf("payment failed for unknown or already settled intent %s", e.PaymentIntentID)
		return nil
	}
	if err != nil {
		u.log.Errorf("mark payment failed for intent %s: %v", e.PaymentIntentID, err)
		return NewHTTPError(http.StatusInternalServerError, "failed to update order")
	}
	u.log.Infof("payment intent %s failed: %s", e.PaymentIntentID, e.FailureMessage)
	return nil
}

func (u *WebhookUsecase) chargeRefunded(ctx context.Context, e webhook.ChargeRefunded) error {
	//一部返金は注文を変えない
	if !e.FullyRefunded {
		u.log.Infoj(log.JSON{
			"msg":             "partial refund, order left unchanged",
			"charge_id":       e.ChargeID,
			"payment_intent":  e.PaymentIntentID,
			"amount":          e.AmountCents,
			"amount_refunded": e.AmountRefundedCents,
		})
		return nil
	}

	err := u.orders.MarkRefunded(ctx, e.PaymentIntentID)
	if errors.Is(err, repo.ErrNotFound) {
		u.log.Warnf("refund for unknown intent %s (charge %s)", e.PaymentIntentID, e.ChargeID)
		return nil
	}
	if err != nil {
		u.log.Errorf("mark refunded for intent %s: %v", e.PaymentIntentID, err)
		return NewHTTPError(http.StatusInternalServerError, "failed to update order")
	}
	u.log.Infof("charge %s refunded (intent %s)", e.ChargeID, e.PaymentIntentID)
	return nil
}

// 配送先はshipping_details優先、無ければcustomer_details
func confirmedAddress(e webhook.CheckoutSessionCompleted) *model.ShippingAddress {
	var name, phone string
	var addr *webhook.Address

	if e.Shipping != nil && e.Shipping.Address != nil {
		name, phone, addr = e.Shipping.Name, e.Shipping.Phone, e.Shipping.Address
	} else if e.Customer != nil && e.Customer.Address != nil {
		name, phone, addr = e.Customer.Name, e.Customer.Phone, e.Customer.Address
	}
	if addr == nil {
		return nil
	}

	first, last := splitName(name)
	a := model.ShippingAddress{
		FirstName:  first,
		LastName:   last,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      phone,
	}
	if a.IsZero() {
		return nil
	}
	return &a
}

// 最初の空白で姓名を分ける
func splitName(name string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first, strings.TrimSpace(last)
}

func cartOwnerOf(order model.Order, metadata map[string]string) (string, string) {
	var userID, guest string
	if order.UserID != nil {
		userID = *order.UserID
	} else if v := metadata["user_id"]; v != "" {
		userID = v
	}
	if order.CartSessionID != nil {
		guest = *order.CartSessionID
	} else if v := metadata["cart_session_id"]; v != "" {
		guest = v
	}
	return userID, guest
}
