// Package webhook は決済プロバイダーのwebhookイベントを型付きで表す。
// イベント種別ごとにpayloadを検証してから値を取り出す。
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

const (
	TypeCheckoutSessionCompleted = "checkout.session.completed"
	TypePaymentIntentSucceeded   = "payment_intent.succeeded"
	TypePaymentIntentFailed      = "payment_intent.payment_failed"
	TypeChargeRefunded           = "charge.refunded"
)

// 署名検証後のイベント（data.objectは未解析）
type Envelope struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// Event はイベント種別ごとの型の共通インターフェース。
type Event interface {
	EventID() string
	EventType() string
}

type base struct {
	ID   string
	Type string
}

func (b base) EventID() string   { return b.ID }
func (b base) EventType() string { return b.Type }

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type CustomerDetails struct {
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address"`
}

type ShippingDetails struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address"`
}

type CheckoutSessionCompleted struct {
	base
	SessionID       string
	PaymentIntentID string
	ShippingCents   int64
	TaxCents        int64
	DiscountCents   int64
	AmountTotal     int64
	Customer        *CustomerDetails
	Shipping        *ShippingDetails
	Metadata        map[string]string
}

type PaymentIntentSucceeded struct {
	base
	PaymentIntentID string
}

type PaymentIntentFailed struct {
	base
	PaymentIntentID string
	FailureMessage  string
}

type ChargeRefunded struct {
	base
	ChargeID        string
	PaymentIntentID string
	// 全額返金ならtrue。一部返金でもcharge.refundedは届く
	FullyRefunded       bool
	AmountCents         int64
	AmountRefundedCents int64
}

// 扱わないイベント
type Unhandled struct {
	base
}

// Parse は Envelope をイベント種別ごとの型に変換する。
func Parse(env Envelope) (Event, error) {
	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrMalformedPayload)
	}
	b := base{ID: env.ID, Type: env.Type}

	switch env.Type {
	case TypeCheckoutSessionCompleted:
		return parseCheckoutSession(b, env.Object)
	case TypePaymentIntentSucceeded:
		pi, err := parsePaymentIntent(env.Object)
		if err != nil {
			return nil, err
		}
		return PaymentIntentSucceeded{base: b, PaymentIntentID: pi.ID}, nil
	case TypePaymentIntentFailed:
		pi, err := parsePaymentIntent(env.Object)
		if err != nil {
			return nil, err
		}
		ev := PaymentIntentFailed{base: b, PaymentIntentID: pi.ID}
		if pi.LastPaymentError != nil {
			ev.FailureMessage = pi.LastPaymentError.Message
		}
		return ev, nil
	case TypeChargeRefunded:
		return parseCharge(b, env.Object)
	default:
		return Unhandled{base: b}, nil
	}
}

// 展開されていればオブジェクト、されていなければID文字列
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type checkoutSessionPayload struct {
	ID            string       `json:"id"`
	Object        string       `json:"object"`
	PaymentIntent expandableID `json:"payment_intent"`
	AmountTotal   int64        `json:"amount_total"`
	TotalDetails  *struct {
		AmountShipping int64 `json:"amount_shipping"`
		AmountTax      int64 `json:"amount_tax"`
		AmountDiscount int64 `json:"amount_discount"`
	} `json:"total_details"`
	ShippingCost *struct {
		AmountTotal int64 `json:"amount_total"`
	} `json:"shipping_cost"`
	CustomerDetails      *CustomerDetails `json:"customer_details"`
	ShippingDetails      *ShippingDetails `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *ShippingDetails `json:"shipping_details"`
	} `json:"collected_information"`
	Metadata map[string]string `json:"metadata"`
}

func parseCheckoutSession(b base, raw json.RawMessage) (Event, error) {
	var p checkoutSessionPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: checkout session without id", ErrMalformedPayload)
	}
	if p.Object != "" && p.Object != "checkout.session" {
		return nil, fmt.Errorf("%w: unexpected object %q", ErrMalformedPayload, p.Object)
	}

	ev := CheckoutSessionCompleted{
		base:            b,
		SessionID:       p.ID,
		PaymentIntentID: string(p.PaymentIntent),
		AmountTotal:     p.AmountTotal,
		Customer:        p.CustomerDetails,
		Metadata:        p.Metadata,
	}

	//送料はshipping_cost優先、無ければtotal_details
	if p.TotalDetails != nil {
		ev.ShippingCents = p.TotalDetails.AmountShipping
		ev.TaxCents = p.TotalDetails.AmountTax
		ev.DiscountCents = p.TotalDetails.AmountDiscount
	}
	if p.ShippingCost != nil {
		ev.ShippingCents = p.ShippingCost.AmountTotal
	}

	//APIバージョンによって配送先の場所が違う
	ev.Shipping = p.ShippingDetails
	if ev.Shipping == nil && p.CollectedInformation != nil {
		ev.Shipping = p.CollectedInformation.ShippingDetails
	}

	if ev.ShippingCents < 0 || ev.TaxCents < 0 || ev.DiscountCents < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrMalformedPayload)
	}
	return ev, nil
}

type paymentIntentPayload struct {
	ID               string `json:"id"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func parsePaymentIntent(raw json.RawMessage) (paymentIntentPayload, error) {
	var p paymentIntentPayload
	if err := decode(raw, &p); err != nil {
		return paymentIntentPayload{}, err
	}
	if p.ID == "" {
		return paymentIntentPayload{}, fmt.Errorf("%w: payment intent without id", ErrMalformedPayload)
	}
	return p, nil
}

func parseCharge(b base, raw json.RawMessage) (Event, error) {
	var p struct {
		ID             string       `json:"id"`
		PaymentIntent  expandableID `json:"payment_intent"`
		Refunded       bool         `json:"refunded"`
		Amount         int64        `json:"amount"`
		AmountRefunded int64        `json:"amount_refunded"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" || p.PaymentIntent == "" {
		return nil, fmt.Errorf("%w: charge without id or payment intent", ErrMalformedPayload)
	}
	if p.Amount < 0 || p.AmountRefunded < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrMalformedPayload)
	}
	return ChargeRefunded{
		base:                b,
		ChargeID:            p.ID,
		PaymentIntentID:     string(p.PaymentIntent),
		FullyRefunded:       p.Refunded || (p.Amount > 0 && p.AmountRefunded >= p.Amount),
		AmountCents:         p.Amount,
		AmountRefundedCents: p.AmountRefunded,
	}, nil
}

func decode(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty data.object", ErrMalformedPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
