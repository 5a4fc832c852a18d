// Package payment はStripeとのやりとり（Checkoutセッション作成・webhook署名検証）。
package payment

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/usecase"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// 決済完了ページでsession_idを受け取るためのプレースホルダ
const sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeGateway struct {
	sessions         sessionCreator
	currency         string
	allowedCountries []string
}

func NewStripeGateway(secretKey, currency string, allowedCountries []string) *StripeGateway {
	return &StripeGateway{
		sessions:         &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		currency:         strings.ToLower(currency),
		allowedCountries: allowedCountries,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req usecase.CheckoutSessionRequest) (usecase.CheckoutSession, error) {
	params := g.buildParams(req)
	params.Context = ctx

	s, err := g.sessions.New(params)
	if err != nil {
		return usecase.CheckoutSession{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return usecase.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) buildParams(req usecase.CheckoutSessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(withSessionID(req.SuccessURL)),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for _, li := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
				UnitAmount: stripe.Int64(li.UnitAmountCents),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	if len(g.allowedCountries) > 0 {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(g.allowedCountries),
		}
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func withSessionID(successURL string) string {
	if strings.Contains(successURL, sessionIDPlaceholder) {
		return successURL
	}
	sep := "?"
	if strings.Contains(successURL, "?") {
		sep = "&"
	}
	return successURL + sep + "session_id=" + sessionIDPlaceholder
}
