package validator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"storefront/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")
)

// 1注文あたりの上限
const (
	maxCheckoutLines = 100
	maxLineQuantity  = 999
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type checkoutValidator struct{}

// Usecaseは interface を依存注入
func NewCheckoutValidator() usecase.CheckoutValidator {
	return &checkoutValidator{}
}

// チェックアウトの入力を検証
func (v *checkoutValidator) ValidateCheckout(ctx context.Context, in usecase.CheckoutInput) error {
	// 明細
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}
	if len(in.Items) > maxCheckoutLines {
		return fmt.Errorf("%w: too many items", ErrInvalidInput)
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: items[%d].product_id is required", ErrInvalidInput, i)
		}
		if it.Quantity < 1 || it.Quantity > maxLineQuantity {
			return fmt.Errorf("%w: items[%d].quantity must be between 1 and %d", ErrInvalidInput, i, maxLineQuantity)
		}
	}

	// email形式
	if !IsEmailLike(in.CustomerEmail) {
		return fmt.Errorf("%w: customer_email", ErrInvalidInput)
	}

	// 戻り先URL
	if !isAbsoluteHTTPURL(in.SuccessURL) {
		return fmt.Errorf("%w: success_url must be an absolute http(s) url", ErrInvalidInput)
	}
	if !isAbsoluteHTTPURL(in.CancelURL) {
		return fmt.Errorf("%w: cancel_url must be an absolute http(s) url", ErrInvalidInput)
	}

	// 配送先（任意）。あれば国コードは2文字
	if a := in.ShippingAddress; a != nil && a.Country != "" && len(a.Country) != 2 {
		return fmt.Errorf("%w: shipping_address.country must be an ISO 3166-1 alpha-2 code", ErrInvalidInput)
	}

	return nil
}

// 簡易メール形式をチェック
func IsEmailLike(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

func isAbsoluteHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
