package validator

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
)

func validInput() usecase.CheckoutInput {
	return usecase.CheckoutInput{
		Items:         []usecase.CheckoutLine{{ProductID: "p-1", Quantity: 2}},
		CustomerEmail: "buyer@example.com",
		SuccessURL:    "https://shop.example.com/success",
		CancelURL:     "http://localhost:5173/cart",
	}
}

func TestValidateCheckout_OK(t *testing.T) {
	v := NewCheckoutValidator()
	in := validInput()
	in.ShippingAddress = &model.ShippingAddress{Country: "US"}
	assert.NoError(t, v.ValidateCheckout(context.Background(), in))
}

func TestValidateCheckout_Rejects(t *testing.T) {
	cases := map[string]func(in *usecase.CheckoutInput){
		"empty cart":        func(in *usecase.CheckoutInput) { in.Items = nil },
		"missing product":   func(in *usecase.CheckoutInput) { in.Items[0].ProductID = " " },
		"zero quantity":     func(in *usecase.CheckoutInput) { in.Items[0].Quantity = 0 },
		"negative quantity": func(in *usecase.CheckoutInput) { in.Items[0].Quantity = -1 },
		"huge quantity":     func(in *usecase.CheckoutInput) { in.Items[0].Quantity = 1000 },
		"bad email":         func(in *usecase.CheckoutInput) { in.CustomerEmail = "buyer" },
		"relative success":  func(in *usecase.CheckoutInput) { in.SuccessURL = "/success" },
		"js cancel url":     func(in *usecase.CheckoutInput) { in.CancelURL = "javascript:alert(1)" },
		"long country":      func(in *usecase.CheckoutInput) { in.ShippingAddress = &model.ShippingAddress{Country: "USA"} },
		"too many lines": func(in *usecase.CheckoutInput) {
			in.Items = make([]usecase.CheckoutLine, maxCheckoutLines+1)
			for i := range in.Items {
				in.Items[i] = usecase.CheckoutLine{ProductID: "p", Quantity: 1}
			}
		},
	}

	v := NewCheckoutValidator()
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			err := v.ValidateCheckout(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestIsEmailLike(t *testing.T) {
	assert.True(t, IsEmailLike("a@b.co"))
	assert.True(t, IsEmailLike(" a@b.co "))
	assert.False(t, IsEmailLike("a@b"))
	assert.False(t, IsEmailLike("a b@c.d"))
	assert.False(t, IsEmailLike(strings.Repeat("@", 3)))
}
