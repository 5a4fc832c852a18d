package middleware

import (
	"strings"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ゲストカートのトークン（クライアントが保存して毎回送る）
const CartSessionHeader = "X-Cart-Session"

const (
	CtxCartOwnerKey   = "cart_owner"   // model.CartOwner
	CtxCartSessionKey = "cart_session" // string
)

// CartOwner はカートの持ち主を決める。
// ログイン中ならuser_id、そうでなければX-Cart-Session（無ければ発行してレスポンスヘッダで返す）。
// OptionalAuthJWT/AuthJWT の後ろで使う。
func CartOwner() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := strings.TrimSpace(c.Request().Header.Get(CartSessionHeader))
			if _, err := uuid.Parse(token); err != nil {
				token = ""
			}

			if userID := UserIDFrom(c); userID != "" {
				c.Set(CtxCartOwnerKey, model.UserOwner(userID))
				c.Set(CtxCartSessionKey, token)
				return next(c)
			}

			if token == "" {
				token = uuid.NewString()
			}
			c.Response().Header().Set(CartSessionHeader, token)
			c.Set(CtxCartOwnerKey, model.GuestOwner(token))
			c.Set(CtxCartSessionKey, token)
			return next(c)
		}
	}
}

func CartOwnerFrom(c echo.Context) model.CartOwner {
	o, _ := c.Get(CtxCartOwnerKey).(model.CartOwner)
	return o
}

// ログイン中でも送られてきたゲストトークン（マージ用）
func CartSessionFrom(c echo.Context) string {
	s, _ := c.Get(CtxCartSessionKey).(string)
	return s
}
