package handler

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type checkoutCreator interface {
	CreateSession(ctx context.Context, owner model.CartOwner, in usecase.CheckoutInput) (usecase.CheckoutOutput, error)
}

type orderBySession interface {
	GetBySessionID(ctx context.Context, sessionID string) (usecase.OrderOutput, error)
}

// /checkout のHTTP
type CheckoutHandler struct {
	uc     checkoutCreator
	orders orderBySession
}

// DI
func NewCheckoutHandler(uc checkoutCreator, orders orderBySession) *CheckoutHandler {
	return &CheckoutHandler{uc: uc, orders: orders}
}

// 価格フィールドは受け取らない（送られてきても無視）
type CheckoutItemRequest struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id"`
	Quantity  int64   `json:"quantity"`
}

type ShippingAddressRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Line1      string `json:"address_line1"`
	Line2      string `json:"address_line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type CheckoutRequest struct {
	Items           []CheckoutItemRequest   `json:"items"`
	ShippingAddress *ShippingAddressRequest `json:"shipping_address"`
	CustomerEmail   string                  `json:"customer_email"`
	SuccessURL      string                  `json:"success_url"`
	CancelURL       string                  `json:"cancel_url"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/checkout")

	limit := cfg.CheckoutRateLimit
	if limit <= 0 {
		limit = 1
	}
	g.POST("", h.create,
		echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(limit))),
		middleware.OptionalAuthJWT(cfg),
		middleware.CartOwner(),
	)
	g.GET("/sessions/:session_id", h.session)
}

func (h *CheckoutHandler) create(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	in := usecase.CheckoutInput{
		Items:         make([]usecase.CheckoutLine, 0, len(req.Items)),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	}
	//ログイン中でemail未入力ならトークンのemailを使う
	if in.CustomerEmail == "" {
		if v, ok := c.Get(middleware.CtxUserEmailKey).(string); ok {
			in.CustomerEmail = v
		}
	}
	//ログイン中でもゲストカートが残っていれば決済後に消せるように渡す
	owner := middleware.CartOwnerFrom(c)
	if !owner.IsGuest() {
		in.CartSessionID = middleware.CartSessionFrom(c)
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.CheckoutLine{
			ProductID: strings.TrimSpace(it.ProductID),
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		})
	}
	if a := req.ShippingAddress; a != nil {
		in.ShippingAddress = &model.ShippingAddress{
			FirstName:  a.FirstName,
			LastName:   a.LastName,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    strings.ToUpper(a.Country),
			Phone:      a.Phone,
		}
	}

	out, err := h.uc.CreateSession(c.Request().Context(), owner, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 決済完了ページ用
func (h *CheckoutHandler) session(c echo.Context) error {
	out, err := h.orders.GetBySessionID(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
