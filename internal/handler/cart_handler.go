package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartRequest struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id"`
	Quantity  int64   `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// /cart, /cart/items/{id} を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/cart")

	owned := g.Group("", middleware.OptionalAuthJWT(cfg), middleware.CartOwner())
	owned.GET("", h.getCart)
	owned.DELETE("", h.clear)
	owned.POST("/items", h.addItem)
	owned.PATCH("/items/:id", h.patchItem)
	owned.DELETE("/items/:id", h.deleteItem)

	g.POST("/merge", h.merge, middleware.AuthJWT(cfg), middleware.CartOwner())
}

func (h *CartHandler) getCart(c echo.Context) error {
	out, err := h.uc.GetCart(c.Request().Context(), middleware.CartOwnerFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addItem(c echo.Context) error {
	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.AddItem(c.Request().Context(), middleware.CartOwnerFrom(c), usecase.AddCartInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) patchItem(c echo.Context) error {
	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.UpdateQuantity(c.Request().Context(), middleware.CartOwnerFrom(c), c.Param("id"), req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	out, err := h.uc.RemoveItem(c.Request().Context(), middleware.CartOwnerFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ログイン中ならゲストトークンのカートも消す
func (h *CartHandler) clear(c echo.Context) error {
	owner := middleware.CartOwnerFrom(c)
	h.uc.Clear(c.Request().Context(), owner.UserID, middleware.CartSessionFrom(c))
	return c.NoContent(http.StatusNoContent)
}

// ログイン直後にゲストカートを取り込む
func (h *CartHandler) merge(c echo.Context) error {
	userID := middleware.UserIDFrom(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Merge(c.Request().Context(), userID, middleware.CartSessionFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
