package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Stripeのpayloadは数十KB程度
const maxWebhookBody = 1 << 20

type webhookProcessor interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) error
}

// /webhooks/stripe
type WebhookHandler struct {
	uc webhookProcessor
}

func NewWebhookHandler(uc webhookProcessor) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/stripe", h.stripe)
}

// 200: 処理済み/無視/重複, 400: 署名・payload不正, 404: 注文なし, 413: 大きすぎる, 500: それ以外（Stripeが再送する）
func (h *WebhookHandler) stripe(c echo.Context) error {
	//署名検証は生のbodyで行う
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.uc.Process(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
