package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

// 省略したフィールドは変更しない。空文字は削除
type FulfillmentUpdateRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"tracking_number"`
	TrackingURL    *string `json:"tracking_url"`
	Carrier        *string `json:"carrier"`
	AdminNotes     *string `json:"admin_notes"`
	SendEmail      bool    `json:"send_email"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, roles repository.UserRoleRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard(roles))

	admin.GET("/orders", h.list)
	admin.GET("/orders/:id", h.detail)
	admin.PATCH("/orders/:id/fulfillment", h.updateFulfillment)
	admin.GET("/tracking-url", h.trackingURL)
	admin.GET("/audit-logs", h.auditLogs)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		page = p
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	fromPtr, err := parseTimeQuery(c, "from")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	toPtr, err := parseTimeQuery(c, "to")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}

	out, err := h.uc.List(c.Request().Context(), repository.AdminOrderListFilter{
		Page:          page,
		Limit:         limit,
		Status:        strings.ToLower(c.QueryParam("status")),
		PaymentStatus: strings.ToLower(c.QueryParam("payment_status")),
		Email:         strings.TrimSpace(c.QueryParam("email")),
		From:          fromPtr,
		To:            toPtr,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) detail(c echo.Context) error {
	out, err := h.uc.Detail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateFulfillment(c echo.Context) error {
	var req FulfillmentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	// ★操作した管理者IDを取得（監査ログ用）
	adminID := middleware.UserIDFrom(c)
	if adminID == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.UpdateFulfillment(c.Request().Context(), adminID, c.Param("id"), usecase.FulfillmentInput{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
		Carrier:        req.Carrier,
		AdminNotes:     req.AdminNotes,
		SendEmail:      req.SendEmail,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 業者と追跡番号から既定の追跡URLを返す
func (h *AdminOrderHandler) trackingURL(c echo.Context) error {
	link, err := h.uc.TrackingURL(c.QueryParam("carrier"), c.QueryParam("tracking_number"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"tracking_url": link})
}

func (h *AdminOrderHandler) auditLogs(c echo.Context) error {
	f := repository.AuditLogFilter{}

	if v := c.QueryParam("actor_user_id"); v != "" {
		f.ActorUserID = &v
	}
	if v := c.QueryParam("resource_id"); v != "" {
		f.ResourceID = &v
		rt := model.AuditResourceOrder
		f.ResourceType = &rt
	}
	if v := c.QueryParam("action"); v != "" {
		a := model.AuditAction(v)
		f.Action = &a
	}

	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}
	f.CreatedFrom, f.CreatedTo = from, to

	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		f.Limit = l
	}
	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil || o < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		}
		f.Offset = o
	}

	out, err := h.uc.AuditLogs(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// RFC3339。空ならnil
func parseTimeQuery(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	tm, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}
