package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/labstack/gommon/log"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	auditRepo repo.AuditLogRepository
	mailer    Mailer
	clock     Clock
	log       *log.Logger
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	auditRepo repo.AuditLogRepository,
	mailer Mailer,
	clock Clock,
	logger *log.Logger,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, auditRepo: auditRepo, mailer: mailer, clock: clock, log: logger}
}

// nilは「変更しない」、空文字は「消す」
type FulfillmentInput struct {
	Status         string
	TrackingNumber *string
	TrackingURL    *string
	Carrier        *string
	AdminNotes     *string
	SendEmail      bool
}

type FulfillmentOutput struct {
	Changed bool         `json:"changed"`
	Message string       `json:"message"`
	Order   *OrderOutput `json:"order,omitempty"`
}

type AdminOrderListOutput struct {
	Orders []OrderOutput `json:"orders"`
	Total  int64         `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).IsValid() {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid date range")
	}

	out := AdminOrderListOutput{Page: f.Page, Limit: f.Limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out.Total = total
		out.Orders = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			out.Orders = append(out.Orders, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return AdminOrderListOutput{}, err
	}
	return out, nil
}

func (u *AdminOrderUsecase) Detail(ctx context.Context, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 監査ログ一覧
func (u *AdminOrderUsecase) AuditLogs(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return logs, nil
}

// 業者と追跡番号から追跡URLを返す
func (u *AdminOrderUsecase) TrackingURL(carrier, trackingNumber string) (string, error) {
	if strings.TrimSpace(trackingNumber) == "" {
		return "", NewHTTPError(http.StatusBadRequest, "tracking_number is required")
	}
	link, ok := TrackingURLFor(carrier, trackingNumber)
	if !ok {
		return "", NewHTTPError(http.StatusBadRequest, "unknown carrier")
	}
	return link, nil
}

// 監査ログに残す項目
type fulfillmentSnapshot struct {
	Status         model.OrderStatus `json:"status"`
	TrackingNumber *string           `json:"tracking_number"`
	TrackingURL    *string           `json:"tracking_url"`
	Carrier        *string           `json:"carrier"`
	AdminNotes     *string           `json:"admin_notes"`
}

func snapshotOf(o model.Order) fulfillmentSnapshot {
	return fulfillmentSnapshot{
		Status:         o.Status,
		TrackingNumber: o.TrackingNumber,
		TrackingURL:    o.TrackingURL,
		Carrier:        o.Carrier,
		AdminNotes:     o.AdminNotes,
	}
}

// UpdateFulfillment は発送情報を更新し、監査ログを同じTxで残す。
// 通知メールはcommit後に送り、失敗してもエラーにしない。
func (u *AdminOrderUsecase) UpdateFulfillment(ctx context.Context, actorAdminUserID string, orderID string, in FulfillmentInput) (FulfillmentOutput, error) {
	if actorAdminUserID == "" {
		return FulfillmentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return FulfillmentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	newStatus := model.OrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if newStatus != "" && !newStatus.IsValid() {
		return FulfillmentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var (
		before  model.Order
		after   model.Order
		items   []model.OrderItem
		changed bool
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		before = o

		next := applyFulfillment(o, newStatus, in)
		if !fulfillmentChanged(o, next) {
			return nil
		}
		changed = true

		if next.Status != o.Status && !o.Status.CanAdvanceTo(next.Status) {
			//管理者の上書きは許すが記録する
			u.log.Warnf("admin %s moved order %s from %s to %s", actorAdminUserID, o.ID, o.Status, next.Status)
		}

		now := u.clock.Now()
		upd := model.FulfillmentUpdate{
			Status:         next.Status,
			TrackingNumber: next.TrackingNumber,
			TrackingURL:    next.TrackingURL,
			Carrier:        next.Carrier,
			AdminNotes:     next.AdminNotes,
		}
		if next.Status == model.OrderStatusShipped && o.Status != model.OrderStatusShipped {
			upd.ShippedAt = &now
			next.ShippedAt = &now
		}
		if next.Status == model.OrderStatusDelivered && o.Status != model.OrderStatusDelivered {
			upd.DeliveredAt = &now
			next.DeliveredAt = &now
		}

		if err := r.Orders().UpdateFulfillment(ctx, o.ID, upd); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// ★監査ログ（UPDATE_ORDER_FULFILLMENT）
		beforeJSON, _ := json.Marshal(snapshotOf(o))
		afterJSON, _ := json.Marshal(snapshotOf(next))
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderFulfillment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   string(beforeJSON),
			AfterJSON:    string(afterJSON),
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err = r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		after = next
		return nil
	})
	if err != nil {
		return FulfillmentOutput{}, err
	}

	if !changed {
		return FulfillmentOutput{Changed: false, Message: "no changes"}, nil
	}

	u.log.Infoj(log.JSON{
		"msg":      "order fulfillment updated",
		"order_id": after.ID,
		"admin":    actorAdminUserID,
		"from":     before.Status,
		"to":       after.Status,
	})

	u.notify(ctx, before, after, in)

	out := toOrderOutput(after, items)
	return FulfillmentOutput{Changed: true, Message: "updated", Order: &out}, nil
}

// commit後の通知（失敗はログのみ）
func (u *AdminOrderUsecase) notify(ctx context.Context, before, after model.Order, in FulfillmentInput) {
	if after.Status != before.Status {
		if err := u.mailer.SendStatusUpdate(ctx, after, before.Status); err != nil {
			u.log.Errorf("status update email for order %s failed: %v", after.ID, err)
		}
	}

	if !in.SendEmail || in.TrackingNumber == nil || strings.TrimSpace(*in.TrackingNumber) == "" {
		return
	}
	n := model.ShippingNotification{
		OrderID:        after.ID,
		OrderNumber:    after.OrderNumber,
		CustomerEmail:  after.Email,
		CustomerName:   after.ShippingAddress.FullName(),
		TrackingNumber: deref(after.TrackingNumber),
		TrackingURL:    deref(after.TrackingURL),
		Carrier:        deref(after.Carrier),
		Status:         after.Status,
	}
	if err := u.mailer.SendShippingNotification(ctx, n); err != nil {
		u.log.Errorf("shipping notification for order %s failed: %v", after.ID, err)
	}
}

// 入力を現在値に重ねる
func applyFulfillment(o model.Order, status model.OrderStatus, in FulfillmentInput) model.Order {
	next := o
	if status != "" {
		next.Status = status
	}
	if in.TrackingNumber != nil {
		next.TrackingNumber = optional(*in.TrackingNumber)
	}
	if in.Carrier != nil {
		next.Carrier = optional(*in.Carrier)
	}
	if in.AdminNotes != nil {
		next.AdminNotes = optional(*in.AdminNotes)
	}
	if in.TrackingURL != nil {
		next.TrackingURL = optional(*in.TrackingURL)
	} else if next.Carrier != nil && next.TrackingNumber != nil &&
		(in.Carrier != nil || in.TrackingNumber != nil) {
		//明示されていなければ業者のURLを既定値にする
		if link, ok := TrackingURLFor(*next.Carrier, *next.TrackingNumber); ok {
			next.TrackingURL = &link
		}
	}
	return next
}

func fulfillmentChanged(cur, next model.Order) bool {
	return cur.Status != next.Status ||
		!sameString(cur.TrackingNumber, next.TrackingNumber) ||
		!sameString(cur.TrackingURL, next.TrackingURL) ||
		!sameString(cur.AdminNotes, next.AdminNotes)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
