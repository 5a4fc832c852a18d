package repository

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) Create(ctx context.Context, order *model.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	return r.findOne(ctx, "id = ?", orderID)
}

func (r *OrderGormRepository) FindBySessionID(ctx context.Context, sessionID string) (model.Order, error) {
	return r.findOne(ctx, "stripe_session_id = ?", sessionID)
}

func (r *OrderGormRepository) findOne(ctx context.Context, query string, arg any) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where(query, arg).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}

	//email 部分一致
	if v := strings.TrimSpace(f.Email); v != "" {
		q = q.Where("email ILIKE ?", "%"+v+"%")
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

// 決済確定。読み込み→書き込みにせず、1つのUPDATEで反映する
// 同じイベントを何度適用しても同じ値になる
func (r *OrderGormRepository) ConfirmPayment(ctx context.Context, sessionID string, c model.PaymentConfirmation) error {
	updates := map[string]interface{}{
		"payment_status": model.PaymentStatusPaid,
		// 発送済み以降は戻さない
		"status": gorm.Expr(
			"CASE WHEN status IN (?, ?, ?) THEN status ELSE ? END",
			model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusRefunded,
			model.OrderStatusProcessing,
		),
		"shipping_cents": c.ShippingCents,
		"tax_cents":      c.TaxCents,
		"discount_cents": c.DiscountCents,
		"total_cents":    gorm.Expr("subtotal_cents + ? + ? - ?", c.ShippingCents, c.TaxCents, c.DiscountCents),
	}
	if c.PaymentIntentID != "" {
		updates["stripe_payment_intent_id"] = c.PaymentIntentID
	}
	if c.Email != "" {
		updates["email"] = c.Email
	}
	if c.Address != nil {
		for k, v := range addressColumns(*c.Address) {
			updates[k] = v
		}
	}

	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("stripe_session_id = ?", sessionID).
		Updates(updates)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 未払いの注文だけ。支払い済みの後に届いた失敗イベントでは何もしない
func (r *OrderGormRepository) MarkPaymentFailed(ctx context.Context, paymentIntentID string) error {
	return r.updateByPaymentIntent(ctx, paymentIntentID, []model.PaymentStatus{model.PaymentStatusPending}, map[string]interface{}{
		"payment_status": model.PaymentStatusFailed,
		"status":         model.OrderStatusCancelled,
	})
}

func (r *OrderGormRepository) MarkRefunded(ctx context.Context, paymentIntentID string) error {
	return r.updateByPaymentIntent(ctx, paymentIntentID, nil, map[string]interface{}{
		"payment_status": model.PaymentStatusRefunded,
		"status":         model.OrderStatusRefunded,
	})
}

// from が空でなければ payment_status がその中にある行だけ更新する
func (r *OrderGormRepository) updateByPaymentIntent(ctx context.Context, paymentIntentID string, from []model.PaymentStatus, updates map[string]interface{}) error {
	q := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("stripe_payment_intent_id = ?", paymentIntentID)
	if len(from) > 0 {
		q = q.Where("payment_status IN ?", from)
	}
	res := q.Updates(updates)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) UpdateFulfillment(ctx context.Context, orderID string, u model.FulfillmentUpdate) error {
	updates := map[string]interface{}{
		"status":          u.Status,
		"tracking_number": u.TrackingNumber,
		"tracking_url":    u.TrackingURL,
		"carrier":         u.Carrier,
		"admin_notes":     u.AdminNotes,
	}
	if u.ShippedAt != nil {
		updates["shipped_at"] = *u.ShippedAt
	}
	if u.DeliveredAt != nil {
		updates["delivered_at"] = *u.DeliveredAt
	}

	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(updates)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func addressColumns(a model.ShippingAddress) map[string]interface{} {
	return map[string]interface{}{
		"shipping_first_name":    a.FirstName,
		"shipping_last_name":     a.LastName,
		"shipping_address_line1": a.Line1,
		"shipping_address_line2": a.Line2,
		"shipping_city":          a.City,
		"shipping_state":         a.State,
		"shipping_postal_code":   a.PostalCode,
		"shipping_country":       a.Country,
		"shipping_phone":         a.Phone,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
