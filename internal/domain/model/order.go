package model

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// 正常系の遷移順
var happyPath = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// 終端ステータス
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// 次の正常遷移か、非終端からのキャンセル/返金ならtrue
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	if s == next || s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled || next == OrderStatusRefunded {
		return true
	}
	return happyPath[s] == next
}

// 注文時点の配送先スナップショット（shipping_* カラム）
type ShippingAddress struct {
	FirstName  string `gorm:"type:varchar(255)" json:"first_name"`
	LastName   string `gorm:"type:varchar(255)" json:"last_name"`
	Line1      string `gorm:"column:address_line1;type:varchar(255)" json:"address_line1"`
	Line2      string `gorm:"column:address_line2;type:varchar(255)" json:"address_line2"`
	City       string `gorm:"type:varchar(255)" json:"city"`
	State      string `gorm:"type:varchar(100)" json:"state"`
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code"`
	Country    string `gorm:"type:varchar(2)" json:"country"`
	Phone      string `gorm:"type:varchar(30)" json:"phone"`
}

func (a ShippingAddress) IsZero() bool {
	return a == ShippingAddress{}
}

// 表示用の宛名
func (a ShippingAddress) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

type Order struct {
	ID          string  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber string  `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_number"`
	UserID      *string `gorm:"type:uuid;index" json:"user_id"`
	Email       string  `gorm:"type:varchar(255);not null" json:"email"`

	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`

	// 金額はすべてセント
	SubtotalCents int64 `gorm:"not null" json:"subtotal_cents"`
	ShippingCents int64 `gorm:"not null;default:0" json:"shipping_cents"`
	TaxCents      int64 `gorm:"not null;default:0" json:"tax_cents"`
	DiscountCents int64 `gorm:"not null;default:0" json:"discount_cents"`
	TotalCents    int64 `gorm:"not null" json:"total_cents"`

	StripeSessionID       string  `gorm:"type:varchar(255);not null;uniqueIndex" json:"stripe_session_id"`
	StripePaymentIntentID *string `gorm:"type:varchar(255);index" json:"stripe_payment_intent_id"`

	TrackingNumber *string `gorm:"type:varchar(255)" json:"tracking_number"`
	TrackingURL    *string `gorm:"type:text" json:"tracking_url"`
	Carrier        *string `gorm:"type:varchar(50)" json:"carrier"`
	AdminNotes     *string `gorm:"type:text" json:"admin_notes"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`

	// ゲストカートのトークン（webhookでのカート削除用）
	CartSessionID *string `gorm:"type:varchar(255)" json:"-"`

	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
}

// subtotal + shipping + tax - discount
func (o Order) ExpectedTotal() int64 {
	return o.SubtotalCents + o.ShippingCents + o.TaxCents - o.DiscountCents
}

// 決済確定時に webhook から反映する値
type PaymentConfirmation struct {
	PaymentIntentID string
	ShippingCents   int64
	TaxCents        int64
	DiscountCents   int64
	Email           string
	Address         *ShippingAddress
}

// 管理者による発送情報の更新
type FulfillmentUpdate struct {
	Status         OrderStatus
	TrackingNumber *string
	TrackingURL    *string
	Carrier        *string
	AdminNotes     *string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
}
