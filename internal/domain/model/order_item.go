package model

import "time"

// 注文明細。作成後は変更しない
type OrderItem struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID         string    `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID       string    `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantID       *string   `gorm:"type:uuid" json:"variant_id"`
	Quantity        int64     `gorm:"not null" json:"quantity"`
	UnitPriceCents  int64     `gorm:"not null" json:"unit_price_cents"`
	TotalPriceCents int64     `gorm:"not null" json:"total_price_cents"`
	ProductName     string    `gorm:"type:varchar(255);not null" json:"product_name"`
	VariantName     *string   `gorm:"type:varchar(255)" json:"variant_name"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// "商品名 - バリエーション名"
func (i OrderItem) DisplayName() string {
	if i.VariantName != nil && *i.VariantName != "" {
		return i.ProductName + " - " + *i.VariantName
	}
	return i.ProductName
}
