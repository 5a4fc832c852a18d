package model

import "time"

// カタログは参照のみ
type Product struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	PriceCents int64     `gorm:"not null" json:"price_cents"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

type ProductVariant struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID string `gorm:"type:uuid;not null;index" json:"product_id"`
	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	// nilなら商品価格を使う
	PriceCents *int64    `json:"price_cents"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// バリエーション価格があればそれ、無ければ商品価格
func UnitPrice(p Product, v *ProductVariant) int64 {
	if v != nil && v.PriceCents != nil {
		return *v.PriceCents
	}
	return p.PriceCents
}
