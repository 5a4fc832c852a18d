package model

import (
	"errors"
	"time"
)

var ErrInvalidCartOwner = errors.New("cart owner must be exactly one of user or session")

// shopping_cart の1行
// (owner, product, variant) ごとに1行だけ
type CartItem struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *string   `gorm:"type:uuid;index" json:"user_id"`
	SessionID *string   `gorm:"type:varchar(255);index" json:"session_id"`
	ProductID string    `gorm:"type:uuid;not null" json:"product_id"`
	VariantID *string   `gorm:"type:uuid" json:"variant_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (CartItem) TableName() string {
	return "shopping_cart"
}

// カートの持ち主。ログインユーザーかゲストセッションのどちらか
type CartOwner struct {
	UserID    string
	SessionID string
}

func UserOwner(userID string) CartOwner {
	return CartOwner{UserID: userID}
}

func GuestOwner(sessionID string) CartOwner {
	return CartOwner{SessionID: sessionID}
}

func (o CartOwner) Validate() error {
	if (o.UserID == "") == (o.SessionID == "") {
		return ErrInvalidCartOwner
	}
	return nil
}

func (o CartOwner) IsGuest() bool {
	return o.UserID == ""
}

// WHERE句（カラム名, 値）
func (o CartOwner) Where() (string, string) {
	if o.IsGuest() {
		return "session_id = ?", o.SessionID
	}
	return "user_id = ?", o.UserID
}

// この持ち主用の新しい行
func (o CartOwner) NewItem(productID string, variantID *string, qty int64) CartItem {
	item := CartItem{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  qty,
	}
	if o.IsGuest() {
		sid := o.SessionID
		item.SessionID = &sid
	} else {
		uid := o.UserID
		item.UserID = &uid
	}
	return item
}

func (i CartItem) OwnedBy(o CartOwner) bool {
	if o.IsGuest() {
		return i.SessionID != nil && *i.SessionID == o.SessionID
	}
	return i.UserID != nil && *i.UserID == o.UserID
}
