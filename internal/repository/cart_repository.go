package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartRepository interface {
	ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error)
	FindByID(ctx context.Context, cartItemID string) (model.CartItem, error)

	// 同じ (owner, product, variant) があれば数量を加算、無ければ作成
	AddOrIncrement(ctx context.Context, owner model.CartOwner, productID string, variantID *string, qty int64) (model.CartItem, error)

	UpdateQuantity(ctx context.Context, cartItemID string, qty int64) error
	DeleteByID(ctx context.Context, cartItemID string) error

	// 持ち主の行を全削除（件数を返す）
	DeleteByOwner(ctx context.Context, owner model.CartOwner) (int64, error)
}
