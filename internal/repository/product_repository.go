package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// カタログの参照だけ
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)
	// productIDに属するvariantだけ返す
	FindVariant(ctx context.Context, productID string, variantID string) (model.ProductVariant, error)
}
