package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// 持ち主のカート明細を一覧取得
func (r *CartGormRepository) ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return []model.CartItem{}, err
	}
	query, arg := owner.Where()

	var items []model.CartItem
	if err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}
	return items, nil
}

// 明細を取得
func (r *CartGormRepository) FindByID(ctx context.Context, cartItemID string) (model.CartItem, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("id = ?", cartItemID).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// 同一 (owner, product, variant) は数量加算
func (r *CartGormRepository) AddOrIncrement(ctx context.Context, owner model.CartOwner, productID string, variantID *string, qty int64) (model.CartItem, error) {
	if qty <= 0 {
		return model.CartItem{}, errors.New("invalid quantity")
	}
	if err := owner.Validate(); err != nil {
		return model.CartItem{}, err
	}

	var out model.CartItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query, arg := owner.Where()
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(query, arg).
			Where("product_id = ?", productID)

		//variantなしは空文字ではなくIS NULLで比較
		if variantID == nil {
			q = q.Where("variant_id IS NULL")
		} else {
			q = q.Where("variant_id = ?", *variantID)
		}

		var item model.CartItem
		err := q.First(&item).Error
		if err == nil {
			// 既存ありだったら数量を増やす
			item.Quantity += qty
			res := tx.Model(&model.CartItem{}).
				Where("id = ?", item.ID).
				Update("quantity", item.Quantity)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrNotFound
			}
			out = item
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		//無い場合は新規作成
		newItem := owner.NewItem(productID, variantID, qty)
		newItem.ID = uuid.NewString()
		if err := tx.Create(&newItem).Error; err != nil {
			return err
		}
		out = newItem
		return nil
	})
	if err != nil {
		return model.CartItem{}, err
	}
	return out, nil
}

// 明細の数量を更新
func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartItemID string, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID string) error {
	res := r.db.WithContext(ctx).Where("id = ?", cartItemID).Delete(&model.CartItem{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 持ち主の明細を全削除。0件でもエラーにしない
func (r *CartGormRepository) DeleteByOwner(ctx context.Context, owner model.CartOwner) (int64, error) {
	if err := owner.Validate(); err != nil {
		return 0, err
	}
	query, arg := owner.Where()

	res := r.db.WithContext(ctx).Where(query, arg).Delete(&model.CartItem{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
