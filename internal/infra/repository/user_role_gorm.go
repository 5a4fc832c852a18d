package repository

import (
	"context"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

type UserRoleGormRepository struct {
	db *gorm.DB
}

// DI
// main.goでこれをnewしてmiddlewareに注入します。
func NewUserRoleGormRepository(db *gorm.DB) *UserRoleGormRepository {
	return &UserRoleGormRepository{db: db}
}

// ユーザーがロールを持っているか
func (r *UserRoleGormRepository) HasRole(ctx context.Context, userID string, role model.Role) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.UserRole{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
