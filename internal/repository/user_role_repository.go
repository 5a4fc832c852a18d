package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type UserRoleRepository interface {
	HasRole(ctx context.Context, userID string, role model.Role) (bool, error)
}
