package middleware

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
)

// AuthJWTの後ろで使う。user_rolesにadminがあるユーザーだけ通す。
func AdminRoleGuard(roles repository.UserRoleRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := UserIDFrom(c)
			if userID == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			ok, err := roles.HasRole(c.Request().Context(), userID, model.RoleAdmin)
			if err != nil {
				c.Logger().Errorf("role lookup for %s: %v", userID, err)
				return c.JSON(http.StatusInternalServerError, errorJSON("db error"))
			}
			//USERは拒否、ADMINだけ許可
			if !ok {
				return c.JSON(http.StatusForbidden, errorJSON("admin only"))
			}

			return next(c)
		}
	}
}
