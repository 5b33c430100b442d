package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/moviesaw/auth-service/internal/model"
)

// RequireAdmin enforces the admin capability on routes already behind the
// authentication gate. The role was resolved from the account record by the
// gate, so no extra lookup happens here; anything but the admin role is
// answered with 403.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if Role(c) != model.RoleAdmin {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
