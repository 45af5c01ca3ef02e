package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	dbmodels "github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/models"
)

// RequireAdmin middleware ensures the user has the admin role
func RequireAdmin(db *gorm.DB) echo.MiddlewareFunc {
	return requireRole(db, dbmodels.RoleAdmin)
}

// RequireAgent middleware ensures the user is an agent or an admin. Client
// portal users are rejected.
func RequireAgent(db *gorm.DB) echo.MiddlewareFunc {
	return requireRole(db, dbmodels.RoleAdmin, dbmodels.RoleAgent)
}

func requireRole(db *gorm.DB, roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Set by the JWT middleware.
			userID, ok := c.Get("user_id").(uint)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "unauthorized",
					Message: "Authentication required",
				})
			}

			var user dbmodels.User
			if err := db.WithContext(c.Request().Context()).First(&user, userID).Error; err != nil {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "user_not_found",
					Message: "User not found",
				})
			}

			if user.Status == dbmodels.StatusInactive {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error:   "account_suspended",
					Message: "This account has been suspended",
				})
			}

			if !allowed[user.Role] {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error:   "forbidden",
					Message: "Insufficient permissions",
				})
			}

			c.Set("user_role", user.Role)

			return next(c)
		}
	}
}
