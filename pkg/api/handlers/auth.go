package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/config"
	"github.com/nvalencia/agentbook/pkg/api/errors"
	"github.com/nvalencia/agentbook/pkg/audit"
	"github.com/nvalencia/agentbook/pkg/auth"
	dbmodels "github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/metrics"
	"github.com/nvalencia/agentbook/pkg/models"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	db          *gorm.DB
	config      *config.Config
	blacklist   *auth.TokenBlacklist
	auditLogger *audit.Service
	metrics     *metrics.Metrics
	validator   *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, cfg *config.Config, blacklist *auth.TokenBlacklist, auditLogger *audit.Service, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		db:          db,
		config:      cfg,
		blacklist:   blacklist,
		auditLogger: auditLogger,
		metrics:     m,
		validator:   validator.New(),
	}
}

// Login authenticates a user with email and password and returns a JWT
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var user dbmodels.User
	err := h.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error
	if err != nil || user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.metrics.RecordLoginAttempt(false)
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid email or password",
		})
	}

	if user.Status == dbmodels.StatusInactive {
		h.metrics.RecordLoginAttempt(false)
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "account_suspended",
			Message: "This account has been suspended",
		})
	}

	token, err := auth.GenerateJWT(user.ID, user.AgencyID, user.Email, user.Role, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return errors.InternalError(c, err)
	}

	now := time.Now()
	h.db.WithContext(ctx).Model(&user).Update("last_login_at", now)

	h.metrics.RecordLoginAttempt(true)
	ipAddress, userAgent := audit.GetRequestContext(c)
	go h.auditLogger.LogUserLogin(context.Background(), user.AgencyID, user.ID, ipAddress, userAgent)

	return c.JSON(http.StatusOK, models.AuthResponse{
		Token: token,
		User:  toUserInfo(&user),
	})
}

// Logout blacklists the current token for the rest of its lifetime
func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := c.Get("token").(string)
	if !ok || token == "" {
		return errors.UnauthorizedError(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	expiration := time.Duration(h.config.JWTExpirationHours) * time.Hour
	if err := h.blacklist.Add(ctx, token, expiration); err != nil {
		return errors.InternalError(c, err)
	}

	if userID, ok := c.Get("user_id").(uint); ok {
		agencyID, _ := c.Get("agency_id").(uint)
		ipAddress, userAgent := audit.GetRequestContext(c)
		go h.auditLogger.LogUserLogout(context.Background(), agencyID, userID, ipAddress, userAgent)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Logged out successfully"})
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var user dbmodels.User
	if err := h.db.WithContext(c.Request().Context()).First(&user, userID).Error; err != nil {
		return errors.NotFoundError(c, "user")
	}

	return c.JSON(http.StatusOK, toUserInfo(&user))
}

func toUserInfo(user *dbmodels.User) *models.UserInfo {
	return &models.UserInfo{
		ID:        user.ID,
		AgencyID:  user.AgencyID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		Status:    user.Status,
		Position:  user.Position,
	}
}
