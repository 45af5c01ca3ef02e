package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apierrors "github.com/nvalencia/agentbook/pkg/api/errors"
	"github.com/nvalencia/agentbook/pkg/audit"
	dbmodels "github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/models"
)

// AdminHandler handles agency user administration (admin only)
type AdminHandler struct {
	db          *gorm.DB
	auditLogger *audit.Service
	validator   *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *gorm.DB, auditLogger *audit.Service) *AdminHandler {
	return &AdminHandler{
		db:          db,
		auditLogger: auditLogger,
		validator:   validator.New(),
	}
}

// ListUsers returns a paged listing of the agency's users
func (h *AdminHandler) ListUsers(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	query := h.db.WithContext(ctx).Model(&dbmodels.User{}).Where("agency_id = ?", agencyID)
	if role := c.QueryParam("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return apierrors.DatabaseError(c, err)
	}

	var users []dbmodels.User
	err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	resp := models.UserListResponse{
		Data:  make([]models.UserInfo, 0, len(users)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range users {
		resp.Data = append(resp.Data, *toUserInfo(&users[i]))
	}

	return c.JSON(http.StatusOK, resp)
}

// UpdateUser applies a partial update to one agency user
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	agencyID, adminID, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid user id",
		})
	}

	var req models.AdminUpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var user dbmodels.User
	err = h.db.WithContext(ctx).
		Where("id = ? AND agency_id = ?", targetID, agencyID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierrors.NotFoundError(c, "user")
		}
		return apierrors.DatabaseError(c, err)
	}

	suspended := false
	if req.Status != nil {
		suspended = *req.Status == dbmodels.StatusInactive && user.Status != dbmodels.StatusInactive
		user.Status = *req.Status
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.UplineID != nil {
		if *req.UplineID == user.ID {
			return apierrors.FieldValidationError(c, map[string]string{
				"upline_id": "an agent cannot be their own upline",
			})
		}
		user.UplineID = req.UplineID
	}
	if req.Position != nil {
		user.Position = *req.Position
	}
	if req.Rate != nil {
		rate, err := decimal.NewFromString(*req.Rate)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return apierrors.FieldValidationError(c, map[string]string{
				"rate": "must be a percentage between 0 and 100",
			})
		}
		user.CommissionRate = rate
	}

	if err := h.db.WithContext(ctx).Save(&user).Error; err != nil {
		return apierrors.DatabaseError(c, err)
	}

	if suspended {
		ipAddress, userAgent := audit.GetRequestContext(c)
		go h.auditLogger.LogUserSuspended(context.Background(), agencyID, adminID, user.ID, ipAddress, userAgent)
	}

	return c.JSON(http.StatusOK, toUserInfo(&user))
}
