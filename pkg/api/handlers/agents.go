package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apierrors "github.com/nvalencia/agentbook/pkg/api/errors"
	dbmodels "github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/email"
	"github.com/nvalencia/agentbook/pkg/hierarchy"
	"github.com/nvalencia/agentbook/pkg/models"
)

// AgentHandler handles agent hierarchy and invitation endpoints
type AgentHandler struct {
	db           *gorm.DB
	hierarchy    *hierarchy.Service
	emailService *email.Service
	validator    *validator.Validate
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(db *gorm.DB, hierarchyService *hierarchy.Service, emailService *email.Service) *AgentHandler {
	return &AgentHandler{
		db:           db,
		hierarchy:    hierarchyService,
		emailService: emailService,
		validator:    validator.New(),
	}
}

// CheckPositions reports whether the caller and every upline have a
// commission position assigned. Deal posting is blocked until they do.
func (h *AgentHandler) CheckPositions(c echo.Context) error {
	_, userID, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	resp, err := h.hierarchy.CheckPositions(c.Request().Context(), userID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// Downline lists the agents under the caller with depth and deal counts
func (h *AgentHandler) Downline(c echo.Context) error {
	agencyID, userID, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	entries, err := h.hierarchy.Downline(c.Request().Context(), agencyID, userID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, entries)
}

// Invite creates an agent account and sends the invitation email. Admin
// only.
func (h *AgentHandler) Invite(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req models.InviteAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	rate := decimal.Zero
	if req.Rate != "" {
		parsed, err := decimal.NewFromString(req.Rate)
		if err != nil || parsed.IsNegative() || parsed.GreaterThan(decimal.NewFromInt(100)) {
			return apierrors.FieldValidationError(c, map[string]string{
				"rate": "must be a percentage between 0 and 100",
			})
		}
		rate = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var count int64
	if err := h.db.WithContext(ctx).Model(&dbmodels.User{}).
		Where("agency_id = ? AND email = ?", agencyID, req.Email).Count(&count).Error; err != nil {
		return apierrors.DatabaseError(c, err)
	}
	if count > 0 {
		return apierrors.ConflictError(c, "A user with this email already exists in this agency")
	}

	if req.UplineID != nil {
		var upline dbmodels.User
		err := h.db.WithContext(ctx).
			Where("id = ? AND agency_id = ?", *req.UplineID, agencyID).
			First(&upline).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierrors.FieldValidationError(c, map[string]string{
					"upline_id": "unknown upline agent",
				})
			}
			return apierrors.DatabaseError(c, err)
		}
	}

	token := uuid.NewString()
	now := time.Now()
	agent := dbmodels.User{
		AgencyID:         agencyID,
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Role:             dbmodels.RoleAgent,
		Status:           dbmodels.StatusInvited,
		UplineID:         req.UplineID,
		Position:         req.Position,
		CommissionRate:   rate,
		InvitationToken:  &token,
		InvitationSentAt: &now,
	}
	if err := h.db.WithContext(ctx).Create(&agent).Error; err != nil {
		return apierrors.DatabaseError(c, err)
	}

	// Send invitation email (async)
	go h.emailService.SendAgentInvitation(agent.Email, agent.FullName(), token)

	return c.JSON(http.StatusCreated, toUserInfo(&agent))
}
