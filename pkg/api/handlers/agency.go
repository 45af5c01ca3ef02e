package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/nvalencia/agentbook/pkg/agency"
	apierrors "github.com/nvalencia/agentbook/pkg/api/errors"
	"github.com/nvalencia/agentbook/pkg/audit"
	"github.com/nvalencia/agentbook/pkg/models"
)

// AgencyHandler handles agency settings endpoints (admin only)
type AgencyHandler struct {
	agencies    *agency.Service
	auditLogger *audit.Service
	validator   *validator.Validate
}

// NewAgencyHandler creates a new agency handler
func NewAgencyHandler(agencyService *agency.Service, auditLogger *audit.Service) *AgencyHandler {
	return &AgencyHandler{
		agencies:    agencyService,
		auditLogger: auditLogger,
		validator:   validator.New(),
	}
}

// GetSettings returns the caller agency's configuration
func (h *AgencyHandler) GetSettings(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	settings, err := h.agencies.Resolve(c.Request().Context(), agencyID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, toSettingsResponse(settings))
}

// UpdateSettings applies a partial settings update
func (h *AgencyHandler) UpdateSettings(c echo.Context) error {
	agencyID, adminID, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req models.UpdateAgencySettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	settings, err := h.agencies.Update(c.Request().Context(), agencyID, agency.UpdateInput{
		Name:                  req.Name,
		WhiteLabelDomain:      req.WhiteLabelDomain,
		TeamsEnabled:          req.TeamsEnabled,
		BeneficiariesRequired: req.BeneficiariesRequired,
		PostingEnabled:        req.PostingEnabled,
		DiscordWebhookURL:     req.DiscordWebhookURL,
		DealMessageTemplate:   req.DealMessageTemplate,
	})
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	changes := map[string]interface{}{}
	if req.TeamsEnabled != nil {
		changes["teams_enabled"] = *req.TeamsEnabled
	}
	if req.BeneficiariesRequired != nil {
		changes["beneficiaries_required"] = *req.BeneficiariesRequired
	}
	if req.PostingEnabled != nil {
		changes["posting_enabled"] = *req.PostingEnabled
	}
	if req.DiscordWebhookURL != nil {
		changes["discord_webhook_updated"] = true
	}
	ipAddress, userAgent := audit.GetRequestContext(c)
	go h.auditLogger.LogSettingsUpdated(context.Background(), agencyID, adminID, changes, ipAddress, userAgent)

	return c.JSON(http.StatusOK, toSettingsResponse(settings))
}

func toSettingsResponse(settings *agency.Settings) models.AgencySettingsResponse {
	return models.AgencySettingsResponse{
		ID:                    settings.AgencyID,
		Name:                  settings.Name,
		WhiteLabelDomain:      settings.WhiteLabelDomain,
		TeamsEnabled:          settings.TeamsEnabled,
		BeneficiariesRequired: settings.BeneficiariesRequired,
		PostingEnabled:        settings.PostingEnabled,
		DiscordWebhookSet:     settings.DiscordWebhookURL != "",
	}
}
