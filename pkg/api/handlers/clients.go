package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/nvalencia/agentbook/pkg/api/errors"
	"github.com/nvalencia/agentbook/pkg/audit"
	"github.com/nvalencia/agentbook/pkg/clients"
	"github.com/nvalencia/agentbook/pkg/models"
)

// ClientHandler handles client portal invitations and onboarding
type ClientHandler struct {
	clients     *clients.Service
	auditLogger *audit.Service
	validator   *validator.Validate
}

// NewClientHandler creates a new client handler
func NewClientHandler(clientService *clients.Service, auditLogger *audit.Service) *ClientHandler {
	return &ClientHandler{
		clients:     clientService,
		auditLogger: auditLogger,
		validator:   validator.New(),
	}
}

// Invite sends a portal invitation outside the deal flow
func (h *ClientHandler) Invite(c echo.Context) error {
	agencyID, userID, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req models.InviteClientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	result := h.clients.InviteForDeal(c.Request().Context(), agencyID, req.Email, req.FirstName, req.LastName, req.PhoneNumber)

	if result.ClientID != 0 {
		go h.auditLogger.LogInvitationSent(context.Background(), agencyID, userID, result.ClientID, result.Status)
	}

	return c.JSON(http.StatusOK, models.InviteClientResponse{
		Success:       result.Sent || result.AlreadyExists,
		UserID:        result.ClientID,
		AlreadyExists: result.AlreadyExists,
		Status:        result.Status,
	})
}

// SetupComplete finishes a client's portal onboarding. Public: the token
// is the credential.
func (h *ClientHandler) SetupComplete(c echo.Context) error {
	var req models.SetupCompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	user, err := h.clients.CompleteSetup(c.Request().Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, clients.ErrInvalidToken) {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "invalid_token",
				Message: "This invitation link is invalid or has expired.",
			})
		}
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, toUserInfo(user))
}
