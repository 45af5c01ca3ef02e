package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/nvalencia/agentbook/pkg/api/errors"
	"github.com/nvalencia/agentbook/pkg/assistant"
	"github.com/nvalencia/agentbook/pkg/models"
)

// AssistantHandler handles the AI assistant chat endpoint
type AssistantHandler struct {
	assistant *assistant.Service
	validator *validator.Validate
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(assistantService *assistant.Service) *AssistantHandler {
	return &AssistantHandler{
		assistant: assistantService,
		validator: validator.New(),
	}
}

// Chat answers a question about the caller agency's data
func (h *AssistantHandler) Chat(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req models.AssistantChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.assistant.Chat(c.Request().Context(), agencyID, req)
	if err != nil {
		if errors.Is(err, assistant.ErrNotConfigured) {
			return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Error:   "assistant_unavailable",
				Message: "The assistant is not configured for this deployment.",
			})
		}
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}
