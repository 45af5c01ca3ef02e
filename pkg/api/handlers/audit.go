package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierrors "github.com/nvalencia/agentbook/pkg/api/errors"
	"github.com/nvalencia/agentbook/pkg/audit"
)

// AuditHandler exposes audit log listings
type AuditHandler struct {
	auditService *audit.Service
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *audit.Service) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// UserLogs returns the caller's own audit trail
func (h *AuditHandler) UserLogs(c echo.Context) error {
	agencyID, userID, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	logs, err := h.auditService.GetUserLogs(c.Request().Context(), agencyID, userID, limit)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  logs,
		"count": len(logs),
	})
}

// RecentLogs returns the agency-wide audit trail. Admin only.
func (h *AuditHandler) RecentLogs(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	logs, err := h.auditService.GetRecentLogs(c.Request().Context(), agencyID, limit)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  logs,
		"count": len(logs),
	})
}
