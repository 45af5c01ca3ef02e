package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	apierrors "github.com/nvalencia/agentbook/pkg/api/errors"
	"github.com/nvalencia/agentbook/pkg/audit"
	"github.com/nvalencia/agentbook/pkg/deals"
	"github.com/nvalencia/agentbook/pkg/hierarchy"
	"github.com/nvalencia/agentbook/pkg/models"
)

// DealHandler handles deal submission, retrieval and the book of business
type DealHandler struct {
	deals       *deals.Service
	hierarchy   *hierarchy.Service
	auditLogger *audit.Service
	validator   *validator.Validate
}

// NewDealHandler creates a new deal handler
func NewDealHandler(dealService *deals.Service, hierarchyService *hierarchy.Service, auditLogger *audit.Service) *DealHandler {
	return &DealHandler{
		deals:       dealService,
		hierarchy:   hierarchyService,
		auditLogger: auditLogger,
		validator:   validator.New(),
	}
}

// Submit creates or updates a deal by natural key
func (h *DealHandler) Submit(c echo.Context) error {
	agencyID, agentID, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req models.DealSubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.deals.Submit(c.Request().Context(), agencyID, agentID, req)
	if err != nil {
		var fieldErrs deals.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return apierrors.FieldValidationError(c, fieldErrs)
		}
		var bizErr *deals.BusinessRuleError
		if errors.As(err, &bizErr) {
			return apierrors.BusinessError(c, bizErr.Code, bizErr.Message, bizErr.Remediation)
		}
		return apierrors.DatabaseError(c, err)
	}

	ipAddress, userAgent := audit.GetRequestContext(c)
	go h.auditLogger.LogDealSubmitted(context.Background(), agencyID, agentID, resp.ID, resp.Operation, ipAddress, userAgent)

	status := http.StatusCreated
	if resp.Operation == deals.OperationUpdated {
		status = http.StatusOK
	}
	return c.JSON(status, resp)
}

// Get returns one deal with beneficiaries
func (h *DealHandler) Get(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	dealID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid deal id",
		})
	}

	deal, err := h.deals.Get(c.Request().Context(), agencyID, uint(dealID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierrors.NotFoundError(c, "deal")
		}
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, deal)
}

// BookOfBusiness returns one cursor page of the agency's deals
func (h *DealHandler) BookOfBusiness(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req models.BookOfBusinessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid query parameters",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.deals.BookOfBusiness(c.Request().Context(), agencyID, req)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// FormData returns the reference data the deal wizard needs
func (h *DealHandler) FormData(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	resp, err := h.deals.FormData(c.Request().Context(), agencyID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// ProductsByCarrier narrows the product options for one carrier
func (h *DealHandler) ProductsByCarrier(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	carrierID, err := strconv.ParseUint(c.QueryParam("carrier_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "carrier_id query parameter is required",
		})
	}

	options, err := h.deals.ProductsByCarrier(c.Request().Context(), agencyID, uint(carrierID))
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, options)
}

// CommissionChain returns the commission split for one deal, root first
func (h *DealHandler) CommissionChain(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	dealID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid deal id",
		})
	}

	chain, err := h.hierarchy.Chain(c.Request().Context(), agencyID, uint(dealID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierrors.NotFoundError(c, "deal")
		}
		if errors.Is(err, hierarchy.ErrNoSnapshots) {
			return apierrors.BusinessError(c, "no_snapshots",
				"No commission snapshots exist for this deal.",
				"Snapshots are written when a deal is created; imported deals may lack them.")
		}
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, chain)
}

// identity pulls the authenticated user's ids out of the request context
func identity(c echo.Context) (agencyID, userID uint, ok bool) {
	userID, uok := c.Get("user_id").(uint)
	agencyID, aok := c.Get("agency_id").(uint)
	return agencyID, userID, uok && aok
}
