package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/nvalencia/agentbook/pkg/api/errors"
	"github.com/nvalencia/agentbook/pkg/export"
	"github.com/nvalencia/agentbook/pkg/models"
)

// ExportHandler handles book-of-business downloads
type ExportHandler struct {
	exports   *export.Service
	validator *validator.Validate
}

// NewExportHandler creates a new export handler
func NewExportHandler(exportService *export.Service) *ExportHandler {
	return &ExportHandler{
		exports:   exportService,
		validator: validator.New(),
	}
}

// BookOfBusiness streams the filtered book as a CSV or Excel download.
// The same filters as the listing endpoint apply; format defaults to
// excel.
func (h *ExportHandler) BookOfBusiness(c echo.Context) error {
	agencyID, _, ok := identity(c)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var filters models.BookOfBusinessRequest
	if err := c.Bind(&filters); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid query parameters",
		})
	}

	if err := h.validator.Struct(filters); err != nil {
		return apierrors.ValidationError(c, err)
	}

	format := c.QueryParam("format")
	if format == "" {
		format = export.FormatExcel
	}
	if format != export.FormatCSV && format != export.FormatExcel {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_format",
			Message: "format must be csv or excel",
		})
	}

	result, err := h.exports.BookOfBusiness(c.Request().Context(), agencyID, format, filters)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", result.Filename))
	return c.Blob(http.StatusOK, result.ContentType, result.Data)
}
