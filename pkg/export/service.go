package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nvalencia/agentbook/pkg/deals"
	"github.com/nvalencia/agentbook/pkg/logger"
	apimodels "github.com/nvalencia/agentbook/pkg/models"
)

// Export formats
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
)

// maxExportRows caps a single export download
const maxExportRows = 10000

// Result is a generated export ready for download
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
	RowCount    int
}

// Service generates book-of-business downloads
type Service struct {
	deals *deals.Service
	log   logger.Logger
}

// NewService creates a new export service
func NewService(dealService *deals.Service, log logger.Logger) *Service {
	return &Service{deals: dealService, log: log}
}

// BookOfBusiness exports the agency's filtered book as CSV or Excel. The
// full result set is paged out of the book query up to the row cap.
func (s *Service) BookOfBusiness(ctx context.Context, agencyID uint, format string, filters apimodels.BookOfBusinessRequest) (*Result, error) {
	if format != FormatCSV && format != FormatExcel {
		return nil, fmt.Errorf("invalid format: must be csv or excel")
	}

	rows, err := s.collectRows(ctx, agencyID, filters)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102-150405")
	var result *Result
	if format == FormatCSV {
		data, err := generateCSV(rows)
		if err != nil {
			return nil, err
		}
		result = &Result{
			Filename:    fmt.Sprintf("book-of-business-%s.csv", timestamp),
			ContentType: "text/csv",
			Data:        data,
		}
	} else {
		data, err := generateExcel(rows)
		if err != nil {
			return nil, err
		}
		result = &Result{
			Filename:    fmt.Sprintf("book-of-business-%s.xlsx", timestamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}
	}
	result.RowCount = len(rows)

	s.log.Info("book export generated", "agency_id", agencyID, "format", format, "rows", len(rows))
	return result, nil
}

func (s *Service) collectRows(ctx context.Context, agencyID uint, filters apimodels.BookOfBusinessRequest) ([]apimodels.DealResponse, error) {
	filters.Limit = 100
	filters.Cursor = ""

	var rows []apimodels.DealResponse
	for len(rows) < maxExportRows {
		page, err := s.deals.BookOfBusiness(ctx, agencyID, filters)
		if err != nil {
			return nil, fmt.Errorf("export query failed: %w", err)
		}
		rows = append(rows, page.Data...)
		if !page.HasMore {
			break
		}
		filters.Cursor = page.NextCursor
	}
	if len(rows) > maxExportRows {
		rows = rows[:maxExportRows]
	}
	return rows, nil
}

var exportHeaders = []string{
	"ID", "Agent", "Carrier", "Product", "Policy Number", "Application Number",
	"Client First Name", "Client Last Name", "Client Email", "Client Phone",
	"Monthly Premium", "Annual Premium", "Billing Cycle", "Status",
	"Effective Date", "Created At",
}

func dealCells(deal apimodels.DealResponse) []string {
	return []string{
		strconv.FormatUint(uint64(deal.ID), 10),
		deal.AgentName,
		deal.CarrierName,
		deal.ProductName,
		deal.PolicyNumber,
		deal.ApplicationNumber,
		deal.ClientFirstName,
		deal.ClientLastName,
		deal.ClientEmail,
		deal.ClientPhone,
		deal.MonthlyPremium,
		deal.AnnualPremium,
		deal.BillingCycle,
		deal.Status,
		deal.EffectiveDate,
		deal.CreatedAt,
	}
}

func generateCSV(rows []apimodels.DealResponse) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, deal := range rows {
		if err := writer.Write(dealCells(deal)); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func generateExcel(rows []apimodels.DealResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Book of Business"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, deal := range rows {
		for colIdx, value := range dealCells(deal) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range exportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	f.SetActiveSheet(index)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
