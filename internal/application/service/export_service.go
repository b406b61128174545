package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/money"
)

// ExportService produces the approvals spreadsheet report
type ExportService interface {
	// ExportApprovals renders every invoice with computed totals into an
	// xlsx workbook
	ExportApprovals(ctx context.Context) ([]byte, error)
}

type exportService struct {
	invoiceRepo port.InvoiceRepository
	itemRepo    port.ItemRepository
	logger      Logger
}

// NewExportService creates a new ExportService
func NewExportService(invoiceRepo port.InvoiceRepository, itemRepo port.ItemRepository, logger Logger) ExportService {
	return &exportService{
		invoiceRepo: invoiceRepo,
		itemRepo:    itemRepo,
		logger:      logger,
	}
}

const exportSheet = "Approvals"

var exportHeaders = []string{
	"Invoice Number", "Client", "Issue Date", "Due Date", "Currency",
	"Subtotal", "Tax", "Total", "Approval Status", "Rejection Reason", "Delivery Status",
}

// ExportApprovals renders every invoice into an xlsx workbook
func (s *exportService) ExportApprovals(ctx context.Context) ([]byte, error) {
	invoices, err := s.invoiceRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for row, inv := range invoices {
		items, err := s.itemRepo.GetByInvoiceID(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		totals := money.Compute(items, inv.GSTRate).Rounded()

		client := inv.CompanyName
		if client == "" {
			client = inv.OneOffClient
		}

		values := []interface{}{
			inv.InvoiceNumber,
			client,
			inv.IssueDate.Format(dateLayout),
			inv.DueDate.Format(dateLayout),
			inv.Currency,
			totals.Subtotal.InexactFloat64(),
			totals.Tax.InexactFloat64(),
			totals.Total.InexactFloat64(),
			inv.ApprovalStatus.String(),
			inv.RejectionReason,
			inv.DeliveryStatus.String(),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("Approvals export generated", "invoices", len(invoices))
	return buf.Bytes(), nil
}
