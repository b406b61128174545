package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `id, invoice_number, client_id, one_off_client, company_name, email,
	phone, address, currency, gst_rate, payment_terms, issue_date, due_date, notes,
	approval_status, rejection_reason, rejection_category, delivery_status,
	opened_at, last_resent_at, created_at, updated_at`

// Create inserts a new invoice record
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			invoice_number, client_id, one_off_client, company_name, email,
			phone, address, currency, gst_rate, payment_terms, issue_date,
			due_date, notes, approval_status, rejection_reason,
			rejection_category, delivery_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		invoice.InvoiceNumber,
		invoice.ClientID,
		invoice.OneOffClient,
		invoice.CompanyName,
		invoice.Email,
		invoice.Phone,
		invoice.Address,
		invoice.Currency,
		invoice.GSTRate.String(),
		string(invoice.PaymentTerms),
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Notes,
		string(invoice.ApprovalStatus),
		invoice.RejectionReason,
		string(invoice.RejectionCategory),
		string(invoice.DeliveryStatus),
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	invoice.ID = id
	return nil
}

// GetByID retrieves an invoice by id, nil when absent
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE id = ?", invoiceColumns)

	row := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id)
	invoice, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// List returns all invoices, newest first
func (r *InvoiceRepository) List(ctx context.Context) ([]*entity.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices ORDER BY id DESC", invoiceColumns)
	return r.queryInvoices(ctx, query)
}

// ListByDeliveryStatus returns invoices with the given delivery status
func (r *InvoiceRepository) ListByDeliveryStatus(ctx context.Context, status workflow.State) ([]*entity.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE delivery_status = ? ORDER BY id DESC", invoiceColumns)
	return r.queryInvoices(ctx, query, string(status))
}

func (r *InvoiceRepository) queryInvoices(ctx context.Context, query string, args ...interface{}) ([]*entity.Invoice, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// UpdateApprovalStatus sets status, reason and category in one write
func (r *InvoiceRepository) UpdateApprovalStatus(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
	query := `
		UPDATE invoices
		SET approval_status = ?, rejection_reason = ?, rejection_category = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		string(status), reason, string(category), id); err != nil {
		r.logger.Error("Failed to update approval status", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to update approval status: %w", err)
	}
	return nil
}

// UpdateEditable rewrites the fields the re-edit flow may change. The invoice
// number is immutable and not part of this update.
func (r *InvoiceRepository) UpdateEditable(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET company_name = ?, email = ?, phone = ?, address = ?, gst_rate = ?,
			payment_terms = ?, issue_date = ?, due_date = ?, notes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		invoice.CompanyName,
		invoice.Email,
		invoice.Phone,
		invoice.Address,
		invoice.GSTRate.String(),
		string(invoice.PaymentTerms),
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Notes,
		invoice.ID,
	); err != nil {
		r.logger.Error("Failed to update invoice", zap.Error(err), zap.Int64("id", invoice.ID))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// UpdateDeliveryStatus sets the delivery status
func (r *InvoiceRepository) UpdateDeliveryStatus(ctx context.Context, id int64, status workflow.State) error {
	query := `UPDATE invoices SET delivery_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, string(status), id); err != nil {
		r.logger.Error("Failed to update delivery status", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	return nil
}

// SetOpenedAt records the first open event timestamp
func (r *InvoiceRepository) SetOpenedAt(ctx context.Context, id int64, t time.Time) error {
	query := `UPDATE invoices SET opened_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, t, id); err != nil {
		return fmt.Errorf("failed to set opened_at: %w", err)
	}
	return nil
}

// SetLastResentAt records the latest resend attempt timestamp
func (r *InvoiceRepository) SetLastResentAt(ctx context.Context, id int64, t time.Time) error {
	query := `UPDATE invoices SET last_resent_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, t, id); err != nil {
		return fmt.Errorf("failed to set last_resent_at: %w", err)
	}
	return nil
}

var invoiceNumberPattern = regexp.MustCompile(`^INV-(\d{4})-(\d+)$`)

// NextInvoiceNumber returns the next number in the INV-{year}-{NNN} sequence
// for the current year
func (r *InvoiceRepository) NextInvoiceNumber(ctx context.Context) (string, error) {
	year := time.Now().Year()
	prefix := fmt.Sprintf("INV-%d-%%", year)

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx,
		"SELECT invoice_number FROM invoices WHERE invoice_number LIKE ?", prefix)
	if err != nil {
		return "", fmt.Errorf("failed to query invoice numbers: %w", err)
	}
	defer rows.Close()

	highest := 0
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return "", err
		}
		m := invoiceNumberPattern.FindStringSubmatch(number)
		if m == nil {
			continue
		}
		if y, _ := strconv.Atoi(m[1]); y != year {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil && n > highest {
			highest = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return fmt.Sprintf("INV-%d-%03d", year, highest+1), nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(s scanner) (*entity.Invoice, error) {
	var invoice entity.Invoice
	var clientID sql.NullInt64
	var gstRate, paymentTerms, approvalStatus, rejectionCategory, deliveryStatus string
	var openedAt, lastResentAt sql.NullTime

	err := s.Scan(
		&invoice.ID,
		&invoice.InvoiceNumber,
		&clientID,
		&invoice.OneOffClient,
		&invoice.CompanyName,
		&invoice.Email,
		&invoice.Phone,
		&invoice.Address,
		&invoice.Currency,
		&gstRate,
		&paymentTerms,
		&invoice.IssueDate,
		&invoice.DueDate,
		&invoice.Notes,
		&approvalStatus,
		&invoice.RejectionReason,
		&rejectionCategory,
		&deliveryStatus,
		&openedAt,
		&lastResentAt,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if clientID.Valid {
		invoice.ClientID = &clientID.Int64
	}
	rate, err := decimal.NewFromString(gstRate)
	if err != nil {
		return nil, fmt.Errorf("invalid gst_rate %q: %w", gstRate, err)
	}
	invoice.GSTRate = rate
	invoice.PaymentTerms = entity.PaymentTerms(paymentTerms)
	invoice.ApprovalStatus = workflow.State(approvalStatus)
	invoice.RejectionCategory = workflow.RejectionCategory(rejectionCategory)
	invoice.DeliveryStatus = workflow.State(deliveryStatus)
	if openedAt.Valid {
		invoice.OpenedAt = &openedAt.Time
	}
	if lastResentAt.Valid {
		invoice.LastResentAt = &lastResentAt.Time
	}
	return &invoice, nil
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
