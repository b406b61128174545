package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
)

// ItemRepository implements port.ItemRepository
type ItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *sql.DB, logger *zap.Logger) port.ItemRepository {
	return &ItemRepository{
		db:     db,
		logger: logger,
	}
}

// GetByInvoiceID returns the invoice's line items in display order
func (r *ItemRepository) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.LineItem, error) {
	query := `
		SELECT id, invoice_id, position, description, quantity, unit_price
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY position
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list invoice items", zap.Error(err), zap.Int64("invoice_id", invoiceID))
		return nil, fmt.Errorf("failed to list invoice items: %w", err)
	}
	defer rows.Close()

	var items []*entity.LineItem
	for rows.Next() {
		var item entity.LineItem
		var unitPrice string

		if err := rows.Scan(
			&item.ID,
			&item.InvoiceID,
			&item.Position,
			&item.Description,
			&item.Quantity,
			&unitPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}

		price, err := decimal.NewFromString(unitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit_price %q: %w", unitPrice, err)
		}
		item.UnitPrice = price
		items = append(items, &item)
	}
	return items, rows.Err()
}

// ReplaceForInvoice swaps the full item set for an invoice. Submission always
// carries the complete list, so this is delete-then-insert.
func (r *ItemRepository) ReplaceForInvoice(ctx context.Context, invoiceID int64, items []*entity.LineItem) error {
	exec := getExecutor(ctx, r.db)

	if _, err := exec.ExecContext(ctx, "DELETE FROM invoice_items WHERE invoice_id = ?", invoiceID); err != nil {
		r.logger.Error("Failed to clear invoice items", zap.Error(err), zap.Int64("invoice_id", invoiceID))
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}

	query := `
		INSERT INTO invoice_items (id, invoice_id, position, description, quantity, unit_price)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, item := range items {
		item.InvoiceID = invoiceID
		item.Position = i
		if _, err := exec.ExecContext(ctx, query,
			item.ID,
			invoiceID,
			item.Position,
			item.Description,
			item.Quantity,
			item.UnitPrice.String(),
		); err != nil {
			r.logger.Error("Failed to insert invoice item", zap.Error(err), zap.Int64("invoice_id", invoiceID))
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}
	return nil
}

// Verify interface compliance
var _ port.ItemRepository = (*ItemRepository)(nil)
