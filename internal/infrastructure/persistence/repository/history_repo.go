package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new approval history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create records one workflow transition
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	query := `
		INSERT INTO approval_history (invoice_id, actor_id, previous_status, new_status, action, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		history.InvoiceID,
		history.ActorID,
		string(history.PreviousStatus),
		string(history.NewStatus),
		string(history.Action),
		history.Reason,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err), zap.Int64("invoice_id", history.InvoiceID))
		return fmt.Errorf("failed to create history record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	history.ID = id
	return nil
}

// GetByInvoiceID returns the invoice's transitions, newest first
func (r *HistoryRepository) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, invoice_id, actor_id, previous_status, new_status, action, reason, created_at
		FROM approval_history
		WHERE invoice_id = ?
		ORDER BY id DESC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.Error(err), zap.Int64("invoice_id", invoiceID))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []*entity.ApprovalHistory
	for rows.Next() {
		var h entity.ApprovalHistory
		var previousStatus, newStatus, action string

		if err := rows.Scan(
			&h.ID,
			&h.InvoiceID,
			&h.ActorID,
			&previousStatus,
			&newStatus,
			&action,
			&h.Reason,
			&h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}

		h.PreviousStatus = workflow.State(previousStatus)
		h.NewStatus = workflow.State(newStatus)
		h.Action = workflow.Trigger(action)
		records = append(records, &h)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
