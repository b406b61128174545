package port

import (
	"context"
	"time"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// InvoiceRepository defines persistence operations for Invoice
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)
	List(ctx context.Context) ([]*entity.Invoice, error)
	ListByDeliveryStatus(ctx context.Context, status workflow.State) ([]*entity.Invoice, error)

	// UpdateApprovalStatus sets status, reason and category in one write.
	// Reason and category are cleared when the status is not rejected.
	UpdateApprovalStatus(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error

	// UpdateEditable rewrites the fields the re-edit flow may change.
	// The invoice number is immutable and not part of this update.
	UpdateEditable(ctx context.Context, invoice *entity.Invoice) error

	UpdateDeliveryStatus(ctx context.Context, id int64, status workflow.State) error
	SetOpenedAt(ctx context.Context, id int64, t time.Time) error
	SetLastResentAt(ctx context.Context, id int64, t time.Time) error

	// NextInvoiceNumber returns the next display number in sequence
	NextInvoiceNumber(ctx context.Context) (string, error)
}

// ItemRepository defines persistence operations for LineItem
type ItemRepository interface {
	GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.LineItem, error)

	// ReplaceForInvoice swaps the full item set for an invoice. Submission
	// always carries the complete list; there are no partial patches.
	ReplaceForInvoice(ctx context.Context, invoiceID int64, items []*entity.LineItem) error
}

// ClientRepository defines persistence operations for Client
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, id int64) (*entity.Client, error)
	List(ctx context.Context) ([]*entity.Client, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error)
}

// TransactionManager runs a function within a database transaction carried
// through the context
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
