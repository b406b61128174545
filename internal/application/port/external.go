package port

import (
	"context"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// AIAdviser is the external analysis collaborator. Both operations are
// fallible network calls; callers treat any failure as "no recommendation
// available" and never block on adviser unavailability, except the
// reject-without-manual-reason path documented on the approval service.
type AIAdviser interface {
	// DetectRejection analyzes a stored invoice and recommends whether it
	// should be rejected
	DetectRejection(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error)

	// ValidateDraft scores an in-progress draft and lists issues. Advisory
	// only; results never block resubmission.
	ValidateDraft(ctx context.Context, draft *entity.InvoiceDraft) (*entity.DraftValidation, error)
}

// DocumentExtractor pulls candidate line items out of an uploaded PO or
// quote document for the bulk-import flow
type DocumentExtractor interface {
	ExtractLineItems(ctx context.Context, filePath string) ([]entity.ItemCandidate, error)
}

// WebhookMonitor reports whether the delivery-confirmation webhook can
// currently confirm deliveries on its own
type WebhookMonitor interface {
	State(ctx context.Context) workflow.WebhookState
}
