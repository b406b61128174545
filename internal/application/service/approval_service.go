package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var (
	// ErrInvoiceNotFound is returned when the referenced invoice does not exist
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrUnknownAction is returned for an action outside the approval vocabulary
	ErrUnknownAction = errors.New("unknown approval action")

	// ErrReasonRequired is returned when a reject carries no manual reason and
	// the adviser could not supply one
	ErrReasonRequired = errors.New("enter a specific rejection reason before continuing")

	// ErrNotPending is returned when the AI pre-check targets a non-pending invoice
	ErrNotPending = errors.New("AI pre-check only applies to pending invoices")
)

// ActionRequest is the payload of the approvals action endpoint
type ActionRequest struct {
	InvoiceID int64                      `json:"invoice_id"`
	Action    string                     `json:"action"`
	Reason    string                     `json:"reason"`
	Category  workflow.RejectionCategory `json:"category,omitempty"`
}

// ApprovalService runs the approval workflow: listing, actions, and the AI
// pre-check. Every action is re-validated here regardless of what the front
// end allowed.
type ApprovalService interface {
	// List returns the full invoice snapshot with line items attached.
	// Clients re-fetch this after every mutation instead of patching.
	List(ctx context.Context) ([]*entity.Invoice, error)

	// ExecuteAction validates and applies one approval action, returning a
	// user-facing confirmation message
	ExecuteAction(ctx context.Context, actor entity.Actor, req ActionRequest) (string, error)

	// RunPendingAICheck returns the adviser's verdict for a pending invoice,
	// reusing the per-session cache so each invoice is analyzed at most once
	RunPendingAICheck(ctx context.Context, actor entity.Actor, invoiceID int64) (*entity.AIReviewStatus, error)

	// History returns the invoice's transition audit trail, newest first
	History(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error)

	// Actions returns the actions offered to the actor for an invoice
	Actions(invoice *entity.Invoice, actor entity.Actor) []workflow.Trigger
}

type approvalService struct {
	invoiceRepo port.InvoiceRepository
	itemRepo    port.ItemRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	adviser     port.AIAdviser
	cache       *ReviewCache
	logger      Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	invoiceRepo port.InvoiceRepository,
	itemRepo port.ItemRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	adviser port.AIAdviser,
	cache *ReviewCache,
	logger Logger,
) ApprovalService {
	return &approvalService{
		invoiceRepo: invoiceRepo,
		itemRepo:    itemRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		adviser:     adviser,
		cache:       cache,
		logger:      logger,
	}
}

var approvalActions = map[workflow.Trigger]bool{
	workflow.TriggerApprove:     true,
	workflow.TriggerReject:      true,
	workflow.TriggerHold:        true,
	workflow.TriggerAcknowledge: true,
	workflow.TriggerResend:      true,
}

// List returns all invoices with their line items
func (s *approvalService) List(ctx context.Context) ([]*entity.Invoice, error) {
	invoices, err := s.invoiceRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list invoices", "error", err)
		return nil, err
	}

	for _, inv := range invoices {
		items, err := s.itemRepo.GetByInvoiceID(ctx, inv.ID)
		if err != nil {
			s.logger.Error("Failed to load invoice items", "error", err, "invoice_id", inv.ID)
			return nil, err
		}
		inv.Items = items
	}

	return invoices, nil
}

// ExecuteAction validates and applies one approval action
func (s *approvalService) ExecuteAction(ctx context.Context, actor entity.Actor, req ActionRequest) (string, error) {
	trigger := workflow.Trigger(req.Action)
	if !approvalActions[trigger] {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	// Capability check before anything else; a denied action must not touch
	// the record or the adviser.
	if !actor.Role.Can(trigger) {
		return "", fmt.Errorf("%w: role %s cannot %s", workflow.ErrPermissionDenied, actor.Role, trigger)
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return "", err
	}
	if invoice == nil {
		return "", ErrInvoiceNotFound
	}

	reason := strings.TrimSpace(req.Reason)
	category := req.Category
	if !category.IsValid() {
		category = workflow.CategoryEditable
	}

	machine := workflow.NewApprovalMachine(invoice.ApprovalStatus, actor.Role, invoice.RejectionCategory)

	// Only resolve a missing reason once the transition itself is possible;
	// a reject that Fire would refuse must not spend an adviser call.
	if trigger == workflow.TriggerReject && machine.CanFire(ctx, trigger) {
		reason, category, err = s.resolveRejectReason(ctx, invoice, reason, category)
		if err != nil {
			return "", err
		}
	}

	if err := machine.Fire(ctx, trigger); err != nil {
		s.logger.Error("Approval action blocked",
			"error", err, "invoice_id", invoice.ID, "action", trigger, "status", invoice.ApprovalStatus)
		return "", err
	}
	newStatus := machine.State()

	storedReason := ""
	storedCategory := workflow.RejectionCategory("")
	if newStatus == workflow.StateRejected {
		storedReason = reason
		storedCategory = category
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.UpdateApprovalStatus(txCtx, invoice.ID, newStatus, storedReason, storedCategory); err != nil {
			return fmt.Errorf("update approval status: %w", err)
		}

		history := &entity.ApprovalHistory{
			InvoiceID:      invoice.ID,
			ActorID:        actor.ID,
			PreviousStatus: invoice.ApprovalStatus,
			NewStatus:      newStatus,
			Action:         trigger,
			Reason:         storedReason,
			CreatedAt:      time.Now(),
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}

		return nil
	})
	if err != nil {
		s.logger.Error("Failed to apply approval action", "error", err, "invoice_id", invoice.ID, "action", trigger)
		return "", err
	}

	s.logger.Info("Approval action applied",
		"invoice_id", invoice.ID,
		"invoice_number", invoice.InvoiceNumber,
		"action", trigger,
		"from", invoice.ApprovalStatus,
		"to", newStatus,
		"actor", actor.ID)

	return actionMessage(trigger), nil
}

// resolveRejectReason fills in a missing reject reason from the adviser. If
// the adviser recommends rejection the synthesized reason is
// "{title}: {description}"; if it finds no issue the fixed non-editable
// explanation is used and the category flips regardless of the selection.
// An unreachable adviser makes the missing reason a hard validation error.
func (s *approvalService) resolveRejectReason(ctx context.Context, invoice *entity.Invoice, reason string, category workflow.RejectionCategory) (string, workflow.RejectionCategory, error) {
	if reason == "" {
		items, err := s.itemRepo.GetByInvoiceID(ctx, invoice.ID)
		if err != nil {
			return "", "", err
		}
		invoice.Items = items

		analysis, aiErr := s.adviser.DetectRejection(ctx, invoice)
		if aiErr != nil {
			s.logger.Error("AI auto-reason generation failed", "error", aiErr, "invoice_id", invoice.ID)
			return "", "", ErrReasonRequired
		}

		if analysis.ShouldReject {
			title := analysis.RejectionTitle
			if title == "" {
				title = "AI Rejection Reason"
			}
			description := analysis.RejectionDescription
			if description == "" {
				description = "Detected invoice issues requiring correction."
			}
			reason = fmt.Sprintf("%s: %s", title, description)
		} else {
			reason = workflow.NoDataIssuesReason
			category = workflow.CategoryNonEditable
		}
	}

	if reason == "" {
		return "", "", ErrReasonRequired
	}

	// Respect a tag already embedded in the text, then make sure exactly one
	// suffix is present.
	category = workflow.ReasonCategory(reason, category)
	return workflow.TagReason(reason, category), category, nil
}

// RunPendingAICheck returns the adviser's verdict for a pending invoice
func (s *approvalService) RunPendingAICheck(ctx context.Context, actor entity.Actor, invoiceID int64) (*entity.AIReviewStatus, error) {
	if !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("%w: only admin users can run AI checks", workflow.ErrPermissionDenied)
	}

	if cached := s.cache.Get(invoiceID); cached != nil && cached.Checked {
		return cached, nil
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	if invoice.ApprovalStatus != workflow.StatePending {
		return nil, fmt.Errorf("%w: invoice %s is %s", ErrNotPending, invoice.InvoiceNumber, invoice.ApprovalStatus)
	}

	items, err := s.itemRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	invoice.Items = items

	analysis, err := s.adviser.DetectRejection(ctx, invoice)
	if err != nil {
		// Left unchecked on purpose; the check can be retried.
		s.logger.Error("AI pre-check failed", "error", err, "invoice_id", invoiceID)
		return nil, err
	}

	status := s.cache.Put(invoiceID, analysis)
	s.logger.Info("AI pre-check completed",
		"invoice_id", invoiceID,
		"has_issues", status.HasIssues,
		"recommended", status.RecommendedAction())
	return status, nil
}

// History returns the invoice's transition audit trail
func (s *approvalService) History(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}

	return s.historyRepo.GetByInvoiceID(ctx, invoiceID)
}

// Actions returns the actions offered to the actor for an invoice
func (s *approvalService) Actions(invoice *entity.Invoice, actor entity.Actor) []workflow.Trigger {
	return workflow.ApprovalActions(invoice.ApprovalStatus, actor.Role, invoice.RejectionCategory)
}

func actionMessage(trigger workflow.Trigger) string {
	switch trigger {
	case workflow.TriggerApprove:
		return "Invoice approved successfully"
	case workflow.TriggerReject:
		return "Invoice rejected"
	case workflow.TriggerHold:
		return "Invoice placed on hold"
	case workflow.TriggerAcknowledge:
		return "Invoice acknowledged and placed on hold. You can resend once the client issue is resolved."
	case workflow.TriggerResend:
		return "Invoice resent for approval. Status changed to pending."
	default:
		return "Action completed successfully"
	}
}
