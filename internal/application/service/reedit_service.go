package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/items"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

var (
	// ErrNoLineItems is returned when a resubmission would leave the invoice
	// without a single line item
	ErrNoLineItems = errors.New("invoice must keep at least one line item")

	// ErrInvalidEmail is returned for a malformed contact email
	ErrInvalidEmail = errors.New("please enter a valid email address")

	// ErrBadIssueDate is returned when the invoice date cannot be parsed
	ErrBadIssueDate = errors.New("invalid invoice date")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const dateLayout = "2006-01-02"

// EditData is everything the re-edit form needs to render
type EditData struct {
	Invoice              *entity.Invoice             `json:"invoice"`
	Items                []*entity.LineItem          `json:"items"`
	RejectionTitle       string                      `json:"rejection_title,omitempty"`
	RejectionDescription string                      `json:"rejection_description,omitempty"`
	RejectionCategory    workflow.RejectionCategory  `json:"rejection_category,omitempty"`
}

// ReeditService implements the re-edit/resubmit flow for rejected invoices
// tagged editable, plus the optional on-demand draft validation.
type ReeditService interface {
	// EditData loads the full invoice and line items for the edit form
	EditData(ctx context.Context, invoiceID int64) (*EditData, error)

	// Resubmit replaces the invoice's editable fields and full item set, then
	// moves it back to pending
	Resubmit(ctx context.Context, actor entity.Actor, invoiceID int64, draft *entity.InvoiceDraft) error

	// ValidateDraft asks the adviser to score the draft. Never blocks
	// resubmission; a failure degrades to no recommendation.
	ValidateDraft(ctx context.Context, draft *entity.InvoiceDraft) (*entity.DraftValidation, error)
}

type reeditService struct {
	invoiceRepo port.InvoiceRepository
	itemRepo    port.ItemRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	adviser     port.AIAdviser
	cache       *ReviewCache
	logger      Logger
}

// NewReeditService creates a new ReeditService
func NewReeditService(
	invoiceRepo port.InvoiceRepository,
	itemRepo port.ItemRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	adviser port.AIAdviser,
	cache *ReviewCache,
	logger Logger,
) ReeditService {
	return &reeditService{
		invoiceRepo: invoiceRepo,
		itemRepo:    itemRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		adviser:     adviser,
		cache:       cache,
		logger:      logger,
	}
}

// EditData loads the full invoice and line items for the edit form
func (s *reeditService) EditData(ctx context.Context, invoiceID int64) (*EditData, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}

	lineItems, err := s.itemRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	invoice.Items = lineItems

	data := &EditData{
		Invoice:           invoice,
		Items:             lineItems,
		RejectionCategory: invoice.RejectionCategory,
	}
	if invoice.RejectionReason != "" {
		data.RejectionTitle, data.RejectionDescription = workflow.SplitReason(invoice.RejectionReason)
	}

	return data, nil
}

// Resubmit replaces the invoice's editable fields and moves it back to pending
func (s *reeditService) Resubmit(ctx context.Context, actor entity.Actor, invoiceID int64, draft *entity.InvoiceDraft) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return ErrInvoiceNotFound
	}

	if err := validateDraftInput(draft); err != nil {
		return err
	}

	// The transition itself enforces rejected + editable + actor capability.
	machine := workflow.NewApprovalMachine(invoice.ApprovalStatus, actor.Role, invoice.RejectionCategory)
	if err := machine.Fire(ctx, workflow.TriggerResubmit); err != nil {
		s.logger.Error("Resubmit blocked",
			"error", err, "invoice_id", invoiceID, "status", invoice.ApprovalStatus)
		return err
	}

	issueDate, err := time.Parse(dateLayout, draft.InvoiceDate)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadIssueDate, draft.InvoiceDate)
	}
	terms := entity.ParsePaymentTerms(draft.PaymentTerms)

	updated := *invoice
	updated.CompanyName = strings.TrimSpace(draft.CompanyName)
	updated.Email = strings.TrimSpace(draft.Email)
	updated.Phone = strings.TrimSpace(draft.Phone)
	updated.Address = strings.TrimSpace(draft.Address)
	updated.Notes = draft.Notes
	updated.PaymentTerms = terms
	updated.IssueDate = issueDate
	// Due date is always derived from the terms, never taken from the form.
	updated.DueDate = terms.DueDate(issueDate)
	// nil means the form did not touch the rate; an explicit 0 zero-rates.
	if draft.GSTRate != nil {
		updated.GSTRate = decimal.NewFromFloat(*draft.GSTRate)
	}

	lineItems := draftItems(draft, updated.GSTRate)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.UpdateEditable(txCtx, &updated); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		if err := s.itemRepo.ReplaceForInvoice(txCtx, invoiceID, lineItems); err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		if err := s.invoiceRepo.UpdateApprovalStatus(txCtx, invoiceID, workflow.StatePending, "", ""); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		history := &entity.ApprovalHistory{
			InvoiceID:      invoiceID,
			ActorID:        actor.ID,
			PreviousStatus: invoice.ApprovalStatus,
			NewStatus:      workflow.StatePending,
			Action:         workflow.TriggerResubmit,
			CreatedAt:      time.Now(),
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to resubmit invoice", "error", err, "invoice_id", invoiceID)
		return err
	}

	// The stored record changed; any cached AI verdict is stale now.
	s.cache.Invalidate(invoiceID)

	s.logger.Info("Invoice resubmitted",
		"invoice_id", invoiceID,
		"invoice_number", invoice.InvoiceNumber,
		"actor", actor.ID)
	return nil
}

// ValidateDraft asks the adviser to score the draft
func (s *reeditService) ValidateDraft(ctx context.Context, draft *entity.InvoiceDraft) (*entity.DraftValidation, error) {
	validation, err := s.adviser.ValidateDraft(ctx, draft)
	if err != nil {
		s.logger.Error("AI draft validation failed", "error", err)
		return nil, err
	}

	validation.Issues = DeduplicateIssues(validation.Issues)

	suggestions := validation.Suggestions[:0]
	for _, sg := range validation.Suggestions {
		if strings.TrimSpace(sg) != "" {
			suggestions = append(suggestions, sg)
		}
	}
	validation.Suggestions = suggestions

	return validation, nil
}

// DeduplicateIssues collapses issues with the same normalized message,
// keeping the highest-severity instance, ordered by severity then first
// appearance.
func DeduplicateIssues(issues []entity.ValidationIssue) []entity.ValidationIssue {
	type indexed struct {
		issue entity.ValidationIssue
		order int
	}

	byMessage := make(map[string]*indexed)
	var keys []string
	for i, issue := range issues {
		if strings.TrimSpace(issue.Message) == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(issue.Message))
		existing, ok := byMessage[key]
		if !ok {
			byMessage[key] = &indexed{issue: issue, order: i}
			keys = append(keys, key)
			continue
		}
		if issue.Severity.Rank() < existing.issue.Severity.Rank() {
			existing.issue = issue
		}
	}

	result := make([]entity.ValidationIssue, 0, len(keys))
	for _, key := range keys {
		result = append(result, byMessage[key].issue)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Severity.Rank() < result[j].Severity.Rank()
	})
	return result
}

func validateDraftInput(draft *entity.InvoiceDraft) error {
	if draft == nil || len(draft.Items) == 0 {
		return ErrNoLineItems
	}
	if email := strings.TrimSpace(draft.Email); email != "" && !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// draftItems converts draft rows through the line-item store so quantity
// clamping and price coercion match the interactive editing semantics.
func draftItems(draft *entity.InvoiceDraft, gstRate decimal.Decimal) []*entity.LineItem {
	store := items.NewStore(gstRate)
	candidates := make([]entity.ItemCandidate, 0, len(draft.Items))
	for _, it := range draft.Items {
		candidates = append(candidates, entity.ItemCandidate{
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
		})
	}
	store.BulkImport(candidates)
	return store.Items()
}
