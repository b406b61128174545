package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

var (
	// ErrClientRequired is returned when neither a saved client nor a one-off
	// name is supplied
	ErrClientRequired = errors.New("select a client or enter a one-off client name")

	// ErrClientAmbiguous is returned when both client forms are supplied at once
	ErrClientAmbiguous = errors.New("saved client and one-off client are mutually exclusive")

	// ErrClientNotFound is returned when the draft references a saved client
	// that no longer exists
	ErrClientNotFound = errors.New("selected client does not exist")

	// ErrClientNameRequired is returned when a new client carries no name
	ErrClientNameRequired = errors.New("client name is required")
)

// InvoiceService covers invoice creation and its supporting lookups
type InvoiceService interface {
	// Create persists a new invoice from a draft. Approval and delivery both
	// start as pending.
	Create(ctx context.Context, draft *entity.InvoiceDraft) (*entity.Invoice, error)

	// NextNumber returns the next invoice display number
	NextNumber(ctx context.Context) (string, error)

	// Clients returns the saved client list for the picker
	Clients(ctx context.Context) ([]*entity.Client, error)

	// CreateClient saves a new client for later reuse
	CreateClient(ctx context.Context, client *entity.Client) (*entity.Client, error)

	// ImportItems extracts candidate line items from an uploaded PO or quote
	// document for the bulk-import flow
	ImportItems(ctx context.Context, filePath string) ([]entity.ItemCandidate, error)
}

type invoiceService struct {
	invoiceRepo port.InvoiceRepository
	itemRepo    port.ItemRepository
	clientRepo  port.ClientRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	extractor   port.DocumentExtractor
	logger      Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo port.InvoiceRepository,
	itemRepo port.ItemRepository,
	clientRepo port.ClientRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	extractor port.DocumentExtractor,
	logger Logger,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		itemRepo:    itemRepo,
		clientRepo:  clientRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		extractor:   extractor,
		logger:      logger,
	}
}

// Create persists a new invoice from a draft
func (s *invoiceService) Create(ctx context.Context, draft *entity.InvoiceDraft) (*entity.Invoice, error) {
	if err := validateDraftInput(draft); err != nil {
		return nil, err
	}

	oneOff := strings.TrimSpace(draft.OneOffClient)
	switch {
	case draft.ClientID == nil && oneOff == "":
		return nil, ErrClientRequired
	case draft.ClientID != nil && oneOff != "":
		return nil, ErrClientAmbiguous
	}

	var client *entity.Client
	if draft.ClientID != nil {
		saved, err := s.clientRepo.GetByID(ctx, *draft.ClientID)
		if err != nil {
			return nil, err
		}
		if saved == nil {
			return nil, fmt.Errorf("%w: id %d", ErrClientNotFound, *draft.ClientID)
		}
		client = saved
	}

	issueDate := time.Now().Truncate(24 * time.Hour)
	if draft.InvoiceDate != "" {
		parsed, err := time.Parse(dateLayout, draft.InvoiceDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadIssueDate, draft.InvoiceDate)
		}
		issueDate = parsed
	}

	number := strings.TrimSpace(draft.InvoiceNumber)
	if number == "" {
		next, err := s.invoiceRepo.NextInvoiceNumber(ctx)
		if err != nil {
			return nil, err
		}
		number = next
	}

	currency := draft.Currency
	if currency == "" {
		currency = "SGD"
	}
	terms := entity.ParsePaymentTerms(draft.PaymentTerms)

	gstRate := decimal.Zero
	if draft.GSTRate != nil {
		gstRate = decimal.NewFromFloat(*draft.GSTRate)
	}

	invoice := &entity.Invoice{
		InvoiceNumber:  number,
		ClientID:       draft.ClientID,
		OneOffClient:   oneOff,
		CompanyName:    strings.TrimSpace(draft.CompanyName),
		Email:          strings.TrimSpace(draft.Email),
		Phone:          strings.TrimSpace(draft.Phone),
		Address:        strings.TrimSpace(draft.Address),
		Currency:       currency,
		GSTRate:        gstRate,
		PaymentTerms:   terms,
		IssueDate:      issueDate,
		DueDate:        terms.DueDate(issueDate),
		Notes:          draft.Notes,
		ApprovalStatus: workflow.StatePending,
		DeliveryStatus: workflow.StatePending,
	}

	// Saved-client contact details back any field the form left blank.
	if client != nil {
		if invoice.CompanyName == "" {
			invoice.CompanyName = client.Name
		}
		if invoice.Email == "" {
			invoice.Email = client.Email
		}
		if invoice.Phone == "" {
			invoice.Phone = client.Phone
		}
		if invoice.Address == "" {
			invoice.Address = client.Address
		}
	}

	lineItems := draftItems(draft, invoice.GSTRate)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		if err := s.itemRepo.ReplaceForInvoice(txCtx, invoice.ID, lineItems); err != nil {
			return fmt.Errorf("create items: %w", err)
		}

		history := &entity.ApprovalHistory{
			InvoiceID: invoice.ID,
			NewStatus: workflow.StatePending,
			Action:    "create",
			CreatedAt: time.Now(),
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create invoice", "error", err, "invoice_number", number)
		return nil, err
	}

	invoice.Items = lineItems
	s.logger.Info("Invoice created", "invoice_id", invoice.ID, "invoice_number", number)
	return invoice, nil
}

// NextNumber returns the next invoice display number
func (s *invoiceService) NextNumber(ctx context.Context) (string, error) {
	return s.invoiceRepo.NextInvoiceNumber(ctx)
}

// Clients returns the saved client list
func (s *invoiceService) Clients(ctx context.Context) ([]*entity.Client, error) {
	return s.clientRepo.List(ctx)
}

// CreateClient saves a new client for later reuse
func (s *invoiceService) CreateClient(ctx context.Context, client *entity.Client) (*entity.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	if client.Name == "" {
		return nil, ErrClientNameRequired
	}
	if email := strings.TrimSpace(client.Email); email != "" && !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	if err := s.clientRepo.Create(ctx, client); err != nil {
		s.logger.Error("Failed to create client", "error", err, "name", client.Name)
		return nil, err
	}

	s.logger.Info("Client created", "client_id", client.ID, "name", client.Name)
	return client, nil
}

// ImportItems extracts candidate line items from an uploaded document
func (s *invoiceService) ImportItems(ctx context.Context, filePath string) ([]entity.ItemCandidate, error) {
	candidates, err := s.extractor.ExtractLineItems(ctx, filePath)
	if err != nil {
		s.logger.Error("Document extraction failed", "error", err, "path", filePath)
		return nil, err
	}

	s.logger.Info("Document items extracted", "path", filePath, "count", len(candidates))
	return candidates, nil
}
