package service

import (
	"context"
	"time"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

type mockInvoiceRepo struct {
	createFunc               func(ctx context.Context, invoice *entity.Invoice) error
	getByIDFunc              func(ctx context.Context, id int64) (*entity.Invoice, error)
	listFunc                 func(ctx context.Context) ([]*entity.Invoice, error)
	listByDeliveryStatusFunc func(ctx context.Context, status workflow.State) ([]*entity.Invoice, error)
	updateApprovalFunc       func(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error
	updateEditableFunc       func(ctx context.Context, invoice *entity.Invoice) error
	updateDeliveryFunc       func(ctx context.Context, id int64, status workflow.State) error
	setOpenedAtFunc          func(ctx context.Context, id int64, t time.Time) error
	setLastResentAtFunc      func(ctx context.Context, id int64, t time.Time) error
	nextInvoiceNumberFunc    func(ctx context.Context) (string, error)
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, invoice)
	}
	invoice.ID = 1
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockInvoiceRepo) List(ctx context.Context) ([]*entity.Invoice, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockInvoiceRepo) ListByDeliveryStatus(ctx context.Context, status workflow.State) ([]*entity.Invoice, error) {
	if m.listByDeliveryStatusFunc != nil {
		return m.listByDeliveryStatusFunc(ctx, status)
	}
	return nil, nil
}

func (m *mockInvoiceRepo) UpdateApprovalStatus(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
	if m.updateApprovalFunc != nil {
		return m.updateApprovalFunc(ctx, id, status, reason, category)
	}
	return nil
}

func (m *mockInvoiceRepo) UpdateEditable(ctx context.Context, invoice *entity.Invoice) error {
	if m.updateEditableFunc != nil {
		return m.updateEditableFunc(ctx, invoice)
	}
	return nil
}

func (m *mockInvoiceRepo) UpdateDeliveryStatus(ctx context.Context, id int64, status workflow.State) error {
	if m.updateDeliveryFunc != nil {
		return m.updateDeliveryFunc(ctx, id, status)
	}
	return nil
}

func (m *mockInvoiceRepo) SetOpenedAt(ctx context.Context, id int64, t time.Time) error {
	if m.setOpenedAtFunc != nil {
		return m.setOpenedAtFunc(ctx, id, t)
	}
	return nil
}

func (m *mockInvoiceRepo) SetLastResentAt(ctx context.Context, id int64, t time.Time) error {
	if m.setLastResentAtFunc != nil {
		return m.setLastResentAtFunc(ctx, id, t)
	}
	return nil
}

func (m *mockInvoiceRepo) NextInvoiceNumber(ctx context.Context) (string, error) {
	if m.nextInvoiceNumberFunc != nil {
		return m.nextInvoiceNumberFunc(ctx)
	}
	return "INV-001", nil
}

type mockItemRepo struct {
	getByInvoiceIDFunc    func(ctx context.Context, invoiceID int64) ([]*entity.LineItem, error)
	replaceForInvoiceFunc func(ctx context.Context, invoiceID int64, items []*entity.LineItem) error
}

func (m *mockItemRepo) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.LineItem, error) {
	if m.getByInvoiceIDFunc != nil {
		return m.getByInvoiceIDFunc(ctx, invoiceID)
	}
	return nil, nil
}

func (m *mockItemRepo) ReplaceForInvoice(ctx context.Context, invoiceID int64, items []*entity.LineItem) error {
	if m.replaceForInvoiceFunc != nil {
		return m.replaceForInvoiceFunc(ctx, invoiceID, items)
	}
	return nil
}

type mockClientRepo struct {
	createFunc  func(ctx context.Context, client *entity.Client) error
	getByIDFunc func(ctx context.Context, id int64) (*entity.Client, error)
	listFunc    func(ctx context.Context) ([]*entity.Client, error)
}

func (m *mockClientRepo) Create(ctx context.Context, client *entity.Client) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, client)
	}
	client.ID = 1
	return nil
}

func (m *mockClientRepo) GetByID(ctx context.Context, id int64) (*entity.Client, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockClientRepo) List(ctx context.Context) ([]*entity.Client, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

type mockHistoryRepo struct {
	createFunc         func(ctx context.Context, history *entity.ApprovalHistory) error
	getByInvoiceIDFunc func(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error)
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, history)
	}
	return nil
}

func (m *mockHistoryRepo) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error) {
	if m.getByInvoiceIDFunc != nil {
		return m.getByInvoiceIDFunc(ctx, invoiceID)
	}
	return nil, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type mockAdviser struct {
	detectRejectionFunc func(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error)
	validateDraftFunc   func(ctx context.Context, draft *entity.InvoiceDraft) (*entity.DraftValidation, error)
}

func (m *mockAdviser) DetectRejection(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
	if m.detectRejectionFunc != nil {
		return m.detectRejectionFunc(ctx, invoice)
	}
	return &entity.RejectionAnalysis{}, nil
}

func (m *mockAdviser) ValidateDraft(ctx context.Context, draft *entity.InvoiceDraft) (*entity.DraftValidation, error) {
	if m.validateDraftFunc != nil {
		return m.validateDraftFunc(ctx, draft)
	}
	return &entity.DraftValidation{Valid: true, Score: 100, AIEnabled: true}, nil
}

type mockExtractor struct {
	extractFunc func(ctx context.Context, filePath string) ([]entity.ItemCandidate, error)
}

func (m *mockExtractor) ExtractLineItems(ctx context.Context, filePath string) ([]entity.ItemCandidate, error) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, filePath)
	}
	return nil, nil
}

type mockMonitor struct {
	state workflow.WebhookState
}

func (m *mockMonitor) State(ctx context.Context) workflow.WebhookState {
	if m.state == "" {
		return workflow.WebhookActive
	}
	return m.state
}

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}
