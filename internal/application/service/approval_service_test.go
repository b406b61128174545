package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

func pendingInvoice(id int64) *entity.Invoice {
	return &entity.Invoice{
		ID:             id,
		InvoiceNumber:  "INV-001",
		CompanyName:    "Acme Pte Ltd",
		Email:          "billing@acme.example",
		GSTRate:        decimal.NewFromFloat(0.09),
		ApprovalStatus: workflow.StatePending,
		DeliveryStatus: workflow.StatePending,
	}
}

func newApprovalService(invoiceRepo *mockInvoiceRepo, itemRepo *mockItemRepo, historyRepo *mockHistoryRepo, adviser *mockAdviser, cache *ReviewCache) ApprovalService {
	if itemRepo == nil {
		itemRepo = &mockItemRepo{}
	}
	if historyRepo == nil {
		historyRepo = &mockHistoryRepo{}
	}
	if adviser == nil {
		adviser = &mockAdviser{}
	}
	if cache == nil {
		cache = NewReviewCache()
	}
	return NewApprovalService(invoiceRepo, itemRepo, historyRepo, &mockTxManager{}, adviser, cache, noopLogger{})
}

func TestApprovalService_ExecuteAction_Approve(t *testing.T) {
	var gotStatus workflow.State
	var gotReason string
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return pendingInvoice(id), nil
		},
		updateApprovalFunc: func(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
			gotStatus = status
			gotReason = reason
			return nil
		},
	}
	var history *entity.ApprovalHistory
	historyRepo := &mockHistoryRepo{
		createFunc: func(ctx context.Context, h *entity.ApprovalHistory) error {
			history = h
			return nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, historyRepo, nil, nil)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	msg, err := svc.ExecuteAction(context.Background(), admin, ActionRequest{InvoiceID: 1, Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, "Invoice approved successfully", msg)
	assert.Equal(t, workflow.StateApproved, gotStatus)
	assert.Empty(t, gotReason)
	require.NotNil(t, history)
	assert.Equal(t, workflow.StatePending, history.PreviousStatus)
	assert.Equal(t, workflow.StateApproved, history.NewStatus)
}

func TestApprovalService_ExecuteAction_EmployeeBlockedBeforeLoad(t *testing.T) {
	loaded := false
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			loaded = true
			return pendingInvoice(id), nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, nil, nil)

	employee := entity.Actor{ID: "u2", Role: workflow.RoleEmployee}
	_, err := svc.ExecuteAction(context.Background(), employee, ActionRequest{InvoiceID: 1, Action: "approve"})
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)
	assert.False(t, loaded, "denied action must not touch the repository")
}

func TestApprovalService_ExecuteAction_UnknownAction(t *testing.T) {
	svc := newApprovalService(&mockInvoiceRepo{}, nil, nil, nil, nil)
	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}

	_, err := svc.ExecuteAction(context.Background(), admin, ActionRequest{InvoiceID: 1, Action: "escalate"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestApprovalService_ExecuteAction_RejectWithManualReason(t *testing.T) {
	var gotReason string
	var gotCategory workflow.RejectionCategory
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return pendingInvoice(id), nil
		},
		updateApprovalFunc: func(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
			gotReason = reason
			gotCategory = category
			return nil
		},
	}
	adviserCalled := false
	adviser := &mockAdviser{
		detectRejectionFunc: func(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
			adviserCalled = true
			return nil, errors.New("should not be called")
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, adviser, nil)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	req := ActionRequest{InvoiceID: 1, Action: "reject", Reason: "Wrong amount: unit price mismatch", Category: workflow.CategoryEditable}
	_, err := svc.ExecuteAction(context.Background(), admin, req)
	require.NoError(t, err)
	assert.False(t, adviserCalled, "manual reason must skip the adviser")
	assert.Equal(t, "Wrong amount: unit price mismatch | editable", gotReason)
	assert.Equal(t, workflow.CategoryEditable, gotCategory)
}

func TestApprovalService_ExecuteAction_RejectAutoReasonShouldReject(t *testing.T) {
	var gotReason string
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return pendingInvoice(id), nil
		},
		updateApprovalFunc: func(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
			gotReason = reason
			return nil
		},
	}
	adviser := &mockAdviser{
		detectRejectionFunc: func(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
			return &entity.RejectionAnalysis{
				ShouldReject:         true,
				RejectionTitle:       "Incorrect GST",
				RejectionDescription: "GST line does not match the 9% rate.",
			}, nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, adviser, nil)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	_, err := svc.ExecuteAction(context.Background(), admin, ActionRequest{InvoiceID: 1, Action: "reject", Category: workflow.CategoryEditable})
	require.NoError(t, err)
	assert.Equal(t, "Incorrect GST: GST line does not match the 9% rate. | editable", gotReason)
}

func TestApprovalService_ExecuteAction_RejectAutoReasonNoIssues(t *testing.T) {
	var gotReason string
	var gotCategory workflow.RejectionCategory
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return pendingInvoice(id), nil
		},
		updateApprovalFunc: func(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
			gotReason = reason
			gotCategory = category
			return nil
		},
	}
	adviser := &mockAdviser{
		detectRejectionFunc: func(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
			return &entity.RejectionAnalysis{ShouldReject: false}, nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, adviser, nil)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	// Category editable requested, but a no-issue verdict forces non-editable.
	_, err := svc.ExecuteAction(context.Background(), admin, ActionRequest{InvoiceID: 1, Action: "reject", Category: workflow.CategoryEditable})
	require.NoError(t, err)
	assert.Equal(t, workflow.NoDataIssuesReason+" | non-editable", gotReason)
	assert.Equal(t, workflow.CategoryNonEditable, gotCategory)
}

func TestApprovalService_ExecuteAction_RejectAdviserDown(t *testing.T) {
	wrote := false
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return pendingInvoice(id), nil
		},
		updateApprovalFunc: func(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
			wrote = true
			return nil
		},
	}
	adviser := &mockAdviser{
		detectRejectionFunc: func(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
			return nil, errors.New("openai: connection refused")
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, adviser, nil)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	_, err := svc.ExecuteAction(context.Background(), admin, ActionRequest{InvoiceID: 1, Action: "reject"})
	assert.ErrorIs(t, err, ErrReasonRequired)
	assert.False(t, wrote)
}

func TestApprovalService_ExecuteAction_RejectNotPendingSkipsAdviser(t *testing.T) {
	wrote := false
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			inv := pendingInvoice(id)
			inv.ApprovalStatus = workflow.StateApproved
			return inv, nil
		},
		updateApprovalFunc: func(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
			wrote = true
			return nil
		},
	}
	adviserCalls := 0
	adviser := &mockAdviser{
		detectRejectionFunc: func(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
			adviserCalls++
			return &entity.RejectionAnalysis{ShouldReject: true, RejectionTitle: "Bad totals"}, nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, adviser, nil)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	_, err := svc.ExecuteAction(context.Background(), admin, ActionRequest{InvoiceID: 1, Action: "reject"})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, 0, adviserCalls, "impossible transition must not spend an adviser call")
	assert.False(t, wrote)
}

func TestApprovalService_History(t *testing.T) {
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			if id != 1 {
				return nil, nil
			}
			return pendingInvoice(id), nil
		},
	}
	historyRepo := &mockHistoryRepo{
		getByInvoiceIDFunc: func(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error) {
			return []*entity.ApprovalHistory{
				{ID: 2, InvoiceID: invoiceID, PreviousStatus: workflow.StatePending, NewStatus: workflow.StateApproved, Action: "approve"},
				{ID: 1, InvoiceID: invoiceID, NewStatus: workflow.StatePending, Action: "create"},
			}, nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, historyRepo, nil, nil)

	rows, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, workflow.TriggerApprove, rows[0].Action)

	_, err = svc.History(context.Background(), 42)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestApprovalService_ExecuteAction_ResendMovesToPending(t *testing.T) {
	var gotStatus workflow.State
	var gotReason string
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			inv := pendingInvoice(id)
			inv.ApprovalStatus = workflow.StateOnHold
			inv.RejectionReason = "Client dispute | non-editable"
			inv.RejectionCategory = workflow.CategoryNonEditable
			return inv, nil
		},
		updateApprovalFunc: func(ctx context.Context, id int64, status workflow.State, reason string, category workflow.RejectionCategory) error {
			gotStatus = status
			gotReason = reason
			return nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, nil, nil)

	for _, role := range []workflow.Role{workflow.RoleAdmin, workflow.RoleEmployee} {
		_, err := svc.ExecuteAction(context.Background(), entity.Actor{ID: "u", Role: role}, ActionRequest{InvoiceID: 1, Action: "resend"})
		require.NoError(t, err, "role %s", role)
		assert.Equal(t, workflow.StatePending, gotStatus)
		assert.Empty(t, gotReason, "resend clears the stored reason")
	}
}

func TestApprovalService_ExecuteAction_AcknowledgeOnlyForNonEditable(t *testing.T) {
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			inv := pendingInvoice(id)
			inv.ApprovalStatus = workflow.StateRejected
			inv.RejectionCategory = workflow.CategoryEditable
			return inv, nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, nil, nil)

	employee := entity.Actor{ID: "u2", Role: workflow.RoleEmployee}
	_, err := svc.ExecuteAction(context.Background(), employee, ActionRequest{InvoiceID: 1, Action: "acknowledge"})
	assert.ErrorIs(t, err, workflow.ErrGuardFailed)
}

func TestApprovalService_RunPendingAICheck_CacheShortCircuit(t *testing.T) {
	calls := 0
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return pendingInvoice(id), nil
		},
	}
	adviser := &mockAdviser{
		detectRejectionFunc: func(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
			calls++
			return &entity.RejectionAnalysis{ShouldReject: true, RejectionTitle: "Bad totals"}, nil
		},
	}
	cache := NewReviewCache()
	svc := newApprovalService(invoiceRepo, nil, nil, adviser, cache)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	first, err := svc.RunPendingAICheck(context.Background(), admin, 1)
	require.NoError(t, err)
	assert.True(t, first.Checked)
	assert.True(t, first.HasIssues)
	assert.Equal(t, "reject", first.RecommendedAction())

	second, err := svc.RunPendingAICheck(context.Background(), admin, 1)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls, "cached invoice must not hit the adviser again")
}

func TestApprovalService_RunPendingAICheck_EmployeeDenied(t *testing.T) {
	svc := newApprovalService(&mockInvoiceRepo{}, nil, nil, nil, nil)

	employee := entity.Actor{ID: "u2", Role: workflow.RoleEmployee}
	_, err := svc.RunPendingAICheck(context.Background(), employee, 1)
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)
}

func TestApprovalService_RunPendingAICheck_NotPending(t *testing.T) {
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			inv := pendingInvoice(id)
			inv.ApprovalStatus = workflow.StateApproved
			return inv, nil
		},
	}
	svc := newApprovalService(invoiceRepo, nil, nil, nil, nil)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	_, err := svc.RunPendingAICheck(context.Background(), admin, 1)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestApprovalService_RunPendingAICheck_FailureLeavesUnchecked(t *testing.T) {
	invoiceRepo := &mockInvoiceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return pendingInvoice(id), nil
		},
	}
	adviser := &mockAdviser{
		detectRejectionFunc: func(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
			return nil, errors.New("timeout")
		},
	}
	cache := NewReviewCache()
	svc := newApprovalService(invoiceRepo, nil, nil, adviser, cache)

	admin := entity.Actor{ID: "u1", Role: workflow.RoleAdmin}
	_, err := svc.RunPendingAICheck(context.Background(), admin, 1)
	require.Error(t, err)
	assert.Nil(t, cache.Get(1), "failed check must stay retryable")
}

func TestApprovalService_Actions(t *testing.T) {
	svc := newApprovalService(&mockInvoiceRepo{}, nil, nil, nil, nil)

	rejected := pendingInvoice(1)
	rejected.ApprovalStatus = workflow.StateRejected
	rejected.RejectionCategory = workflow.CategoryEditable

	actions := svc.Actions(rejected, entity.Actor{ID: "u2", Role: workflow.RoleEmployee})
	assert.Equal(t, []workflow.Trigger{workflow.TriggerResubmit}, actions)

	rejected.RejectionCategory = workflow.CategoryNonEditable
	actions = svc.Actions(rejected, entity.Actor{ID: "u2", Role: workflow.RoleEmployee})
	assert.Equal(t, []workflow.Trigger{workflow.TriggerAcknowledge}, actions)
}
