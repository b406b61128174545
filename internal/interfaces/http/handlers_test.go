package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourvoice/billing-backend/internal/application/service"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

type mockApprovalService struct {
	listFunc          func(ctx context.Context) ([]*entity.Invoice, error)
	executeActionFunc func(ctx context.Context, actor entity.Actor, req service.ActionRequest) (string, error)
	aiCheckFunc       func(ctx context.Context, actor entity.Actor, invoiceID int64) (*entity.AIReviewStatus, error)
	historyFunc       func(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error)
}

func (m *mockApprovalService) List(ctx context.Context) ([]*entity.Invoice, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockApprovalService) ExecuteAction(ctx context.Context, actor entity.Actor, req service.ActionRequest) (string, error) {
	if m.executeActionFunc != nil {
		return m.executeActionFunc(ctx, actor, req)
	}
	return "ok", nil
}

func (m *mockApprovalService) RunPendingAICheck(ctx context.Context, actor entity.Actor, invoiceID int64) (*entity.AIReviewStatus, error) {
	if m.aiCheckFunc != nil {
		return m.aiCheckFunc(ctx, actor, invoiceID)
	}
	return &entity.AIReviewStatus{Checked: true}, nil
}

func (m *mockApprovalService) History(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, invoiceID)
	}
	return nil, nil
}

func (m *mockApprovalService) Actions(invoice *entity.Invoice, actor entity.Actor) []workflow.Trigger {
	return workflow.ApprovalActions(invoice.ApprovalStatus, actor.Role, invoice.RejectionCategory)
}

type mockDeliveryService struct {
	listFunc func(ctx context.Context, status workflow.State) ([]*entity.Invoice, service.DeliveryCounts, error)
	markFunc func(ctx context.Context, actor entity.Actor, invoiceID int64, trigger workflow.Trigger) error
	openFunc func(ctx context.Context, invoiceID int64, openedAt time.Time) error
}

func (m *mockDeliveryService) List(ctx context.Context, status workflow.State) ([]*entity.Invoice, service.DeliveryCounts, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, status)
	}
	return nil, service.DeliveryCounts{}, nil
}

func (m *mockDeliveryService) Resend(ctx context.Context, actor entity.Actor, invoiceID int64) error {
	return nil
}

func (m *mockDeliveryService) Mark(ctx context.Context, actor entity.Actor, invoiceID int64, trigger workflow.Trigger) error {
	if m.markFunc != nil {
		return m.markFunc(ctx, actor, invoiceID, trigger)
	}
	return nil
}

func (m *mockDeliveryService) RecordOpen(ctx context.Context, invoiceID int64, openedAt time.Time) error {
	if m.openFunc != nil {
		return m.openFunc(ctx, invoiceID, openedAt)
	}
	return nil
}

func (m *mockDeliveryService) RecordProviderStatus(ctx context.Context, invoiceID int64, status workflow.State) error {
	return nil
}

func (m *mockDeliveryService) WebhookState(ctx context.Context) workflow.WebhookState {
	return workflow.WebhookActive
}

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

func newTestServer(approval *mockApprovalService, delivery *mockDeliveryService) *Server {
	if approval == nil {
		approval = &mockApprovalService{}
	}
	if delivery == nil {
		delivery = &mockDeliveryService{}
	}
	return NewServer(DefaultServerConfig(), approval, nil, nil, delivery, nil, noopLogger{})
}

func TestApprovalAction_ForwardsActorFromHeaders(t *testing.T) {
	var gotActor entity.Actor
	var gotReq service.ActionRequest
	approval := &mockApprovalService{
		executeActionFunc: func(ctx context.Context, actor entity.Actor, req service.ActionRequest) (string, error) {
			gotActor = actor
			gotReq = req
			return "Invoice approved successfully", nil
		},
	}
	server := newTestServer(approval, nil)

	body, _ := json.Marshal(service.ActionRequest{InvoiceID: 7, Action: "approve"})
	req := httptest.NewRequest(http.MethodPost, "/api/approvals/action", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Role", "admin")

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.Actor{ID: "u1", Role: workflow.RoleAdmin}, gotActor)
	assert.Equal(t, int64(7), gotReq.InvoiceID)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invoice approved successfully", resp["message"])
}

func TestActorMiddleware_UnknownRoleDefaultsToEmployee(t *testing.T) {
	var gotActor entity.Actor
	approval := &mockApprovalService{
		executeActionFunc: func(ctx context.Context, actor entity.Actor, req service.ActionRequest) (string, error) {
			gotActor = actor
			return "ok", nil
		},
	}
	server := newTestServer(approval, nil)

	body, _ := json.Marshal(service.ActionRequest{InvoiceID: 1, Action: "resend"})
	req := httptest.NewRequest(http.MethodPost, "/api/approvals/action", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Role", "superuser")

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, workflow.RoleEmployee, gotActor.Role)
}

func TestApprovalAction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not found", err: service.ErrInvoiceNotFound, wantStatus: http.StatusNotFound},
		{name: "permission denied", err: workflow.ErrPermissionDenied, wantStatus: http.StatusForbidden},
		{name: "reason required", err: service.ErrReasonRequired, wantStatus: http.StatusBadRequest},
		{name: "invalid transition", err: workflow.ErrInvalidTransition, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approval := &mockApprovalService{
				executeActionFunc: func(ctx context.Context, actor entity.Actor, req service.ActionRequest) (string, error) {
					return "", tt.err
				},
			}
			server := newTestServer(approval, nil)

			body, _ := json.Marshal(service.ActionRequest{InvoiceID: 1, Action: "approve"})
			req := httptest.NewRequest(http.MethodPost, "/api/approvals/action", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			server.Router().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestListApprovals_IncludesTotalsAndActions(t *testing.T) {
	approval := &mockApprovalService{
		listFunc: func(ctx context.Context) ([]*entity.Invoice, error) {
			inv := &entity.Invoice{
				ID:             1,
				InvoiceNumber:  "INV-2026-001",
				ApprovalStatus: workflow.StatePending,
				DeliveryStatus: workflow.StatePending,
			}
			return []*entity.Invoice{inv}, nil
		},
	}
	server := newTestServer(approval, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/approvals", nil)
	req.Header.Set("X-User-Role", "admin")

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Invoices []struct {
			InvoiceNumber string             `json:"invoice_number"`
			Totals        map[string]string  `json:"totals"`
			Actions       []workflow.Trigger `json:"actions"`
		} `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Invoices, 1)
	assert.Contains(t, resp.Invoices[0].Totals, "subtotal")
	assert.Equal(t, []workflow.Trigger{
		workflow.TriggerApprove, workflow.TriggerReject, workflow.TriggerHold,
	}, resp.Invoices[0].Actions)
}

func TestApprovalHistory(t *testing.T) {
	approval := &mockApprovalService{
		historyFunc: func(ctx context.Context, invoiceID int64) ([]*entity.ApprovalHistory, error) {
			return []*entity.ApprovalHistory{
				{ID: 2, InvoiceID: invoiceID, PreviousStatus: workflow.StatePending, NewStatus: workflow.StateApproved, Action: "approve"},
				{ID: 1, InvoiceID: invoiceID, NewStatus: workflow.StatePending, Action: "create"},
			}, nil
		},
	}
	server := newTestServer(approval, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/4/history", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		History []struct {
			Action workflow.Trigger `json:"action"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.History, 2)
	assert.Equal(t, workflow.Trigger("approve"), resp.History[0].Action)
}

func TestDeliveryWebhook(t *testing.T) {
	var openedID int64
	var openedAt time.Time
	delivery := &mockDeliveryService{
		openFunc: func(ctx context.Context, invoiceID int64, at time.Time) error {
			openedID = invoiceID
			openedAt = at
			return nil
		},
	}
	server := newTestServer(nil, delivery)

	payload := `{"invoice_id": 4, "event": "opened", "timestamp": "2026-03-02T10:30:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), openedID)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), openedAt)
}

func TestDeliveryWebhook_UnknownEvent(t *testing.T) {
	server := newTestServer(nil, nil)

	payload := `{"invoice_id": 4, "event": "bounced"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
