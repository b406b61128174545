package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fourvoice/billing-backend/internal/application/service"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/money"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvalService service.ApprovalService
	reeditService   service.ReeditService
	invoiceService  service.InvoiceService
	deliveryService service.DeliveryService
	exportService   service.ExportService
	uploadDir       string
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	approvalService service.ApprovalService,
	reeditService service.ReeditService,
	invoiceService service.InvoiceService,
	deliveryService service.DeliveryService,
	exportService service.ExportService,
	uploadDir string,
	logger Logger,
) *Handlers {
	return &Handlers{
		approvalService: approvalService,
		reeditService:   reeditService,
		invoiceService:  invoiceService,
		deliveryService: deliveryService,
		exportService:   exportService,
		uploadDir:       uploadDir,
		logger:          logger,
	}
}

// invoiceView is an invoice in API responses: the stored record plus
// computed totals and the actions offered to the requesting actor.
type invoiceView struct {
	*entity.Invoice
	Totals  money.Totals       `json:"totals"`
	Actions []workflow.Trigger `json:"actions"`
}

func (h *Handlers) viewOf(invoice *entity.Invoice, actor entity.Actor) invoiceView {
	return invoiceView{
		Invoice: invoice,
		Totals:  money.Compute(invoice.Items, invoice.GSTRate).Rounded(),
		Actions: h.approvalService.Actions(invoice, actor),
	}
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrNotPending),
		errors.Is(err, service.ErrNoLineItems),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrBadIssueDate),
		errors.Is(err, service.ErrClientRequired),
		errors.Is(err, service.ErrClientAmbiguous),
		errors.Is(err, service.ErrClientNotFound),
		errors.Is(err, service.ErrClientNameRequired),
		errors.Is(err, workflow.ErrGuardFailed),
		errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

func invoiceID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid invoice id %q", c.Param("id"))
	}
	return id, nil
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListApprovals handles GET /api/approvals. Returns the full snapshot;
// clients re-fetch after every mutation instead of patching locally.
func (h *Handlers) ListApprovals(c *gin.Context) {
	invoices, err := h.approvalService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	actor := currentActor(c)
	views := make([]invoiceView, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, h.viewOf(inv, actor))
	}

	c.JSON(http.StatusOK, gin.H{"invoices": views})
}

// ApprovalAction handles POST /api/approvals/action
func (h *Handlers) ApprovalAction(c *gin.Context) {
	var req service.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	message, err := h.approvalService.ExecuteAction(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// ExportApprovals handles GET /api/approvals/export
func (h *Handlers) ExportApprovals(c *gin.Context) {
	data, err := h.exportService.ExportApprovals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("approvals-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// DetectRejection handles POST /api/ai/detect-rejection/:id
func (h *Handlers) DetectRejection(c *gin.Context) {
	id, err := invoiceID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.approvalService.RunPendingAICheck(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": status})
}

// ValidateInvoice handles POST /api/ai/validate-invoice
func (h *Handlers) ValidateInvoice(c *gin.Context) {
	var draft entity.InvoiceDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	validation, err := h.reeditService.ValidateDraft(c.Request.Context(), &draft)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "validation": validation})
}

// CreateInvoice handles POST /api/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var draft entity.InvoiceDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), &draft)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"invoice": h.viewOf(invoice, currentActor(c))})
}

// NextInvoiceNumber handles GET /api/invoices/next-number
func (h *Handlers) NextInvoiceNumber(c *gin.Context) {
	number, err := h.invoiceService.NextNumber(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice_number": number})
}

// EditData handles GET /api/invoices/:id/edit-data
func (h *Handlers) EditData(c *gin.Context) {
	id, err := invoiceID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.reeditService.EditData(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"invoice":               data.Invoice,
		"items":                 data.Items,
		"rejection_title":       data.RejectionTitle,
		"rejection_description": data.RejectionDescription,
		"rejection_category":    data.RejectionCategory,
	})
}

// Resubmit handles POST /api/invoices/:id/resubmit
func (h *Handlers) Resubmit(c *gin.Context) {
	id, err := invoiceID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var draft entity.InvoiceDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.reeditService.Resubmit(c.Request.Context(), currentActor(c), id, &draft); err != nil {
		c.JSON(errorStatus(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListClients handles GET /api/clients
func (h *Handlers) ListClients(c *gin.Context) {
	clients, err := h.invoiceService.Clients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

// CreateClient handles POST /api/clients
func (h *Handlers) CreateClient(c *gin.Context) {
	var client entity.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	saved, err := h.invoiceService.CreateClient(c.Request.Context(), &client)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"client": saved})
}

// ApprovalHistory handles GET /api/invoices/:id/history
func (h *Handlers) ApprovalHistory(c *gin.Context) {
	id, err := invoiceID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history, err := h.approvalService.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// ReadPurchaseOrder handles POST /api/po-reader. Accepts a multipart PO or
// quote upload and returns extracted line-item candidates.
func (h *Handlers) ReadPurchaseOrder(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "file is required"})
		return
	}

	dst := filepath.Join(h.uploadDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		h.logger.Error("Failed to store upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to store upload"})
		return
	}

	candidates, err := h.invoiceService.ImportItems(c.Request.Context(), dst)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "line_items": candidates})
}

// ListDeliveries handles GET /invoice-delivery and /invoice-delivery/filter
func (h *Handlers) ListDeliveries(c *gin.Context) {
	status := workflow.State(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown delivery status %q", status)})
		return
	}

	invoices, counts, err := h.deliveryService.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	webhookState := h.deliveryService.WebhookState(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"invoices":        invoices,
		"counts":          counts,
		"webhook_state":   webhookState,
		"manual_tracking": webhookState.ManualTrackingRequired(),
	})
}

// ResendInvoice handles POST /invoice-delivery/:id/resend
func (h *Handlers) ResendInvoice(c *gin.Context) {
	id, err := invoiceID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deliveryService.Resend(c.Request.Context(), currentActor(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Invoice resent. Delivery status will update when the provider reports back."})
}

// MarkDelivered handles POST /invoice-delivery/:id/mark-delivered
func (h *Handlers) MarkDelivered(c *gin.Context) {
	h.mark(c, workflow.TriggerMarkDelivered)
}

// MarkFailed handles POST /invoice-delivery/:id/mark-failed
func (h *Handlers) MarkFailed(c *gin.Context) {
	h.mark(c, workflow.TriggerMarkFailed)
}

// MarkPending handles POST /invoice-delivery/:id/mark-pending
func (h *Handlers) MarkPending(c *gin.Context) {
	h.mark(c, workflow.TriggerMarkPending)
}

func (h *Handlers) mark(c *gin.Context, trigger workflow.Trigger) {
	id, err := invoiceID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deliveryService.Mark(c.Request.Context(), currentActor(c), id, trigger); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// deliveryEvent is the inbound webhook payload from the email provider
type deliveryEvent struct {
	InvoiceID int64  `json:"invoice_id" binding:"required"`
	Event     string `json:"event" binding:"required"`
	Timestamp string `json:"timestamp"`
}

// DeliveryWebhook handles POST /webhooks/delivery. Open events freeze the
// invoice's delivery status; delivery/failure events update it directly.
func (h *Handlers) DeliveryWebhook(c *gin.Context) {
	var event deliveryEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}

	occurredAt := time.Now()
	if event.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, event.Timestamp); err == nil {
			occurredAt = parsed
		}
	}

	ctx := c.Request.Context()

	var err error
	switch event.Event {
	case "opened":
		err = h.deliveryService.RecordOpen(ctx, event.InvoiceID, occurredAt)
	case "delivered":
		err = h.deliveryService.RecordProviderStatus(ctx, event.InvoiceID, workflow.StateDelivered)
	case "failed":
		err = h.deliveryService.RecordProviderStatus(ctx, event.InvoiceID, workflow.StateFailed)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown event %q", event.Event)})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
