package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// ErrResendUnavailable is returned for a resend against an opened invoice
var ErrResendUnavailable = fmt.Errorf("%w: opened invoices cannot be resent", workflow.ErrGuardFailed)

// DeliveryCounts summarizes invoices per delivery status for the tracker header
type DeliveryCounts struct {
	Pending   int `json:"pending"`
	Delivered int `json:"delivered"`
	Opened    int `json:"opened"`
	Failed    int `json:"failed"`
}

// DeliveryService tracks invoice transmission to the client: resends, manual
// overrides while the webhook is down, and open events from link tracking.
type DeliveryService interface {
	// List returns invoices filtered by delivery status ("" for all) plus
	// counts over the full set
	List(ctx context.Context, status workflow.State) ([]*entity.Invoice, DeliveryCounts, error)

	// Resend re-sends the invoice email. Delivery status is not changed; the
	// attempt's outcome is reported asynchronously by the webhook.
	Resend(ctx context.Context, actor entity.Actor, invoiceID int64) error

	// Mark applies a manual status override (mark-delivered, mark-failed,
	// mark-pending). Only available to admins while the webhook cannot
	// confirm deliveries, and never once the invoice is opened.
	Mark(ctx context.Context, actor entity.Actor, invoiceID int64, trigger workflow.Trigger) error

	// RecordOpen applies an open event from the link-tracking webhook
	RecordOpen(ctx context.Context, invoiceID int64, openedAt time.Time) error

	// RecordProviderStatus applies a delivered/failed report from the email
	// provider's webhook. Unlike Mark it carries no role or webhook-state
	// guard; only an opened invoice is frozen.
	RecordProviderStatus(ctx context.Context, invoiceID int64, status workflow.State) error

	// WebhookState reports the current webhook health for the tracker UI
	WebhookState(ctx context.Context) workflow.WebhookState
}

type deliveryService struct {
	invoiceRepo port.InvoiceRepository
	monitor     port.WebhookMonitor
	logger      Logger
}

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(invoiceRepo port.InvoiceRepository, monitor port.WebhookMonitor, logger Logger) DeliveryService {
	return &deliveryService{
		invoiceRepo: invoiceRepo,
		monitor:     monitor,
		logger:      logger,
	}
}

// List returns invoices filtered by delivery status plus counts
func (s *deliveryService) List(ctx context.Context, status workflow.State) ([]*entity.Invoice, DeliveryCounts, error) {
	all, err := s.invoiceRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list invoices for delivery", "error", err)
		return nil, DeliveryCounts{}, err
	}

	var counts DeliveryCounts
	for _, inv := range all {
		switch inv.DeliveryStatus {
		case workflow.StatePending:
			counts.Pending++
		case workflow.StateDelivered:
			counts.Delivered++
		case workflow.StateOpened:
			counts.Opened++
		case workflow.StateFailed:
			counts.Failed++
		}
	}

	if status == "" {
		return all, counts, nil
	}

	filtered, err := s.invoiceRepo.ListByDeliveryStatus(ctx, status)
	if err != nil {
		s.logger.Error("Failed to filter invoices by delivery status", "error", err, "status", status)
		return nil, DeliveryCounts{}, err
	}
	return filtered, counts, nil
}

// Resend re-sends the invoice email without changing delivery status
func (s *deliveryService) Resend(ctx context.Context, actor entity.Actor, invoiceID int64) error {
	if !actor.Role.Can(workflow.TriggerResend) {
		return fmt.Errorf("%w: role %s cannot resend", workflow.ErrPermissionDenied, actor.Role)
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return ErrInvoiceNotFound
	}
	if !workflow.CanResend(invoice.DeliveryStatus) {
		return ErrResendUnavailable
	}

	now := time.Now()
	if err := s.invoiceRepo.SetLastResentAt(ctx, invoiceID, now); err != nil {
		return err
	}

	s.logger.Info("Invoice resend queued",
		"invoice_id", invoiceID,
		"invoice_number", invoice.InvoiceNumber,
		"delivery_status", invoice.DeliveryStatus,
		"actor", actor.ID)
	return nil
}

// Mark applies a manual delivery status override
func (s *deliveryService) Mark(ctx context.Context, actor entity.Actor, invoiceID int64, trigger workflow.Trigger) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return ErrInvoiceNotFound
	}

	machine := workflow.NewDeliveryMachine(invoice.DeliveryStatus, actor.Role, s.monitor.State(ctx))
	if err := machine.Fire(ctx, trigger); err != nil {
		s.logger.Error("Delivery override blocked",
			"error", err, "invoice_id", invoiceID, "trigger", trigger, "status", invoice.DeliveryStatus)
		return err
	}

	if err := s.invoiceRepo.UpdateDeliveryStatus(ctx, invoiceID, machine.State()); err != nil {
		return err
	}

	s.logger.Info("Delivery status overridden",
		"invoice_id", invoiceID,
		"from", invoice.DeliveryStatus,
		"to", machine.State(),
		"actor", actor.ID)
	return nil
}

// RecordOpen applies an open event from the link-tracking webhook
func (s *deliveryService) RecordOpen(ctx context.Context, invoiceID int64, openedAt time.Time) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return ErrInvoiceNotFound
	}
	if invoice.DeliveryStatus == workflow.StateOpened {
		return nil // idempotent; repeated link clicks are expected
	}

	machine := workflow.NewDeliveryMachine(invoice.DeliveryStatus, workflow.RoleAdmin, s.monitor.State(ctx))
	if err := machine.Fire(ctx, workflow.TriggerRecordOpen); err != nil {
		return err
	}

	if err := s.invoiceRepo.UpdateDeliveryStatus(ctx, invoiceID, workflow.StateOpened); err != nil {
		return err
	}
	if err := s.invoiceRepo.SetOpenedAt(ctx, invoiceID, openedAt); err != nil {
		return err
	}

	s.logger.Info("Invoice opened", "invoice_id", invoiceID, "opened_at", openedAt)
	return nil
}

// RecordProviderStatus applies a delivered/failed report from the provider
func (s *deliveryService) RecordProviderStatus(ctx context.Context, invoiceID int64, status workflow.State) error {
	if status != workflow.StateDelivered && status != workflow.StateFailed {
		return fmt.Errorf("%w: provider cannot report status %s", workflow.ErrInvalidState, status)
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return ErrInvoiceNotFound
	}
	if invoice.DeliveryStatus == workflow.StateOpened {
		return nil // opened wins over late provider reports
	}
	if invoice.DeliveryStatus == status {
		return nil
	}

	if err := s.invoiceRepo.UpdateDeliveryStatus(ctx, invoiceID, status); err != nil {
		return err
	}

	s.logger.Info("Delivery status reported by provider",
		"invoice_id", invoiceID,
		"from", invoice.DeliveryStatus,
		"to", status)
	return nil
}

// WebhookState reports the current webhook health
func (s *deliveryService) WebhookState(ctx context.Context) workflow.WebhookState {
	return s.monitor.State(ctx)
}
