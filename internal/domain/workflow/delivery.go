package workflow

import (
	"context"
	"fmt"
)

// WebhookState reports the health of the delivery-confirmation webhook as
// seen by the server. Manual tracking is only offered while the webhook
// cannot confirm deliveries on its own.
type WebhookState string

const (
	WebhookActive      WebhookState = "active"
	WebhookDisabled    WebhookState = "disabled"
	WebhookUnreachable WebhookState = "unreachable"
)

// ManualTrackingRequired reports whether manual delivery overrides are offered
func (w WebhookState) ManualTrackingRequired() bool {
	return w != WebhookActive
}

// NewDeliveryMachine builds the delivery-status machine for a single invoice.
// Opened is reached only through the link-tracking webhook and freezes all
// manual overrides. Manual marks require an admin and a non-active webhook.
// Resend is not a transition: it never changes delivery status.
func NewDeliveryMachine(current State, role Role, webhook WebhookState) StateMachine {
	b := NewBuilder()

	manual := func(action Trigger) GuardFunc {
		return func(ctx context.Context) error {
			if !role.IsAdmin() {
				return fmt.Errorf("%w: role %s cannot %s", ErrPermissionDenied, role, action)
			}
			if !webhook.ManualTrackingRequired() {
				return fmt.Errorf("%w: webhook is active, delivery status is tracked automatically", ErrGuardFailed)
			}
			return nil
		}
	}

	b.Configure(StatePending).
		PermitIf(TriggerMarkDelivered, StateDelivered, manual(TriggerMarkDelivered)).
		PermitIf(TriggerMarkFailed, StateFailed, manual(TriggerMarkFailed)).
		Permit(TriggerRecordOpen, StateOpened)

	b.Configure(StateDelivered).
		PermitIf(TriggerMarkFailed, StateFailed, manual(TriggerMarkFailed)).
		PermitIf(TriggerMarkPending, StatePending, manual(TriggerMarkPending)).
		Permit(TriggerRecordOpen, StateOpened)

	b.Configure(StateFailed).
		PermitIf(TriggerMarkDelivered, StateDelivered, manual(TriggerMarkDelivered)).
		PermitIf(TriggerMarkPending, StatePending, manual(TriggerMarkPending)).
		Permit(TriggerRecordOpen, StateOpened)

	// Once opened, nothing moves the status again.
	b.Configure(StateOpened)

	return b.Build(current)
}

// CanResend reports whether a resend may be issued for the given delivery
// state. Resending is allowed from any state except opened and leaves the
// status untouched; the attempt's outcome arrives later via the webhook.
func CanResend(state State) bool {
	return state != StateOpened
}
