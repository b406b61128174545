package workflow

// Trigger represents a user action that can cause a state transition
type Trigger string

// Approval actions. Wire values match the action endpoint contract.
const (
	TriggerApprove     Trigger = "approve"
	TriggerReject      Trigger = "reject"
	TriggerHold        Trigger = "hold"
	TriggerAcknowledge Trigger = "acknowledge"
	TriggerResubmit    Trigger = "resubmit"
	TriggerResend      Trigger = "resend"
)

// Delivery actions. TriggerRecordOpen is fired by the inbound tracking
// webhook, never by a user.
const (
	TriggerMarkDelivered Trigger = "mark-delivered"
	TriggerMarkFailed    Trigger = "mark-failed"
	TriggerMarkPending   Trigger = "mark-pending"
	TriggerRecordOpen    Trigger = "record-open"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
