package workflow

// State represents a lifecycle state of an invoice. Approval and delivery
// run as independent lifecycles but share the same state machine mechanics.
type State string

// Approval states.
const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateOnHold   State = "on-hold"
)

// Delivery states. StatePending is shared with the approval lifecycle.
const (
	StateDelivered State = "delivered"
	StateOpened    State = "opened"
	StateFailed    State = "failed"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateApproved:  true,
	StateRejected:  true,
	StateOnHold:    true,
	StateDelivered: true,
	StateOpened:    true,
	StateFailed:    true,
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
