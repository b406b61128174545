package workflow

import (
	"context"
	"fmt"
)

// NewApprovalMachine builds the approval state machine for a single invoice.
// Guards close over the actor's role and the invoice's rejection category, so
// a machine instance is valid for exactly one (invoice, actor) pair.
//
// Transition table:
//
//	pending   approve     -> approved   (admin)
//	pending   reject      -> rejected   (admin; reason handled by the service)
//	pending   hold        -> on-hold    (admin)
//	rejected  acknowledge -> on-hold    (non-editable category)
//	rejected  resubmit    -> pending    (editable category, via re-edit flow)
//	on-hold   resend      -> pending
func NewApprovalMachine(current State, role Role, category RejectionCategory) StateMachine {
	b := NewBuilder()

	b.Configure(StatePending).
		PermitIf(TriggerApprove, StateApproved, requireRole(role, TriggerApprove)).
		PermitIf(TriggerReject, StateRejected, requireRole(role, TriggerReject)).
		PermitIf(TriggerHold, StateOnHold, requireRole(role, TriggerHold))

	b.Configure(StateRejected).
		PermitIf(TriggerAcknowledge, StateOnHold,
			allOf(requireRole(role, TriggerAcknowledge), requireCategory(category, CategoryNonEditable))).
		PermitIf(TriggerResubmit, StatePending,
			allOf(requireRole(role, TriggerResubmit), requireCategory(category, CategoryEditable)))

	b.Configure(StateOnHold).
		PermitIf(TriggerResend, StatePending, requireRole(role, TriggerResend))

	// Approved offers no actions; configure it so Build accepts it as a
	// current state for invoices already approved.
	b.Configure(StateApproved)

	return b.Build(current)
}

// ApprovalActions returns the actions offered to the actor for an invoice in
// the given state. Drives both the UI action list and pre-dispatch checks.
func ApprovalActions(state State, role Role, category RejectionCategory) []Trigger {
	m := NewApprovalMachine(state, role, category)
	return m.PermittedTriggers(context.Background())
}

func requireRole(role Role, action Trigger) GuardFunc {
	return func(ctx context.Context) error {
		if !role.Can(action) {
			return fmt.Errorf("%w: role %s cannot %s", ErrPermissionDenied, role, action)
		}
		return nil
	}
}

func requireCategory(got, want RejectionCategory) GuardFunc {
	return func(ctx context.Context) error {
		if got != want {
			return fmt.Errorf("%w: rejection category is %s, need %s", ErrGuardFailed, got, want)
		}
		return nil
	}
}

func allOf(guards ...GuardFunc) GuardFunc {
	return func(ctx context.Context) error {
		for _, g := range guards {
			if err := g(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
