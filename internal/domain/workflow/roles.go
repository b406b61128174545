package workflow

// Role is the capability set of the acting user. The server re-validates
// every action even though the front end hides disallowed controls.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// employeeActions are the only approval actions a non-admin may perform.
var employeeActions = map[Trigger]bool{
	TriggerAcknowledge: true,
	TriggerResend:      true,
	TriggerResubmit:    true,
}

// Can reports whether the role is allowed to perform the given action.
// Admins can perform every action.
func (r Role) Can(t Trigger) bool {
	if r == RoleAdmin {
		return true
	}
	return employeeActions[t]
}

// IsAdmin reports whether the role carries the full admin capability set
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
