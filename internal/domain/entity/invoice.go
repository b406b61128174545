package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// Invoice is the authoritative invoice record. Subtotal, tax and total are
// never stored; they are computed from the line items at read time.
type Invoice struct {
	ID            int64  `json:"id"`
	InvoiceNumber string `json:"invoice_number"`

	// Exactly one of ClientID / OneOffClient is set.
	ClientID     *int64 `json:"client_id,omitempty"`
	OneOffClient string `json:"one_off_client,omitempty"`

	// Contact details as captured at creation time, editable in the
	// re-edit flow.
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address,omitempty"`

	Currency     string          `json:"currency"`
	GSTRate      decimal.Decimal `json:"gst_rate"`
	PaymentTerms PaymentTerms    `json:"payment_terms"`
	IssueDate    time.Time       `json:"issue_date"`
	DueDate      time.Time       `json:"due_date"`
	Notes        string          `json:"notes"`

	ApprovalStatus    workflow.State             `json:"approval_status"`
	RejectionReason   string                     `json:"approval_reason,omitempty"`
	RejectionCategory workflow.RejectionCategory `json:"rejection_category,omitempty"`

	DeliveryStatus workflow.State `json:"delivery_status"`
	OpenedAt       *time.Time     `json:"opened_at,omitempty"`
	LastResentAt   *time.Time     `json:"last_resent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []*LineItem `json:"items,omitempty"`
}

// LineItem is one billable row on an invoice. IDs are client-generated and
// opaque; Position preserves display order.
type LineItem struct {
	ID          string          `json:"id"`
	InvoiceID   int64           `json:"-"`
	Position    int             `json:"-"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Amount returns quantity x unit price, unrounded
func (li *LineItem) Amount() decimal.Decimal {
	return decimal.NewFromInt(li.Quantity).Mul(li.UnitPrice)
}

// Actor is the authenticated user performing an action
type Actor struct {
	ID   string
	Role workflow.Role
}

// ApprovalHistory records one workflow transition for auditing
type ApprovalHistory struct {
	ID             int64
	InvoiceID      int64
	ActorID        string
	PreviousStatus workflow.State
	NewStatus      workflow.State
	Action         workflow.Trigger
	Reason         string
	CreatedAt      time.Time
}
