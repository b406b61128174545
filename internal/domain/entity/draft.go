package entity

// InvoiceDraft is an unsaved, in-progress invoice as posted by the creation
// and re-edit flows. Client-computed values are authoritative only here; once
// persisted, the server record wins.
type InvoiceDraft struct {
	ClientID      *int64 `json:"client_id,omitempty"`
	OneOffClient  string `json:"one_off_client,omitempty"`
	CompanyName   string `json:"company_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address,omitempty"`
	InvoiceNumber string `json:"invoice_number"`
	Currency      string `json:"currency"`
	// GSTRate distinguishes "not supplied" (nil, keep the stored rate on
	// re-edit) from an explicit zero-rating.
	GSTRate      *float64    `json:"gst_rate,omitempty"`
	PaymentTerms string      `json:"payment_terms"`
	InvoiceDate  string      `json:"invoice_date"`
	DueDate      string      `json:"due_date"`
	Notes        string      `json:"notes"`
	Items        []DraftItem `json:"items"`
}

// DraftItem is one row of a draft. Rate is the unit price; Amount is the
// client's display value and is recomputed server-side, never trusted.
type DraftItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}
