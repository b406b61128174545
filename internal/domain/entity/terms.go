package entity

import "time"

// PaymentTerms determines how the due date is derived from the issue date.
// The due date is always computed, never freely editable.
type PaymentTerms string

const (
	TermsNet15        PaymentTerms = "Net 15"
	TermsNet30        PaymentTerms = "Net 30"
	TermsNet45        PaymentTerms = "Net 45"
	TermsNet60        PaymentTerms = "Net 60"
	TermsDueOnReceipt PaymentTerms = "Due on Receipt"
)

var termDays = map[PaymentTerms]int{
	TermsNet15:        15,
	TermsNet30:        30,
	TermsNet45:        45,
	TermsNet60:        60,
	TermsDueOnReceipt: 0,
}

// ParsePaymentTerms maps free-form input to known terms, defaulting to Net 30
func ParsePaymentTerms(s string) PaymentTerms {
	if _, ok := termDays[PaymentTerms(s)]; ok {
		return PaymentTerms(s)
	}
	return TermsNet30
}

// Days returns the number of days the terms add to the issue date
func (t PaymentTerms) Days() int {
	return termDays[t]
}

// DueDate derives the due date from the issue date
func (t PaymentTerms) DueDate(issue time.Time) time.Time {
	return issue.AddDate(0, 0, t.Days())
}
