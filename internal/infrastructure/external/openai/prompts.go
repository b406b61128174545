package openai

import (
	"fmt"
	"strings"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/money"
)

const rejectionSystemPrompt = "You are an accounts-receivable reviewer for a Singapore company. " +
	"Analyze invoices for data problems that justify rejecting them before they are sent to the client. " +
	"Only flag issues in the invoice data itself (amounts, GST, dates, missing details), not business judgment calls. " +
	"Always respond with valid JSON."

const draftSystemPrompt = "You are an invoicing assistant. Review an in-progress invoice draft for quality problems " +
	"before submission. Score it 0-100 and list concrete issues with severity high, medium or low. " +
	"Always respond with valid JSON."

const visionSystemPrompt = "You are an expert at reading purchase orders and quotations. " +
	"Extract every billable line item with its description, quantity and unit rate. " +
	"Always respond with valid JSON."

const dateLayout = "2006-01-02"

// buildRejectionPrompt renders a stored invoice for the rejection analysis
func buildRejectionPrompt(invoice *entity.Invoice) string {
	var items strings.Builder
	for _, item := range invoice.Items {
		fmt.Fprintf(&items, "- %s: qty %d x %s = %s\n",
			item.Description, item.Quantity, item.UnitPrice.StringFixed(2), item.Amount().StringFixed(2))
	}
	if items.Len() == 0 {
		items.WriteString("(no line items)\n")
	}

	totals := money.Compute(invoice.Items, invoice.GSTRate).Rounded()

	client := invoice.CompanyName
	if client == "" {
		client = invoice.OneOffClient
	}

	return fmt.Sprintf(`Analyze this invoice and decide whether it should be rejected:

**Invoice %s**
- Client: %s
- Email: %s
- Issue Date: %s
- Due Date: %s
- Payment Terms: %s
- Currency: %s
- GST Rate: %s

**Line Items:**
%s
**Totals:** subtotal %s, GST %s, total %s

**Notes:** %s

Respond with JSON:
{
  "should_reject": true/false,
  "rejection_title": "short title, empty if should_reject is false",
  "rejection_description": "one-sentence explanation, empty if should_reject is false",
  "specific_issues": ["each concrete data issue found"]
}`,
		invoice.InvoiceNumber,
		client,
		invoice.Email,
		invoice.IssueDate.Format(dateLayout),
		invoice.DueDate.Format(dateLayout),
		invoice.PaymentTerms,
		invoice.Currency,
		invoice.GSTRate.String(),
		items.String(),
		totals.Subtotal.StringFixed(2), totals.Tax.StringFixed(2), totals.Total.StringFixed(2),
		invoice.Notes)
}

// buildDraftPrompt renders a draft for the pre-submission quality check
func buildDraftPrompt(draft *entity.InvoiceDraft) string {
	var items strings.Builder
	for _, item := range draft.Items {
		fmt.Fprintf(&items, "- %s: qty %.2f x %.2f\n", item.Description, item.Quantity, item.Rate)
	}
	if items.Len() == 0 {
		items.WriteString("(no line items)\n")
	}

	gstRate := 0.0
	if draft.GSTRate != nil {
		gstRate = *draft.GSTRate
	}

	return fmt.Sprintf(`Review this invoice draft before submission:

- Company: %s
- Email: %s
- Phone: %s
- Invoice Number: %s
- Payment Terms: %s
- Invoice Date: %s
- GST Rate: %.4f

**Line Items:**
%s
**Notes:** %s

Respond with JSON:
{
  "score": 0-100,
  "valid": true/false,
  "issues": [{"message": "...", "severity": "high|medium|low"}],
  "suggestions": ["..."]
}`,
		draft.CompanyName,
		draft.Email,
		draft.Phone,
		draft.InvoiceNumber,
		draft.PaymentTerms,
		draft.InvoiceDate,
		gstRate,
		items.String(),
		draft.Notes)
}

const visionItemsPrompt = `Extract every billable line item from this document.

Respond with JSON:
{
  "items": [
    {"description": "...", "quantity": 1.0, "rate": 0.0}
  ]
}

Quantity defaults to 1 when the document does not state one. Rate is the unit
price before tax. Skip headers, subtotals, tax lines and grand totals.`
