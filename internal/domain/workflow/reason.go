package workflow

import "strings"

// RejectionCategory classifies a rejection as fixable by editing the invoice
// data (editable) or requiring external resolution before acknowledgement
// (non-editable). Stored as its own column; the legacy reason-suffix tag is
// still written to the reason text for older readers of the field.
type RejectionCategory string

const (
	CategoryEditable    RejectionCategory = "editable"
	CategoryNonEditable RejectionCategory = "non-editable"
)

const (
	editableTag    = " | editable"
	nonEditableTag = " | non-editable"
)

// NoDataIssuesReason is the fixed rejection reason used when the AI adviser
// finds no invoice-data issue for a reject with no manual reason. Such
// rejections are always non-editable.
const NoDataIssuesReason = "No invoice-data issues detected by AI; this may be a business or external issue requiring acknowledgement."

// IsValid returns true for a known category
func (c RejectionCategory) IsValid() bool {
	return c == CategoryEditable || c == CategoryNonEditable
}

// TagReason appends the category suffix to a rejection reason. Idempotent:
// a reason that already carries either tag is returned unchanged.
func TagReason(reason string, category RejectionCategory) string {
	if strings.Contains(reason, editableTag) || strings.Contains(reason, nonEditableTag) {
		return reason
	}
	if category == CategoryNonEditable {
		return reason + nonEditableTag
	}
	return reason + editableTag
}

// ReasonCategory extracts the category from a tagged reason string. The
// fallback is returned when no tag is present.
func ReasonCategory(reason string, fallback RejectionCategory) RejectionCategory {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, nonEditableTag):
		return CategoryNonEditable
	case strings.Contains(lower, editableTag) || strings.Contains(reason, "[EDITABLE]"):
		return CategoryEditable
	default:
		return fallback
	}
}

// StripReasonTag removes the category suffix for display purposes
func StripReasonTag(reason string) string {
	reason = strings.TrimSuffix(reason, nonEditableTag)
	reason = strings.TrimSuffix(reason, editableTag)
	return reason
}

// SplitReason parses a free-text reason into a display title and description
// by splitting on the first colon. Presentation heuristic only; callers must
// not rely on it for semantics.
func SplitReason(reason string) (title, description string) {
	reason = strings.TrimSpace(StripReasonTag(reason))
	if idx := strings.Index(reason, ":"); idx > 0 {
		return strings.TrimSpace(reason[:idx]), strings.TrimSpace(reason[idx+1:])
	}
	return "Rejection Reason", reason
}
