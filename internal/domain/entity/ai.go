package entity

import "time"

// RejectionAnalysis is the adviser's verdict on a stored invoice
type RejectionAnalysis struct {
	ShouldReject         bool     `json:"should_reject"`
	RejectionTitle       string   `json:"rejection_title"`
	RejectionDescription string   `json:"rejection_description"`
	SpecificIssues       []string `json:"specific_issues"`
}

// AIReviewStatus is the per-invoice pre-check cache entry. Lives in process
// memory only; never written back to the server record.
type AIReviewStatus struct {
	Checked   bool               `json:"checked"`
	HasIssues bool               `json:"has_issues"`
	Analysis  *RejectionAnalysis `json:"analysis,omitempty"`
	CheckedAt time.Time          `json:"checked_at"`
}

// RecommendedAction returns the action the pre-check pre-selects. Advisory
// only; the actor still confirms explicitly.
func (s *AIReviewStatus) RecommendedAction() string {
	if s.Analysis != nil && s.Analysis.ShouldReject {
		return "reject"
	}
	return "approve"
}

// IssueSeverity orders validation issues for display and deduplication
type IssueSeverity string

const (
	SeverityHigh   IssueSeverity = "high"
	SeverityMedium IssueSeverity = "medium"
	SeverityLow    IssueSeverity = "low"
)

var severityRank = map[IssueSeverity]int{
	SeverityHigh:   0,
	SeverityMedium: 1,
	SeverityLow:    2,
}

// Rank returns the sort rank of the severity; unknown severities rank as medium
func (s IssueSeverity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityMedium]
}

// ValidationIssue is one problem found in a draft invoice
type ValidationIssue struct {
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// DraftValidation is the adviser's quality report for an in-progress draft
type DraftValidation struct {
	Score       int               `json:"score"`
	Valid       bool              `json:"valid"`
	Issues      []ValidationIssue `json:"issues"`
	Suggestions []string          `json:"suggestions"`
	AIEnabled   bool              `json:"ai_enabled"`
}

// ItemCandidate is a line item extracted from an uploaded PO/quote document.
// Rate mirrors the extractor's wire name for unit price.
type ItemCandidate struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}
