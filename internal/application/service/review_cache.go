package service

import (
	"sync"
	"time"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
)

// ReviewCache holds AI pre-check results keyed by invoice id. Process-local:
// entries live for the life of the process and are never persisted. A cached
// entry means the adviser is not called again for that invoice, so each
// invoice is analyzed at most once per session.
type ReviewCache struct {
	mu      sync.RWMutex
	entries map[int64]*entity.AIReviewStatus
}

// NewReviewCache creates an empty cache
func NewReviewCache() *ReviewCache {
	return &ReviewCache{entries: make(map[int64]*entity.AIReviewStatus)}
}

// Get returns the cached entry for the invoice, or nil
func (c *ReviewCache) Get(invoiceID int64) *entity.AIReviewStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[invoiceID]
}

// Put stores a successful pre-check result
func (c *ReviewCache) Put(invoiceID int64, analysis *entity.RejectionAnalysis) *entity.AIReviewStatus {
	status := &entity.AIReviewStatus{
		Checked:   true,
		HasIssues: analysis != nil && analysis.ShouldReject,
		Analysis:  analysis,
		CheckedAt: time.Now(),
	}

	c.mu.Lock()
	c.entries[invoiceID] = status
	c.mu.Unlock()
	return status
}

// Invalidate drops the entry for an invoice. Called when the invoice data
// changes (resubmit), since the analysis no longer describes the record.
func (c *ReviewCache) Invalidate(invoiceID int64) {
	c.mu.Lock()
	delete(c.entries, invoiceID)
	c.mu.Unlock()
}
