package webhook

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

// Monitor implements port.WebhookMonitor. When the delivery webhook is
// enabled it probes the provider's health endpoint and reports unreachable on
// failure; probe results are cached briefly so the tracker list does not ping
// the provider on every request.
type Monitor struct {
	enabled   bool
	healthURL string
	client    *http.Client
	ttl       time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	lastState workflow.WebhookState
	checkedAt time.Time
}

// NewMonitor creates a new webhook monitor. With enabled=false the state is
// always disabled; with no health URL an enabled webhook is assumed active.
func NewMonitor(enabled bool, healthURL string, probeTimeout, ttl time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		enabled:   enabled,
		healthURL: healthURL,
		client:    &http.Client{Timeout: probeTimeout},
		ttl:       ttl,
		logger:    logger,
	}
}

// State reports the current webhook health
func (m *Monitor) State(ctx context.Context) workflow.WebhookState {
	if !m.enabled {
		return workflow.WebhookDisabled
	}
	if m.healthURL == "" {
		return workflow.WebhookActive
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastState != "" && time.Since(m.checkedAt) < m.ttl {
		return m.lastState
	}

	m.lastState = m.probe(ctx)
	m.checkedAt = time.Now()
	return m.lastState
}

func (m *Monitor) probe(ctx context.Context) workflow.WebhookState {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.healthURL, nil)
	if err != nil {
		m.logger.Error("Invalid webhook health URL", zap.Error(err), zap.String("url", m.healthURL))
		return workflow.WebhookUnreachable
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("Webhook health probe failed", zap.Error(err))
		return workflow.WebhookUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return workflow.WebhookActive
	}
	m.logger.Warn("Webhook health probe returned error status", zap.Int("status", resp.StatusCode))
	return workflow.WebhookUnreachable
}
