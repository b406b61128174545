package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
)

// ErrAdviserDisabled is returned when no API key is configured
var ErrAdviserDisabled = errors.New("AI adviser is not configured")

// newAPIClient builds an OpenAI client with the configured request timeout
func newAPIClient(apiKey string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = newHTTPClient(timeout)
	return openai.NewClientWithConfig(cfg)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Adviser implements port.AIAdviser using OpenAI
type Adviser struct {
	client      *openai.Client
	model       string
	temperature float32
	enabled     bool
	logger      *zap.Logger
}

// NewAdviser creates a new OpenAI adviser. An empty API key yields a disabled
// adviser: draft validation degrades to ai_enabled=false and rejection
// detection fails fast.
func NewAdviser(apiKey, model string, temperature float32, timeout time.Duration, logger *zap.Logger) *Adviser {
	a := &Adviser{
		model:       model,
		temperature: temperature,
		enabled:     apiKey != "",
		logger:      logger,
	}
	if a.enabled {
		a.client = newAPIClient(apiKey, timeout)
	}
	return a
}

// DetectRejection analyzes a stored invoice and recommends whether it should
// be rejected
func (a *Adviser) DetectRejection(ctx context.Context, invoice *entity.Invoice) (*entity.RejectionAnalysis, error) {
	if !a.enabled {
		return nil, ErrAdviserDisabled
	}

	a.logger.Debug("Running rejection analysis",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("invoice_number", invoice.InvoiceNumber))

	prompt := buildRejectionPrompt(invoice)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: rejectionSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		a.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var analysis entity.RejectionAnalysis
	if err := parseJSONResponse(content, &analysis); err != nil {
		a.logger.Error("Failed to parse OpenAI response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	a.logger.Info("Rejection analysis completed",
		zap.Int64("invoice_id", invoice.ID),
		zap.Bool("should_reject", analysis.ShouldReject),
		zap.Int("issue_count", len(analysis.SpecificIssues)))

	return &analysis, nil
}

// ValidateDraft scores an in-progress draft and lists issues
func (a *Adviser) ValidateDraft(ctx context.Context, draft *entity.InvoiceDraft) (*entity.DraftValidation, error) {
	if !a.enabled {
		return &entity.DraftValidation{Valid: true, AIEnabled: false}, nil
	}

	prompt := buildDraftPrompt(draft)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: draftSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		a.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var validation entity.DraftValidation
	if err := parseJSONResponse(content, &validation); err != nil {
		a.logger.Error("Failed to parse OpenAI response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	validation.AIEnabled = true

	a.logger.Info("Draft validation completed",
		zap.Int("score", validation.Score),
		zap.Bool("valid", validation.Valid),
		zap.Int("issue_count", len(validation.Issues)))

	return &validation, nil
}

// parseJSONResponse unmarshals a chat response, falling back to the first
// balanced JSON object when the model wraps it in markdown fences.
func parseJSONResponse(content string, v interface{}) error {
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}
	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(jsonStr), v)
}

// extractJSON returns the first balanced JSON object in the content
func extractJSON(content string) string {
	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '"':
			if i == 0 || content[i-1] != '\\' {
				inString = !inString
			}
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return ""
}
