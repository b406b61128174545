package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
)

// ErrExtractorDisabled is returned when no API key is configured
var ErrExtractorDisabled = errors.New("document extraction is not configured")

// Extractor implements port.DocumentExtractor: it renders uploaded PO and
// quote documents to images and pulls line items out with the Vision API.
type Extractor struct {
	client  *openai.Client
	model   string
	enabled bool
	logger  *zap.Logger
}

// NewExtractor creates a new document extractor. An empty API key yields a
// disabled extractor that fails fast instead of surfacing a provider auth
// error.
func NewExtractor(apiKey, model string, timeout time.Duration, logger *zap.Logger) *Extractor {
	e := &Extractor{
		model:   model,
		enabled: apiKey != "",
		logger:  logger,
	}
	if e.enabled {
		e.client = newAPIClient(apiKey, timeout)
	}
	return e
}

// maxVisionPages caps how many pages are sent per document to control cost
const maxVisionPages = 2

// ExtractLineItems extracts candidate line items from a PDF or image file
func (e *Extractor) ExtractLineItems(ctx context.Context, filePath string) ([]entity.ItemCandidate, error) {
	if !e.enabled {
		return nil, ErrExtractorDisabled
	}

	e.logger.Info("Extracting line items from document", zap.String("path", filePath))

	images, err := e.renderToImages(filePath)
	if err != nil {
		e.logger.Error("Failed to render document", zap.Error(err), zap.String("path", filePath))
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no pages extracted from %s", filepath.Base(filePath))
	}
	if len(images) > maxVisionPages {
		images = images[:maxVisionPages]
	}

	candidates, err := e.extractWithVision(ctx, images)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Line items extracted",
		zap.String("path", filePath),
		zap.Int("count", len(candidates)))
	return candidates, nil
}

// renderToImages converts a PDF to per-page JPEGs, or reads an image file
// directly
func (e *Extractor) renderToImages(filePath string) ([][]byte, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		// handled below
	case ".jpg", ".jpeg", ".png":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		return [][]byte{data}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var images [][]byte
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			e.logger.Warn("Failed to render page", zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		encoded, err := encodeJPEG(img)
		if err != nil {
			e.logger.Warn("Failed to encode page", zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		images = append(images, encoded)
	}
	return images, nil
}

// extractWithVision sends the page images to the Vision API and parses the
// returned item list
func (e *Extractor) extractWithVision(ctx context.Context, images [][]byte) ([]entity.ItemCandidate, error) {
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: visionItemsPrompt,
		},
	}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(img)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   4096,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: visionSystemPrompt,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("Vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from Vision API")
	}

	var result struct {
		Items []entity.ItemCandidate `json:"items"`
	}
	if err := parseJSONResponse(resp.Choices[0].Message.Content, &result); err != nil {
		e.logger.Error("Failed to parse Vision API response",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	candidates := make([]entity.ItemCandidate, 0, len(result.Items))
	for _, item := range result.Items {
		if strings.TrimSpace(item.Description) == "" {
			continue
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		candidates = append(candidates, item)
	}
	return candidates, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
