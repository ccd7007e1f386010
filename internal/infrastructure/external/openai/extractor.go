package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mstancik/expenseflow/internal/application/port"
)

// maxReceiptPages caps how many rendered pages go to the vision model per
// extraction.
const maxReceiptPages = 2

// Extractor implements port.ReceiptExtractor using the vision API over
// rendered receipt pages. Failures degrade to a structured error result;
// claim creation never waits on a successful extraction.
type Extractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewExtractor creates a new receipt extractor
func NewExtractor(apiKey, model string, logger *zap.Logger) *Extractor {
	return &Extractor{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// Extract renders the uploaded files to images and asks the vision model
// for structured expense fields with per-field confidence.
func (e *Extractor) Extract(ctx context.Context, files []port.ReceiptFile, currency string) (*port.ExtractionResult, error) {
	start := time.Now()

	images, err := e.renderFiles(files)
	if err != nil {
		e.logger.Error("Failed to render receipt files", zap.Error(err))
		return degraded("RENDER_FAILED", err.Error()), nil
	}
	if len(images) == 0 {
		return degraded("NO_PAGES", "no readable pages in uploaded files"), nil
	}
	if len(images) > maxReceiptPages {
		images = images[:maxReceiptPages]
	}

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: e.buildPrompt(currency),
	}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You extract structured fields from receipts and invoices. Respond with valid JSON only.",
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
	})
	if err != nil {
		e.logger.Error("Receipt extraction call failed", zap.Error(err))
		return degraded("API_FAILED", err.Error()), nil
	}
	if len(resp.Choices) == 0 {
		return degraded("EMPTY_RESPONSE", "no response from model"), nil
	}

	var fields port.ExtractedFields
	content := stripFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		e.logger.Error("Failed to parse extraction response",
			zap.Error(err),
			zap.String("content", content))
		return degraded("PARSE_FAILED", err.Error()), nil
	}

	fields.ProcessedMS = time.Since(start).Milliseconds()
	e.logger.Info("Receipt extraction completed",
		zap.String("vendor", fields.Vendor),
		zap.Float64("amount_confidence", fields.Confidence.Amount),
		zap.Int64("processing_ms", fields.ProcessedMS))
	return &port.ExtractionResult{Fields: &fields}, nil
}

// renderFiles converts every uploaded file to PNG page images. PDFs are
// rasterized page by page; image uploads pass through untouched.
func (e *Extractor) renderFiles(files []port.ReceiptFile) ([][]byte, error) {
	var images [][]byte
	for _, f := range files {
		name := strings.ToLower(f.Name)
		switch {
		case strings.HasSuffix(name, ".pdf"):
			pages, err := renderPDF(f.Content)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", f.Name, err)
			}
			images = append(images, pages...)
		case strings.HasSuffix(name, ".png"), strings.HasSuffix(name, ".jpg"), strings.HasSuffix(name, ".jpeg"):
			images = append(images, f.Content)
		default:
			e.logger.Info("Skipping unsupported receipt file", zap.String("name", f.Name))
		}
	}
	return images, nil
}

func renderPDF(data []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	var pages [][]byte
	for n := 0; n < doc.NumPage() && n < maxReceiptPages; n++ {
		img, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", n, err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}

func (e *Extractor) buildPrompt(currency string) string {
	return fmt.Sprintf(`Extract the following fields from the receipt/invoice images.
Amounts are in %s unless the document says otherwise; report them as decimal strings.
Dates use YYYY-MM-DD.

Return JSON:
{
  "vendor": "", "amount": "", "tax_amount": "", "invoice_date": "", "due_date": "",
  "reference": "", "description": "", "category": "",
  "confidence": {"vendor": 0.0, "amount": 0.0, "tax_amount": 0.0, "invoice_date": 0.0,
                 "due_date": 0.0, "reference": 0.0, "description": 0.0, "category": 0.0}
}

Confidence scores are between 0 and 1. Omit fields you cannot read.`, currency)
}

// degraded wraps a structured error so callers fall back to manual entry.
func degraded(code, message string) *port.ExtractionResult {
	return &port.ExtractionResult{
		Err: &port.ExtractionError{Code: code, Message: message},
	}
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

var _ port.ReceiptExtractor = (*Extractor)(nil)
