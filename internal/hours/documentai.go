package hours

import (
	"context"
	"fmt"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"invoicer/internal/logger"
)

// DocumentAIConfig identifies the OCR processor used for hours extraction.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string // "us" or "eu"
	ProcessorID string
	Timeout     time.Duration
}

// ProcessorName returns the fully qualified processor resource name.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAIExtractor reads weekly hours with a Document AI OCR processor.
type DocumentAIExtractor struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIExtractor creates an extractor with a client on the regional
// endpoint of cfg.Location.
func NewDocumentAIExtractor(ctx context.Context, cfg DocumentAIConfig, opts ...option.ClientOption) (*DocumentAIExtractor, error) {
	const op = "NewDocumentAIExtractor"

	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create Document AI client: %w", op, err)
	}
	return NewDocumentAIExtractorWithClient(cfg, client), nil
}

// NewDocumentAIExtractorWithClient wraps an existing Document AI client.
func NewDocumentAIExtractorWithClient(cfg DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &DocumentAIExtractor{
		client: client,
		config: cfg,
		log:    logger.WithComponent("hours-documentai"),
	}
}

// ExtractHours processes the image at imagePath and parses the total from the
// document text.
func (e *DocumentAIExtractor) ExtractHours(ctx context.Context, imagePath string) (float64, error) {
	const op = "DocumentAIExtractor.ExtractHours"

	content, err := readImage(imagePath)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	processCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: e.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: "image/png",
			},
		},
	}

	resp, err := e.client.ProcessDocument(processCtx, req)
	if err != nil {
		return 0, fmt.Errorf("%s: Document AI processing failed: %w", op, err)
	}
	if resp.Document == nil {
		return 0, fmt.Errorf("%s: no document in response", op)
	}

	e.log.Debug().
		Str("image", imagePath).
		Int("text_length", len(resp.Document.Text)).
		Msg("Document AI processing completed")

	value, err := ParseTotalHours(resp.Document.Text)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

// Close closes the underlying Document AI client.
func (e *DocumentAIExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
