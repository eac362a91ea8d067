package hours

import (
	"context"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"invoicer/internal/logger"
)

// MaxImageSizeBytes is the largest inline image the OCR extractors send.
const MaxImageSizeBytes = 20 * 1024 * 1024

// VisionExtractor reads weekly hours by running Cloud Vision text detection
// on the screenshot and parsing the total from the recognized text.
type VisionExtractor struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewVisionExtractor creates an extractor with its own Vision client.
func NewVisionExtractor(ctx context.Context, opts ...option.ClientOption) (*VisionExtractor, error) {
	const op = "NewVisionExtractor"

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create Vision client: %w", op, err)
	}
	return NewVisionExtractorWithClient(client), nil
}

// NewVisionExtractorWithClient wraps an existing Vision client.
func NewVisionExtractorWithClient(client *vision.ImageAnnotatorClient) *VisionExtractor {
	return &VisionExtractor{
		client: client,
		log:    logger.WithComponent("hours-vision"),
	}
}

// ExtractHours runs document text detection on the image at imagePath.
func (e *VisionExtractor) ExtractHours(ctx context.Context, imagePath string) (float64, error) {
	const op = "VisionExtractor.ExtractHours"

	content, err := readImage(imagePath)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := e.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("%s: Vision API call failed: %w", op, err)
	}
	if len(resp.Responses) == 0 {
		return 0, fmt.Errorf("%s: no response from Vision API", op)
	}

	imageResp := resp.Responses[0]
	if imageResp.Error != nil {
		return 0, fmt.Errorf("%s: Vision API error: %s", op, imageResp.Error.Message)
	}

	text := imageResp.GetFullTextAnnotation().GetText()
	e.log.Debug().
		Str("image", imagePath).
		Int("text_length", len(text)).
		Msg("Vision text detection completed")

	value, err := ParseTotalHours(text)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

// Close closes the underlying Vision client.
func (e *VisionExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func readImage(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("image %s is empty", path)
	}
	if len(content) > MaxImageSizeBytes {
		return nil, fmt.Errorf("image %s is too large: %d bytes", path, len(content))
	}
	return content, nil
}
