package hours

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"invoicer/internal/logger"
)

const hoursPrompt = `This image is a weekly timesheet summary. Extract the total number of hours worked that week. ` +
	`Reply with JSON only, in the form {"total_hours": <number>}. Convert hours and minutes to decimal hours.`

var hoursSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		totalHoursField: {
			Type:        jsonschema.Number,
			Description: "Total hours worked in the week, in decimal hours",
		},
	},
	Required:             []string{totalHoursField},
	AdditionalProperties: false,
}

// OpenAIConfig configures the vision-model extractor.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty for api.openai.com; e.g. http://localhost:11434/v1 for Ollama
	Model   string

	// HTTPClient overrides the client used for API calls.
	HTTPClient *http.Client
}

// OpenAIExtractor reads weekly hours with a vision-capable chat model behind
// an OpenAI-compatible API.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIExtractor creates an extractor for cfg.
func NewOpenAIExtractor(cfg OpenAIConfig) *OpenAIExtractor {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		log:    logger.WithComponent("hours-openai"),
	}
}

// ExtractHours sends the image at imagePath to the model and decodes its
// structured reply.
func (e *OpenAIExtractor) ExtractHours(ctx context.Context, imagePath string) (float64, error) {
	const op = "OpenAIExtractor.ExtractHours"

	image, err := os.ReadFile(imagePath)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to read image: %w", op, err)
	}

	e.log.Debug().
		Str("model", e.model).
		Str("image", imagePath).
		Int("bytes", len(image)).
		Msg("Sending hours extraction request")

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: hoursPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "timesheet_hours",
				Schema: &hoursSchema,
				Strict: true,
			},
		},
		MaxTokens: 100,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: chat completion failed: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("%s: no response choices from model", op)
	}

	content := resp.Choices[0].Message.Content
	e.log.Debug().Str("response", content).Msg("Received hours extraction response")

	value, err := parseHoursJSON(content)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}
