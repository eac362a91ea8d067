package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"invoicer/internal/logger"
)

// Supported hours extractors
const (
	ExtractorOpenAI     = "openai"
	ExtractorVision     = "vision"
	ExtractorDocumentAI = "documentai"
)

type Config struct {
	// Google Sheets Configuration
	GoogleSheetURL string // URL or bare spreadsheet ID

	// Gmail Configuration
	GmailLabel      string
	GmailMaxThreads int64

	// OAuth Configuration (installed-app flow shared by Gmail, Sheets and Drive)
	OAuthCredentialsFile string
	OAuthTokenFile       string

	// Output Configuration
	OutputDir string

	// Rendering Configuration
	ChromeBin    string
	RenderWidth  int
	RenderHeight int

	// Hours Extraction Configuration
	HoursExtractor         string
	DefaultHours           float64
	HoursRequestsPerMinute int // 0 disables pacing

	// OpenAI-compatible vision model (OpenAI or a local Ollama endpoint)
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Google Cloud Configuration (vision and documentai extractors)
	GoogleCredentials            string // inline service account JSON
	GoogleApplicationCredentials string // service account JSON file
	GoogleCloudProject           string
	GoogleCloudLocation          string
	DocumentAIProcessorID        string

	// Draft Configuration
	DraftFrom    string
	DraftTo      []string
	DraftCc      []string
	DraftSubject string
	DraftBody    string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		GoogleSheetURL:               getEnv("GOOGLE_SHEET_URL", ""),
		GmailLabel:                   getEnv("GMAIL_LABEL", "GCS/Weekly Timesheet"),
		GmailMaxThreads:              int64(getEnvInt("GMAIL_MAX_THREADS", 2)),
		OAuthCredentialsFile:         getEnv("GOOGLE_OAUTH_CREDENTIALS_FILE", "credentials.json"),
		OAuthTokenFile:               getEnv("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),
		OutputDir:                    getEnv("INVOICE_OUTPUT_DIR", "invoices"),
		ChromeBin:                    getEnv("CHROME_BIN", ""),
		RenderWidth:                  getEnvInt("RENDER_WIDTH", 700),
		RenderHeight:                 getEnvInt("RENDER_HEIGHT", 1100),
		HoursExtractor:               strings.ToLower(getEnv("HOURS_EXTRACTOR", ExtractorOpenAI)),
		DefaultHours:                 getEnvFloat("DEFAULT_HOURS", 40.0),
		HoursRequestsPerMinute:       getEnvInt("HOURS_REQUESTS_PER_MINUTE", 0),
		OpenAIAPIKey:                 getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:                getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:                  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GoogleCredentials:            getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCloudProject:           getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:          getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:        getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DraftFrom:                    getEnv("DRAFT_FROM", "me"),
		DraftTo:                      getEnvList("DRAFT_TO"),
		DraftCc:                      getEnvList("DRAFT_CC"),
		DraftSubject:                 getEnv("DRAFT_SUBJECT", "{{.Title}}"),
		DraftBody:                    getEnv("DRAFT_BODY", "Hi,\n\nPlease find attached {{.Title}} and the timesheets it covers.\n\nThanks!"),
		LogLevel:                     getEnv("LOG_LEVEL", "info"),
		LogFormat:                    getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:                getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                    getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks the settings every command relies on.
func (c *Config) validate() error {
	if c.GmailMaxThreads < 2 {
		return fmt.Errorf("GMAIL_MAX_THREADS must be at least 2, got %d", c.GmailMaxThreads)
	}
	if c.DefaultHours < 0 {
		return fmt.Errorf("DEFAULT_HOURS must not be negative")
	}
	return nil
}

// ValidateCycle checks the settings a full invoice cycle needs on top of
// Load: the spreadsheet, and the renderer and hours extractor unless
// screenshots are skipped.
func (c *Config) ValidateCycle(withScreenshots bool) error {
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required")
	}
	if !withScreenshots {
		return nil
	}
	if c.RenderWidth <= 0 || c.RenderHeight <= 0 {
		return fmt.Errorf("RENDER_WIDTH and RENDER_HEIGHT must be positive")
	}
	switch c.HoursExtractor {
	case ExtractorOpenAI:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai hours extractor")
		}
	case ExtractorVision:
	case ExtractorDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai hours extractor")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai hours extractor")
		}
	default:
		return fmt.Errorf("HOURS_EXTRACTOR must be one of %s, %s, %s; got %q",
			ExtractorOpenAI, ExtractorVision, ExtractorDocumentAI, c.HoursExtractor)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
