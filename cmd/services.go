package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"invoicer/internal/auth"
	"invoicer/internal/config"
	"invoicer/internal/gmail"
	"invoicer/internal/hours"
	"invoicer/internal/logger"
	"invoicer/internal/render"
	"invoicer/internal/sheets"
	"invoicer/internal/workflow"
)

// services holds the live collaborators of a cycle.
type services struct {
	gmail     *gmail.Service
	sheets    *sheets.Service
	renderer  *render.ChromeRenderer
	extractor hours.Extractor
	closers   []io.Closer
}

// newServices authorizes against Google and builds the clients the cycle
// needs. The renderer and hours extractor are only built when screenshots
// are enabled.
func newServices(ctx context.Context, cfg *config.Config, withScreenshots bool) (*services, error) {
	log := logger.WithComponent("services")

	httpClient, err := auth.NewHTTPClient(ctx, auth.Config{
		CredentialsFile: cfg.OAuthCredentialsFile,
		TokenFile:       cfg.OAuthTokenFile,
		Scopes:          auth.DefaultScopes,
		Prompt:          os.Stderr,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to authorize with Google")
		return nil, fmt.Errorf("failed to authorize with Google. Check %s and delete %s to sign in again: %w",
			cfg.OAuthCredentialsFile, cfg.OAuthTokenFile, err)
	}

	s := &services{}

	s.gmail, err = gmail.NewGmailService(ctx, httpClient)
	if err != nil {
		return nil, err
	}
	s.sheets, err = sheets.NewSheetsService(ctx, httpClient, cfg.GoogleSheetURL)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("spreadsheet_id", s.sheets.SpreadsheetID()).Msg("Connected to Gmail and Sheets")

	if !withScreenshots {
		return s, nil
	}

	s.renderer = render.NewChromeRenderer(render.ChromeConfig{
		ExecPath: cfg.ChromeBin,
		Width:    cfg.RenderWidth,
		Height:   cfg.RenderHeight,
	})

	if err := s.buildExtractor(ctx, cfg); err != nil {
		s.Close(log)
		return nil, err
	}

	log.Debug().
		Str("extractor", cfg.HoursExtractor).
		Msg("Services created successfully")
	return s, nil
}

func (s *services) buildExtractor(ctx context.Context, cfg *config.Config) error {
	switch cfg.HoursExtractor {
	case config.ExtractorVision:
		extractor, err := hours.NewVisionExtractor(ctx, cloudClientOptions(cfg)...)
		if err != nil {
			return fmt.Errorf("failed to create Vision hours extractor: %w", err)
		}
		s.extractor = extractor
		s.closers = append(s.closers, extractor)
	case config.ExtractorDocumentAI:
		extractor, err := hours.NewDocumentAIExtractor(ctx, hours.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		}, cloudClientOptions(cfg)...)
		if err != nil {
			return fmt.Errorf("failed to create Document AI hours extractor: %w", err)
		}
		s.extractor = extractor
		s.closers = append(s.closers, extractor)
	default:
		s.extractor = hours.NewOpenAIExtractor(hours.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	}
	return nil
}

// cloudClientOptions selects service account credentials for the Cloud
// extractors, falling back to application default credentials.
func cloudClientOptions(cfg *config.Config) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.GoogleCredentials != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleCredentials)))
	} else if cfg.GoogleApplicationCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleApplicationCredentials))
	}
	return opts
}

// Dependencies returns the workflow collaborators. Nil renderer and
// extractor stay nil interfaces.
func (s *services) Dependencies() workflow.Dependencies {
	deps := workflow.Dependencies{
		Mailbox:     s.gmail,
		Spreadsheet: s.sheets,
		Drafter:     s.gmail,
	}
	if s.renderer != nil {
		deps.Renderer = s.renderer
	}
	if s.extractor != nil {
		deps.Extractor = s.extractor
	}
	return deps
}

func (s *services) Close(log zerolog.Logger) {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close client")
		}
	}
}
