package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"invoicer/internal/config"
	"invoicer/internal/errs"
	"invoicer/internal/logger"
	"invoicer/internal/workflow"
)

var mainCmd = &cobra.Command{
	Use:   "main",
	Short: "Run a full invoice cycle",
	Long: `Run a full invoice cycle:

  1. List the threads carrying the timesheet label in Gmail
  2. Pick the two chronologically earliest weeks among them
  3. Duplicate the highest "Invoice #N" tab as "Invoice #N+1"
  4. Screenshot the timesheet section of each email
  5. Extract the total hours from each screenshot (40 when extraction fails)
  6. Write invoice number, submission date, weeks and hours into the tab
  7. Export the tab as PDF into <output-dir>/Invoice #N+1/
  8. Save a Gmail draft with the screenshots and the PDF attached

With --skip-screenshot steps 4, 5 and 8 are skipped and every week is billed
with the default hours.

Required environment variables:
  GOOGLE_SHEET_URL - Spreadsheet URL or ID
  GOOGLE_OAUTH_CREDENTIALS_FILE - OAuth client secrets (default: credentials.json)
  OPENAI_API_KEY or OPENAI_BASE_URL - for the default openai hours extractor`,
	Example: `  # Run a full cycle
  invoicer main

  # Only create and fill the invoice tab and its PDF
  invoicer main --skip-screenshot

  # Print the cycle result as JSON
  invoicer main --json`,
	Args: cobra.NoArgs,
	RunE: runCycle,
}

func init() {
	rootCmd.AddCommand(mainCmd)
	addCycleFlags(mainCmd)
}

func addCycleFlags(c *cobra.Command) {
	c.Flags().Bool("skip-screenshot", false, "Skip screenshots, hours extraction and the email draft")
	c.Flags().Bool("json", false, "Print the cycle result as JSON")
	c.Flags().Int("timeout", 600, "Cycle timeout in seconds")
}

func runCycle(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("main")

	skipScreenshots, _ := cmd.Flags().GetBool("skip-screenshot")
	asJSON, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateCycle(!skipScreenshots)
	}
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	ctx, cancel := createCycleContext(timeoutSecs, log)
	defer cancel()

	services, err := newServices(ctx, cfg, !skipScreenshots)
	if err != nil {
		return err
	}
	defer services.Close(log)

	orch := workflow.New(services.Dependencies(), workflowOptions(cfg, skipScreenshots))

	result, runErr := orch.Run(ctx)
	if asJSON {
		if err := printResult(result); err != nil {
			return err
		}
	} else if runErr == nil {
		printSummary(result)
	}

	if runErr != nil {
		return explainCycleError(runErr, result)
	}
	return nil
}

// workflowOptions maps the configuration onto cycle options.
func workflowOptions(cfg *config.Config, skipScreenshots bool) workflow.Options {
	opts := workflow.DefaultOptions()
	opts.Label = cfg.GmailLabel
	opts.MaxThreads = cfg.GmailMaxThreads
	opts.OutputDir = cfg.OutputDir
	opts.SkipScreenshots = skipScreenshots
	opts.DefaultHours = cfg.DefaultHours
	opts.ExtractRequestsPerMinute = cfg.HoursRequestsPerMinute
	opts.Draft = workflow.DraftTemplate{
		From:    cfg.DraftFrom,
		To:      cfg.DraftTo,
		Cc:      cfg.DraftCc,
		Subject: cfg.DraftSubject,
		Body:    cfg.DraftBody,
	}
	return opts
}

// createCycleContext creates a context with timeout and signal handling
func createCycleContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling invoice cycle")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func printResult(result *workflow.Result) error {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	if _, err := os.Stdout.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}

func printSummary(result *workflow.Result) {
	fmt.Printf("Created %s (submitted %s)\n", result.Title, result.SubmissionDate)
	for _, h := range result.Hours {
		fmt.Printf("  %-20s %6.2f h (%s)\n", h.WeekRange, h.Hours, h.Source)
	}
	if result.PDFPath != "" {
		fmt.Printf("PDF:   %s\n", result.PDFPath)
	}
	if result.DraftID != "" {
		fmt.Printf("Draft: %s\n", result.DraftID)
	}
	for _, s := range result.Skipped {
		fmt.Printf("Skipped %s during %s: %s\n", s.Item, s.Stage, s.Reason)
	}
}

// explainCycleError turns a failed cycle into a user-facing error.
func explainCycleError(err error, result *workflow.Result) error {
	stage := "unknown"
	if result != nil {
		stage = result.Stage.String()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("invoice cycle timed out during %s, try increasing --timeout: %w", stage, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("invoice cycle was canceled during %s: %w", stage, err)
	case errors.Is(err, errs.ErrMissingData):
		return fmt.Errorf("invoice cycle stopped during %s, required data is missing: %w", stage, err)
	case errors.Is(err, errs.ErrExternalService):
		return fmt.Errorf("invoice cycle stopped during %s, a Google or model API call failed: %w", stage, err)
	default:
		return fmt.Errorf("invoice cycle failed during %s: %w", stage, err)
	}
}
