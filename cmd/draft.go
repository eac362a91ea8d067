package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"invoicer/internal/auth"
	"invoicer/internal/config"
	"invoicer/internal/gmail"
	"invoicer/internal/logger"
	"invoicer/internal/workflow"
)

var draftLatestCmd = &cobra.Command{
	Use:   "draft-latest",
	Short: "Create the email draft for the latest invoice folder",
	Long: `Create a Gmail draft for the highest-numbered "Invoice #N" folder in the
output directory, attaching its timesheet screenshots and its PDF.

Use this after "invoicer main --skip-screenshot", or when a cycle failed
while saving its draft. Neither the timesheet emails nor the spreadsheet
are touched.`,
	Example: `  # Draft the email for the latest invoice
  invoicer draft-latest

  # Print the result as JSON
  invoicer draft-latest --json`,
	Args: cobra.NoArgs,
	RunE: runDraftLatest,
}

func init() {
	rootCmd.AddCommand(draftLatestCmd)

	draftLatestCmd.Flags().Bool("json", false, "Print the result as JSON")
	draftLatestCmd.Flags().Int("timeout", 120, "Timeout in seconds")
}

func runDraftLatest(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("draft-latest")

	asJSON, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	ctx, cancel := createCycleContext(timeoutSecs, log)
	defer cancel()

	httpClient, err := auth.NewHTTPClient(ctx, auth.Config{
		CredentialsFile: cfg.OAuthCredentialsFile,
		TokenFile:       cfg.OAuthTokenFile,
		Scopes:          auth.DefaultScopes,
		Prompt:          os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to authorize with Google: %w", err)
	}

	gmailService, err := gmail.NewGmailService(ctx, httpClient)
	if err != nil {
		return err
	}

	orch := workflow.New(workflow.Dependencies{Drafter: gmailService}, workflowOptions(cfg, false))

	result, runErr := orch.DraftLatest(ctx)
	if asJSON {
		if err := printResult(result); err != nil {
			return err
		}
	} else if runErr == nil {
		fmt.Printf("Draft %s created for %s with %d attachments\n",
			result.DraftID, result.Title, len(result.Attachments()))
	}

	if runErr != nil {
		return explainCycleError(runErr, result)
	}
	return nil
}
