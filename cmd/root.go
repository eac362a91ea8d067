package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"invoicer/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Invoicer - turns weekly timesheet emails into invoices",
	Long: `Invoicer reads the two latest weekly timesheet summary emails from Gmail,
creates the next numbered invoice tab in a Google Sheets workbook, fills in
the weeks, hours and submission date, exports the tab as PDF and saves a
Gmail draft with the timesheet screenshots and the PDF attached.

Running invoicer without a subcommand runs a full invoice cycle, the same
as "invoicer main".`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("No subcommand given, running invoice cycle")

		return runCycle(cmd, args)
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
	addCycleFlags(rootCmd)
}
