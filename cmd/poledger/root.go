package main

import (
	"log/slog"

	"github.com/dgallion1/poledger/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	noColor bool

	// env supplies flag defaults from the same variables the server reads.
	env = config.Load()

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "poledger",
	Short: "Extract PO ledger records from scanned PDF reports",
	Long: `poledger reads PO ledger reports page by page, reconstructs one record per
invoiced line item, and writes the results as Excel, CSV, or HTML.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		if noColor {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
