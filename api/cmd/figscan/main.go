// Package main provides the figscan command-line scanner.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"figscan/api/internal/config"
	"figscan/api/internal/observability"
)

var (
	// Global flags
	logLevel   string
	outputJSON bool

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "figscan",
	Short: "Find and extract diagrams, charts, photos and maps from a document page",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel == "" {
			logLevel = cfg.LogLevel
		}
		format := "console"
		if outputJSON {
			format = "json"
		}
		logger = observability.NewLogger(logLevel, format, "figscan", os.Stderr)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default: LOG_LEVEL or info)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "log in JSON format")
	rootCmd.AddCommand(newScanCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
