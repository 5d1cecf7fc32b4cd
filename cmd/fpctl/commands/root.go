// Package commands implements the fpctl CLI. Commands build the
// application context directly from the environment and talk to the
// terminals in-process; there is no client/server split.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/internal/cli/output"
	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/app"
	"github.com/abcfood/fingerprint-bridge/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "fpctl",
	Short: "Fingerprint Bridge - ZKTeco terminal management",
	Long: `Fingerprint Bridge connects ZKTeco fingerprint terminals to the HRIS,
object storage backups, and a REST API.

Configuration comes from the environment (optionally .env / .env.local);
the device fleet lives in the YAML file named by ZK_MACHINES_CONFIG.

Use "fpctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
	}
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fpctl %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"Output format (table, json, yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(initCheckCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(attendanceCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(fingerCmd)
	rootCmd.AddCommand(backupCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// newPrinter builds the printer for the chosen output format.
func newPrinter() (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format), nil
}

// loadSettings reads and validates configuration, then points the logger
// at the configured level and format.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
	}); err != nil {
		return nil, err
	}
	return settings, nil
}

// loadApp builds the full application context for one command run. The
// scheduler is constructed but not started; serve starts it explicitly.
func loadApp(ctx context.Context) (*app.App, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, settings)
}

// printResult renders a payload honoring -o. Payloads without a table
// shape fall back to JSON under the default format.
func printResult(data any) error {
	p, err := newPrinter()
	if err != nil {
		return err
	}
	return p.Print(data)
}
