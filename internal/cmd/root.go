// Package cmd is the mdacmectl CLI, adapted from the teacher's
// internal/cmd/root.go layout (one struct-per-subcommand, each wrapping
// a *cobra.Command field, wired into rootCmd in Execute).
package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/config"
	"github.com/mdacme/mdacme/internal/logging"
	"github.com/mdacme/mdacme/internal/metrics"
)

var globalConfig config.Config
var metricsPort int

var rootCmd = &cobra.Command{
	Use:          "mdacmectl",
	Short:        "Manage ACME-issued certificates for a set of managed domains",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if metricsPort == 0 {
			return nil
		}
		handler := metrics.Enable()
		go http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), handler)
		return nil
	},
}

// Execute wires every subcommand into rootCmd and runs it.
func Execute() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&globalConfig.BaseDir, "base-dir", "", "Store base directory (default: XDG state home)")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "Publish metrics on the specified port (default zero to disable)")

	rootCmd.AddCommand(newAddCommand().cmd)
	rootCmd.AddCommand(newListCommand().cmd)
	rootCmd.AddCommand(newUpdateCommand().cmd)
	rootCmd.AddCommand(newDriveCommand().cmd)
	rootCmd.AddCommand(newSyncCommand().cmd)
	rootCmd.AddCommand(newNewregCommand().cmd)
	rootCmd.AddCommand(newDelregCommand().cmd)
	rootCmd.AddCommand(newAgreeCommand().cmd)
	rootCmd.AddCommand(newAuthzCommand().cmd)
	rootCmd.AddCommand(newValidateCommand().cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func rootLogger() *slog.Logger {
	return logging.New(slog.LevelInfo, os.Stderr)
}
