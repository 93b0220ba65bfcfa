// Package cli wires the blackice commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "blackice",
	Short: "Safety-gated control plane for AI desktop automation",
	Long:  "Mediates every AI-initiated desktop action — clicks, keystrokes, screenshots, element lookup — through permission, activity, and content gates before any synthetic input reaches the display.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.blackice/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
