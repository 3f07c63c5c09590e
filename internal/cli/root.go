// Package cli implements the nutrigen command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nutrigen",
	Short: "AI generation service for nutrition and training plans",
	Long: `nutrigen runs the credit-gated AI generation service behind the
nutrition and training apps: meal plans, exercise programs, meal
exchanges, snacks, and food image analysis.

Start the server with 'nutrigen serve', then drive it with the
generate, credits, and logs commands or over the HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Server address (default from config)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "User ID to act as")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
