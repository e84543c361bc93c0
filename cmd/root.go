// Package cmd defines the CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "career-mentor",
	Short: "Career Mentor - a streaming career-advice chat agent",
	Long: `Career Mentor serves a web chat interface backed by the GitHub Models
inference endpoint. The mentor suggests career paths, skill gaps, courses
and interview preparation, optionally grounding its advice with live web
search via Serper.

Running career-mentor without arguments starts the web server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
