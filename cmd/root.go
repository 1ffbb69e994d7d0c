// Package cmd defines the clio command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clio",
	Short: "clio - grounded chat service with canvas documents",
	Long: `clio serves a chat API whose answers are grounded in an external
document index. Canvas models additionally create, update, and review
documents through tools. Transcripts, documents, and suggestions are
persisted in PostgreSQL.

Running clio without a subcommand starts the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
