package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cliolabs/clio/db"
	"github.com/cliolabs/clio/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Long: `Applies all pending schema migrations to the database named by
DATABASE_URL. The server runs migrations on startup too; this command
exists for running them separately, e.g. in a deploy step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	logger := log.New(log.Config{})
	if err := db.Migrate(dbURL, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
