package main

import (
	"fmt"

	"github.com/hyperengineering/pitchside/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Apply pending schema migrations to the configured database and report the resulting version.",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, db, err := loadStore()
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := store.MigrationVersion(db.DB(), db.Dialect())
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"driver":  cfg.Database.Driver,
			"version": version,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Database (%s) is at schema version %d.\n", cfg.Database.Driver, version)
	return nil
}
