package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/config"
	"github.com/Veraticus/cashbook/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every command migrates the database on open; run this to create the
database ahead of time or to check its version.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")
	dbPath := config.DatabasePath()

	slog.Info("Starting database migration", "database", dbPath, "status_only", status)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	if status {
		version, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", cli.FolderIcon, dbPath)
		fmt.Fprintf(out, "Schema version: %d of %d\n", version, storage.ExpectedSchemaVersion)
		if version < storage.ExpectedSchemaVersion {
			fmt.Fprintln(out, cli.FormatWarning("Migrations pending, run 'cashbook migrate'"))
		} else {
			fmt.Fprintln(out, cli.FormatSuccess("Up to date"))
		}
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Database at schema version %d", storage.ExpectedSchemaVersion)))
	return nil
}
