package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Veraticus/cashbook/internal/backup"
	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Save or restore the whole ledger as JSON",
	}

	cmd.AddCommand(backupExportCmd())
	cmd.AddCommand(backupImportCmd())

	return cmd
}

func backupExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every row, formula override and summary to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			now := time.Now()
			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				if out == "" {
					out = fmt.Sprintf("cashbook-backup-%s.json", now.Format("20060102-150405"))
				}
				f, err := os.Create(out) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			snap, err := backup.Export(ctx, store, w, now)
			if err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
					"Backed up %d rows, %d formulas and %d summaries to %s",
					len(snap.Rows), len(snap.Formulas), len(snap.Summaries), out)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, or "-" for stdout (default: cashbook-backup-<time>.json)`)

	return cmd
}

func backupImportCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the ledger with a backup",
		Long: `Replace every row, formula override and summary with the contents of a
backup file. The dashboard is rebuilt from the restored rows afterwards.
A ledger that already has rows is only replaced with --force.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, store, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if !force {
				count, err := countRows(ctx, store)
				if err != nil {
					return err
				}
				if count > 0 {
					return fmt.Errorf("the ledger has %d rows; use --force to replace them", count)
				}
			}

			f, err := os.Open(args[0]) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to open backup: %w", err)
			}
			defer func() { _ = f.Close() }()

			snap, err := backup.Import(ctx, store, f)
			if err != nil {
				return err
			}
			days, err := svc.RebuildSummaries(ctx)
			if err != nil {
				return fmt.Errorf("restored, but rebuilding the dashboard failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Restored %d rows and %d formulas, dashboard covers %d days",
				len(snap.Rows), len(snap.Formulas), days)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace a ledger that already has rows")

	return cmd
}

func countRows(ctx context.Context, q service.Queries) (int, error) {
	total := 0
	for _, sheet := range model.EditableSheets() {
		rows, err := q.GetRows(ctx, sheet.Kind)
		if err != nil {
			return 0, err
		}
		total += len(rows)
	}
	return total, nil
}
