package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/export"
	"github.com/Veraticus/cashbook/internal/service"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sheets to CSV or Excel",
		Long: `Export the ledger. CSV writes one file per sheet; xlsx writes a single
workbook with a tab per sheet plus the dashboard.`,
	}

	cmd.AddCommand(exportCSVCmd())
	cmd.AddCommand(exportXLSXCmd())

	return cmd
}

// collectTables reads every sheet, or only the named one.
func collectTables(ctx context.Context, q service.Queries, sheetName string) ([]export.Table, error) {
	if sheetName == "" {
		return export.Collect(ctx, q)
	}
	sheet, err := lookupSheet(sheetName)
	if err != nil {
		return nil, err
	}
	table, err := export.CollectSheet(ctx, q, sheet.Kind)
	if err != nil {
		return nil, err
	}
	return []export.Table{table}, nil
}

func exportCSVCmd() *cobra.Command {
	var dir, sheetName string

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write each sheet as a CSV file",
		Example: `  cashbook export csv --dir ./out
  cashbook export csv --sheet expense --dir -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tables, err := collectTables(ctx, store, sheetName)
			if err != nil {
				return err
			}

			if dir == "-" {
				if len(tables) != 1 {
					return fmt.Errorf("writing to stdout needs --sheet")
				}
				return export.WriteCSV(cmd.OutOrStdout(), tables[0])
			}

			paths, err := export.WriteCSVDir(dir, tables)
			if err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Wrote "+path))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", `directory to write into, or "-" for stdout`)
	cmd.Flags().StringVar(&sheetName, "sheet", "", "export only this sheet")

	return cmd
}

func exportXLSXCmd() *cobra.Command {
	var out, sheetName string

	cmd := &cobra.Command{
		Use:   "xlsx",
		Short: "Write an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tables, err := collectTables(ctx, store, sheetName)
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("cashbook-%s.xlsx", time.Now().Format("20060102"))
			}
			if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			f, err := os.Create(out) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := export.WriteXLSX(f, tables); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Wrote %s (%d tabs)", out, len(tables))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "workbook path (default: cashbook-YYYYMMDD.xlsx)")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "export only this sheet")

	return cmd
}
