package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/config"
	"github.com/Veraticus/cashbook/internal/money"
	"github.com/Veraticus/cashbook/internal/ofx"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import bank statements",
	}

	ofxCmd := &cobra.Command{
		Use:   "ofx <files...>",
		Short: "Book OFX/QFX statement debits as expenses and withdrawals",
		Long: `Import debits from OFX or QFX statements exported by your bank. ATM and cash
debits become withdraw rows, everything else becomes expense rows, and
credits are skipped. Transactions already imported are recognised by their
statement id and skipped.`,
		Example: `  cashbook import ofx ~/Downloads/vcb_2024_03.ofx
  cashbook import ofx --dry-run ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}
	ofxCmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")

	cmd.AddCommand(ofxCmd)

	return cmd
}

// expandFiles resolves glob patterns, keeping plain paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := handler.HandleInterrupts(cmd.Context(), "Import", "Rows booked so far are kept; rerun to import the rest.")
	defer stop()

	parser := ofx.NewParser()
	var entries []ofx.Entry
	for _, path := range files {
		f, err := os.Open(path) // #nosec G304
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		parsed, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		slog.Info("Parsed statement", "file", filepath.Base(path), "transactions", len(parsed))
		entries = append(entries, parsed...)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No transactions found"))
		return nil
	}

	if dryRun {
		printEntries(cmd, entries)
		fmt.Fprintln(out, cli.FormatInfo("Dry run, nothing was saved"))
		return nil
	}

	svc, store, err := initLedger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	loc, err := config.Location()
	if err != nil {
		return err
	}

	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(entries), "Importing")
	result, err := ofx.NewImporter(svc, slog.Default()).WithLocation(loc).Import(ctx, entries, bar)
	_ = bar.Finish()
	if err != nil {
		common.LogError(err, "Import failed", common.Fields{"files": len(files), "imported": result.Total()})
		return err
	}
	common.LogInfo("Import finished", common.Fields{
		"files":       len(files),
		"expenses":    result.Expenses,
		"withdrawals": result.Withdrawals,
		"duplicates":  result.Duplicates,
	})

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d expenses and %d withdrawals", result.Expenses, result.Withdrawals)))
	if result.Duplicates > 0 {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Skipped %d already imported", result.Duplicates)))
	}
	if result.Credits > 0 {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Skipped %d credits", result.Credits)))
	}
	return nil
}

func printEntries(cmd *cobra.Command, entries []ofx.Entry) {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		kind := "debit"
		if !entry.IsDebit() {
			kind = "credit"
		}
		rows = append(rows, []string{
			entry.Date.Format(time.DateOnly),
			money.Format(entry.Amount, 2),
			kind,
			entry.Payee,
			entry.FitID,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Date", "Amount", "Type", "Payee", "ID"}, rows, map[int]bool{1: true}))
}
