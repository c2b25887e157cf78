package main

import (
	"fmt"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/spf13/cobra"
)

func rowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "List and edit ledger rows",
		Long: `List and edit the rows of a sheet.

Sheets: ae, ae-qt, exchange, withdraw, expense and the read-only dashboard.
Rows are addressed by their number in the listing or by their id.`,
	}

	cmd.AddCommand(rowsListCmd())
	cmd.AddCommand(rowsAddCmd())
	cmd.AddCommand(rowsSetCmd())
	cmd.AddCommand(rowsDeleteCmd())

	return cmd
}

func lookupSheet(name string) (model.Sheet, error) {
	return model.LookupSheet(model.SheetKind(name))
}

func rowsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list <sheet>",
		Aliases: []string{"ls"},
		Short:   "Show every row of a sheet",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := lookupSheet(args[0])
			if err != nil {
				return err
			}

			svc, store, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if sheet.ReadOnly() {
				summaries, err := svc.Summaries(ctx, "", "")
				if err != nil {
					return err
				}
				return printSummaries(out, summaries)
			}

			rows, err := svc.Rows(ctx, sheet.Kind)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, cli.FormatInfo(sheet.Title+" has no rows yet"))
				return nil
			}
			printRows(out, sheet, rows)
			return nil
		},
	}
}

func rowsAddCmd() *cobra.Command {
	var at int

	cmd := &cobra.Command{
		Use:   "add <sheet> [field=value...]",
		Short: "Add a row, optionally filling cells",
		Long: `Add a row to a sheet. With --at the row is inserted before the given
row number, otherwise it is appended. Field values are parsed like typed
input: "1.250.000", "25,5" and "10/3/2024" are all accepted.`,
		Example: `  cashbook rows add ae customer=Lan usdt=100 rate=25950 fee=0
  cashbook rows add expense --at 1 item=Coffee amount=45000`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := lookupSheet(args[0])
			if err != nil {
				return err
			}
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			svc, store, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			index := -1
			if at > 0 {
				index = at - 1
			}
			update, err := svc.InsertRowWithCells(ctx, sheet.Kind, index, values)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				printRows(cmd.OutOrStdout(), sheet, []model.Row{*update.Row})
				return nil
			}
			printUpdate(cmd.OutOrStdout(), sheet, update)
			return nil
		},
	}

	cmd.Flags().IntVar(&at, "at", 0, "insert before this row number (default: append)")

	return cmd
}

func rowsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <sheet> <row> field=value...",
		Short: "Set cells of a row and recompute its formulas",
		Long: `Set one or more cells of a row. Computed columns cannot be set; an empty
value clears the cell.`,
		Example: `  cashbook rows set ae 3 usdt=120
  cashbook rows set ae-qt 1a2b3c4d chia="Lan, Minh" note=`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := lookupSheet(args[0])
			if err != nil {
				return err
			}
			values, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			svc, store, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			row, err := resolveRow(ctx, svc, sheet.Kind, args[1])
			if err != nil {
				return err
			}
			update, err := svc.SetCells(ctx, sheet.Kind, row.ID, values)
			if err != nil {
				return err
			}
			printUpdate(cmd.OutOrStdout(), sheet, update)
			return nil
		},
	}
}

func rowsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <sheet> <row>...",
		Aliases: []string{"rm"},
		Short:   "Delete rows",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := lookupSheet(args[0])
			if err != nil {
				return err
			}

			svc, store, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			// Resolve every reference first so row numbers refer to the
			// listing the user saw.
			ids := make([]string, 0, len(args)-1)
			for _, ref := range args[1:] {
				row, err := resolveRow(ctx, svc, sheet.Kind, ref)
				if err != nil {
					return err
				}
				ids = append(ids, row.ID)
			}
			for _, id := range ids {
				if err := svc.DeleteRow(ctx, sheet.Kind, id); err != nil {
					return err
				}
			}

			noun := "row"
			if len(ids) > 1 {
				noun = "rows"
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted %d %s from %s", len(ids), noun, sheet.Title)))
			return nil
		},
	}
}
