package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/spf13/cobra"
)

func formulasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formulas",
		Short: "Show and override computed columns",
		Long: `Every computed column has a built-in formula. Overrides apply to all rows
of the sheet and are recomputed immediately.

Formulas use column keys as variables, e.g. "usdt * rate" or
"net / max(chia_count, 1)".`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [sheet]",
		Short: "List formulas",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFormulasList,
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "set <sheet> <field> <expression...>",
		Short:   "Override a computed column",
		Example: `  cashbook formulas set ae net "vnd - fee * 2"`,
		Args:    cobra.MinimumNArgs(3),
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

			changed, err := svc.SetFormula(ctx, sheet.Kind, args[1], strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated %s.%s, %d rows recomputed", sheet.Kind, args[1], changed)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <sheet> <field>",
		Short: "Restore the built-in formula",
		Args:  cobra.ExactArgs(2),
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

			changed, err := svc.ResetFormula(ctx, sheet.Kind, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Reset %s.%s, %d rows recomputed", sheet.Kind, args[1], changed)))
			return nil
		},
	})

	return cmd
}

func runFormulasList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sheets := model.EditableSheets()
	if len(args) == 1 {
		sheet, err := lookupSheet(args[0])
		if err != nil {
			return err
		}
		sheets = []model.Sheet{sheet}
	}

	svc, store, err := initLedger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var rows [][]string
	for _, sheet := range sheets {
		formulas, err := svc.Formulas(ctx, sheet.Kind)
		if err != nil {
			return err
		}
		for _, f := range formulas {
			origin := "custom"
			if f.IsDefault {
				origin = "default"
			}
			rows = append(rows, []string{string(f.Sheet), f.Field, f.Expression, origin})
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Sheet", "Field", "Formula", "Source"}, rows, nil))
	return nil
}
