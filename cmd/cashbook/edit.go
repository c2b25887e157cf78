package main

import (
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/tui"
	"github.com/Veraticus/cashbook/internal/tui/themes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [sheet]",
		Short: "Edit the ledger in an interactive grid",
		Long: `Open the ledger in the terminal. Move with the arrow keys, press enter to
edit a cell, o to insert a row below the cursor, d to delete it, and tab to
switch sheets. Computed columns and the dashboard update as you save.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kind := model.SheetAE
			if len(args) == 1 {
				sheet, err := lookupSheet(args[0])
				if err != nil {
					return err
				}
				kind = sheet.Kind
			}

			svc, store, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return tui.Run(ctx, svc,
				tui.WithSheet(kind),
				tui.WithTheme(themes.GetTheme(viper.GetString("tui.theme"))),
			)
		},
	}

	cmd.Flags().String("theme", "", "color theme (default, catppuccin-mocha)")
	_ = viper.BindPFlag("tui.theme", cmd.Flags().Lookup("theme"))

	return cmd
}
