package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/ledger"
	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/money"
	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "summary [date]",
		Short: "Show the dashboard",
		Long: `Show the daily dashboard: income, exchanges, withdrawals, expenses and the
running balance. With a date only that day is shown; --from and --to bound
the range. Dates accept the same forms as cell input (2024-03-10, 10/3/2024).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, store, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var summaries []model.DailySummary
			title := "Dashboard"
			if len(args) == 1 {
				date, err := ledger.ParseDate(args[0])
				if err != nil {
					return err
				}
				summary, err := svc.Summary(ctx, date)
				if err != nil {
					if ledger.IsNotFound(err) {
						fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing recorded on "+date))
						return nil
					}
					return err
				}
				summaries = []model.DailySummary{*summary}
				title += " " + date
			} else {
				summaries, err = svc.Summaries(ctx, from, to)
				if err != nil {
					return err
				}
			}

			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No activity in range"))
				return nil
			}
			if from != "" || to != "" {
				title += fmt.Sprintf(" %s to %s", summaries[0].Date, summaries[len(summaries)-1].Date)
			}

			table, err := summaryTable(summaries)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.ChartIcon+" "+title, table))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to include")
	cmd.Flags().StringVar(&to, "to", "", "last day to include")

	return cmd
}

func splitsCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "splits",
		Short: "Show each participant's share of income",
		Long: `Total the share column of AE and AE-QT rows per name listed in their chia
column.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, store, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			splits, err := svc.Splits(ctx, from, to)
			if err != nil {
				return err
			}
			if len(splits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No shared income in range"))
				return nil
			}

			rows := make([][]string, 0, len(splits))
			for _, split := range splits {
				rows = append(rows, []string{split.Name, strconv.Itoa(split.Rows), money.Format(split.Total, 0)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Name", "Rows", "Share"}, rows, map[int]bool{1: true, 2: true}))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to include")
	cmd.Flags().StringVar(&to, "to", "", "last day to include")

	return cmd
}
