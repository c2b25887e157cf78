package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/config"
	"github.com/Veraticus/cashbook/internal/money"
	"github.com/Veraticus/cashbook/internal/rates"
	"github.com/spf13/cobra"
)

// initRates builds the rate service over the configured quote store. When
// the store cannot be opened the service runs without a stale fallback.
func initRates() (*rates.Service, error) {
	cfg, err := config.LoadRatesConfig()
	if err != nil {
		return nil, err
	}

	opts := []rates.ServiceOption{rates.WithLogger(slog.Default())}
	if cfg.StorePath != "" {
		store, err := rates.OpenStore(cfg.StorePath)
		if err != nil {
			slog.Warn("Rate store unavailable, stale fallback disabled", "path", cfg.StorePath, "error", err)
		} else {
			opts = append(opts, rates.WithStore(store))
		}
	}

	return rates.NewService(cfg, opts...), nil
}

func rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate",
		Short: "Show the current USDT/VND rate",
		Long: `Fetch the USDT/VND rate from Binance P2P, falling back to CoinGecko. When
both are unreachable the last stored quote is shown and marked stale.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := initRates()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			quote, err := svc.Current(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle(quote.Pair()))
			fmt.Fprintf(out, "%s %s\n", cli.TableHeaderStyle.Render("Price:"), money.Format(quote.Price, 2))
			fmt.Fprintf(out, "%s %s\n", cli.TableHeaderStyle.Render("Source:"), quote.Source)
			fmt.Fprintf(out, "%s %s\n", cli.TableHeaderStyle.Render("Fetched:"), quote.FetchedAt.Local().Format(time.DateTime))
			if quote.Stale {
				fmt.Fprintln(out, cli.FormatWarning("Upstream unavailable, showing the last stored rate"))
			}
			return nil
		},
	}
}
