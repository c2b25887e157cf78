package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/cashbook/internal/certs"
	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/config"
	"github.com/Veraticus/cashbook/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long: `Serve the JSON API used by the web front end: sheets, rows, cell edits,
formulas, the dashboard, splits, exports and the live exchange rate.

With --tls the API is served over HTTPS using a self-signed certificate
kept in server.cert_dir. Pass the addresses other devices use to reach
this machine with --tls-host so the certificate covers them.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "address to listen on (default: server.listen or :8080)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSlice("tls-host", nil, "extra host name or IP the certificate must cover")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("server.tls_hosts", cmd.Flags().Lookup("tls-host"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	svc, store, err := initLedger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	quotes, err := initRates()
	if err != nil {
		return err
	}
	defer func() { _ = quotes.Close() }()

	if viper.GetString("logging.level") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := slog.Default()
	router := server.SetupRouter(server.NewAPI(svc, store, quotes), logger)
	srv := server.New(config.ListenAddr(), router, logger)

	if viper.GetBool("server.tls") {
		manager := certs.NewFileManager(config.CertDir())
		cert, err := manager.GetOrCreateCertificate(viper.GetStringSlice("server.tls_hosts")...)
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		srv.UseTLS(cert)
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Trust "+manager.CertFile()+" on devices that connect"))
	}

	if err := srv.Run(ctx); err != nil {
		common.LogError(err, "Server stopped", common.Fields{"addr": config.ListenAddr()})
		return err
	}
	return nil
}
