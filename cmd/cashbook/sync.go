package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/cashbook/internal/cli"
	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/config"
	"github.com/Veraticus/cashbook/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func syncCmd() *cobra.Command {
	var spreadsheetID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the ledger to Google Sheets",
		Long: `Push every sheet and the dashboard to a Google Sheets spreadsheet,
replacing its contents. The spreadsheet is taken from --spreadsheet-id,
then sheets.spreadsheet_id, then the one used by the previous sync; with
none of these a new spreadsheet is created.

Authenticate first with 'cashbook sync auth' or configure
sheets.service_account_path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadSheetsConfig()
			if err != nil {
				return fmt.Errorf("google sheets is not configured: %w", err)
			}
			if spreadsheetID == "" {
				spreadsheetID = cfg.SpreadsheetID
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx, stop := handler.HandleInterrupts(cmd.Context(), "Sync", "The spreadsheet may be partially written; run sync again.")
			defer stop()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			writer, err := sheets.NewWriter(ctx, *cfg, slog.Default())
			if err != nil {
				return err
			}

			state, err := sheets.NewSyncer(store, writer, slog.Default()).Sync(ctx, spreadsheetID)
			if err != nil {
				common.LogError(err, "Sync failed", common.Fields{"spreadsheet_id": spreadsheetID})
				return err
			}
			common.LogInfo("Ledger synced", common.Fields{"spreadsheet_id": state.ExternalID})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess("Ledger synced to Google Sheets"))
			fmt.Fprintln(out, cli.FormatInfo("https://docs.google.com/spreadsheets/d/"+state.ExternalID))
			return nil
		},
	}

	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet-id", "", "push to this spreadsheet")
	cmd.AddCommand(syncAuthCmd())

	return cmd
}

func syncAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Sheets",
		Long: `Run the OAuth2 consent flow in your browser and store the refresh token
in the config file.

Create OAuth client credentials (Desktop app) in the Google Cloud console
and pass them with --client-id and --client-secret, or set
sheets.client_id and sheets.client_secret.`,
		Args: cobra.NoArgs,
		RunE: runSyncAuth,
	}

	cmd.Flags().String("client-id", "", "OAuth2 client ID")
	cmd.Flags().String("client-secret", "", "OAuth2 client secret")

	return cmd
}

func runSyncAuth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	oauth := config.LoadOAuth2Config()

	// Flags override config
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		oauth.ClientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		oauth.ClientSecret = flagSecret
	}
	if oauth.ClientID == "" || oauth.ClientSecret == "" {
		return fmt.Errorf("OAuth2 credentials not found. Please set sheets.client_id and sheets.client_secret in config or use --client-id and --client-secret flags")
	}

	slog.Info("Starting Google Sheets authentication", "token_file", oauth.TokenFile)

	token, err := sheets.AuthenticateOAuth2Interactive(ctx, oauth)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	viper.Set("sheets.client_id", oauth.ClientID)
	viper.Set("sheets.client_secret", oauth.ClientSecret)
	viper.Set("sheets.refresh_token", token.RefreshToken)

	out := cmd.OutOrStdout()
	if err := saveConfig(); err != nil {
		slog.Warn("Failed to update config file with refresh token", "error", err)
		fmt.Fprintln(out, cli.FormatWarning("Could not save the refresh token to the config file"))
		fmt.Fprintf(out, "Add this to your config.yaml:\nsheets:\n  refresh_token: %q\n", token.RefreshToken)
		return nil
	}

	fmt.Fprintln(out, cli.FormatSuccess("Authentication successful"))
	fmt.Fprintln(out, cli.FormatInfo("Run 'cashbook sync' to push the ledger."))
	return nil
}

// saveConfig writes the current settings back to the config file in use,
// creating ~/.config/cashbook/config.yaml when there is none.
func saveConfig() error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configFile = filepath.Join(home, ".config", "cashbook", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0750); err != nil {
		return err
	}

	return viper.WriteConfigAs(configFile)
}
