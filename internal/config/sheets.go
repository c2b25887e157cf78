package config

import (
	"github.com/Veraticus/cashbook/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or CASHBOOK_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()
	config.SpreadsheetName = ""

	config.ServiceAccountPath = ExpandPath(viper.GetString("sheets.service_account_path"))
	config.ClientID = viper.GetString("sheets.client_id")
	config.ClientSecret = viper.GetString("sheets.client_secret")
	config.RefreshToken = viper.GetString("sheets.refresh_token")
	config.SpreadsheetID = viper.GetString("sheets.spreadsheet_id")
	config.SpreadsheetName = viper.GetString("sheets.spreadsheet_name")
	if v := viper.GetString("sheets.timezone"); v != "" {
		config.TimeZone = v
	}
	if viper.IsSet("sheets.enable_formatting") {
		config.EnableFormatting = viper.GetBool("sheets.enable_formatting")
	}
	if v := viper.GetInt("sheets.batch_size"); v > 0 {
		config.BatchSize = v
	}

	config.LoadFromEnv()
	config.ServiceAccountPath = ExpandPath(config.ServiceAccountPath)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadOAuth2Config returns the client used by the interactive sign-in.
// The refreshed token is stored next to the config file by default.
func LoadOAuth2Config() sheets.OAuth2Config {
	config := sheets.Config{
		ClientID:     viper.GetString("sheets.client_id"),
		ClientSecret: viper.GetString("sheets.client_secret"),
	}
	config.LoadFromEnv()

	tokenFile := viper.GetString("sheets.token_file")
	if tokenFile == "" {
		tokenFile = "~/.config/cashbook/sheets-token.json"
	}

	return sheets.OAuth2Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenFile:    ExpandPath(tokenFile),
		CallbackAddr: viper.GetString("sheets.callback_addr"),
	}
}
