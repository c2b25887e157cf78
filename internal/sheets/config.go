// Package sheets pushes the ledger into a Google Sheets spreadsheet.
package sheets

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
)

// DefaultSpreadsheetName is the title given to a spreadsheet the writer creates.
const DefaultSpreadsheetName = "Cashbook"

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		SpreadsheetName:  DefaultSpreadsheetName,
		TimeZone:         "Asia/Ho_Chi_Minh",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// LoadFromEnv fills unset credentials from the GOOGLE_SHEETS_* environment.
func (c *Config) LoadFromEnv() {
	setIfEmpty(&c.ClientID, "GOOGLE_SHEETS_CLIENT_ID")
	setIfEmpty(&c.ClientSecret, "GOOGLE_SHEETS_CLIENT_SECRET")
	setIfEmpty(&c.RefreshToken, "GOOGLE_SHEETS_REFRESH_TOKEN")
	setIfEmpty(&c.ServiceAccountPath, "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")
	setIfEmpty(&c.SpreadsheetID, "GOOGLE_SHEETS_SPREADSHEET_ID")
	setIfEmpty(&c.SpreadsheetName, "GOOGLE_SHEETS_SPREADSHEET_NAME")

	if c.SpreadsheetName == "" {
		c.SpreadsheetName = DefaultSpreadsheetName
	}
}

func setIfEmpty(field *string, env string) {
	if *field == "" {
		*field = os.Getenv(env)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("%w: no authentication method configured", common.ErrMissingConfig)
	}

	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("%w: multiple authentication methods configured; use either OAuth2 or service account", common.ErrInvalidConfig)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	return nil
}
