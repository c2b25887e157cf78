package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/rates"
	"github.com/spf13/viper"
)

// Defaults used when neither the config file nor the environment sets a key.
const (
	DefaultDatabasePath = "~/.local/share/cashbook/cashbook.db"
	DefaultRateStore    = "~/.local/share/cashbook/rates.db"
	DefaultTimezone     = "Asia/Ho_Chi_Minh"
	DefaultListenAddr   = ":8080"
	DefaultCertDir      = "~/.local/share/cashbook/tls"
)

// SetDefaults registers every default with viper.
func SetDefaults() {
	viper.SetDefault("database.path", DefaultDatabasePath)
	viper.SetDefault("ledger.timezone", DefaultTimezone)
	viper.SetDefault("server.listen", DefaultListenAddr)
	viper.SetDefault("server.cert_dir", DefaultCertDir)
	viper.SetDefault("rates.store_path", DefaultRateStore)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// DatabasePath returns the expanded SQLite path.
func DatabasePath() string {
	path := viper.GetString("database.path")
	if path == "" {
		path = DefaultDatabasePath
	}
	return ExpandPath(path)
}

// ListenAddr returns the HTTP listen address.
func ListenAddr() string {
	if addr := viper.GetString("server.listen"); addr != "" {
		return addr
	}
	return DefaultListenAddr
}

// CertDir returns where the self-signed HTTPS certificate is kept.
func CertDir() string {
	dir := viper.GetString("server.cert_dir")
	if dir == "" {
		dir = DefaultCertDir
	}
	return ExpandPath(dir)
}

// Location returns the ledger time zone used to stamp new rows.
func Location() (*time.Location, error) {
	name := viper.GetString("ledger.timezone")
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger.timezone %q: %w", common.ErrInvalidConfig, name, err)
	}
	return loc, nil
}

// LoadRatesConfig reads the rates.* keys over the built-in defaults.
func LoadRatesConfig() (rates.Config, error) {
	config := rates.DefaultConfig()

	if v := viper.GetString("rates.binance_url"); v != "" {
		config.BinanceURL = v
	}
	if v := viper.GetString("rates.coingecko_url"); v != "" {
		config.CoinGeckoURL = v
	}
	if v := viper.GetString("rates.asset"); v != "" {
		config.Asset = v
	}
	if v := viper.GetString("rates.fiat"); v != "" {
		config.Fiat = v
	}
	if v := viper.GetString("rates.trade_type"); v != "" {
		config.TradeType = v
	}
	if v := viper.GetInt("rates.sample_size"); v != 0 {
		config.SampleSize = v
	}
	if v := viper.GetInt("rates.requests_per_minute"); v != 0 {
		config.RequestsPerMinute = v
	}
	if v := viper.GetDuration("rates.cache_ttl"); v != 0 {
		config.CacheTTL = v
	}
	if v := viper.GetDuration("rates.timeout"); v != 0 {
		config.Timeout = v
	}
	config.StorePath = ExpandPath(viper.GetString("rates.store_path"))

	switch {
	case config.SampleSize < 0:
		return config, fmt.Errorf("%w: rates.sample_size must be positive", common.ErrInvalidConfig)
	case config.RequestsPerMinute < 0:
		return config, fmt.Errorf("%w: rates.requests_per_minute must be positive", common.ErrInvalidConfig)
	case config.CacheTTL < 0:
		return config, fmt.Errorf("%w: rates.cache_ttl cannot be negative", common.ErrInvalidConfig)
	}
	switch config.TradeType {
	case "BUY", "SELL":
	default:
		return config, fmt.Errorf("%w: rates.trade_type must be BUY or SELL, got %q", common.ErrInvalidConfig, config.TradeType)
	}

	return config, nil
}
