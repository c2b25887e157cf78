package rates

import "time"

// Config configures the rate sources and the service around them.
type Config struct {
	BinanceURL        string
	CoinGeckoURL      string
	Asset             string
	Fiat              string
	TradeType         string
	StorePath         string
	SampleSize        int
	RequestsPerMinute int
	CacheTTL          time.Duration
	Timeout           time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BinanceURL:        DefaultBinanceURL,
		CoinGeckoURL:      DefaultCoinGeckoURL,
		Asset:             "USDT",
		Fiat:              "VND",
		TradeType:         "SELL",
		SampleSize:        5,
		RequestsPerMinute: 30,
		CacheTTL:          time.Minute,
		Timeout:           10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BinanceURL == "" {
		c.BinanceURL = d.BinanceURL
	}
	if c.CoinGeckoURL == "" {
		c.CoinGeckoURL = d.CoinGeckoURL
	}
	if c.Asset == "" {
		c.Asset = d.Asset
	}
	if c.Fiat == "" {
		c.Fiat = d.Fiat
	}
	if c.TradeType == "" {
		c.TradeType = d.TradeType
	}
	if c.SampleSize <= 0 {
		c.SampleSize = d.SampleSize
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
