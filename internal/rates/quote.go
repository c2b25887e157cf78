// Package rates fetches the USDT to VND exchange rate from public market
// APIs, with caching, throttling and a persisted last known quote.
package rates

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Rate source errors.
var (
	ErrNoAdverts = errors.New("no P2P adverts returned")
	ErrNoPrice   = errors.New("no price returned")
)

// Quote is a price for one unit of Asset in Fiat.
type Quote struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Price     decimal.Decimal `json:"price"`
	Asset     string          `json:"asset"`
	Fiat      string          `json:"fiat"`
	Source    string          `json:"source"`
	Stale     bool            `json:"stale"`
}

// Pair returns the cache and store key of the quote, e.g. "USDT/VND".
func (q Quote) Pair() string {
	return pairKey(q.Asset, q.Fiat)
}

func pairKey(asset, fiat string) string {
	return asset + "/" + fiat
}

// Source fetches a live quote from one upstream.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Quote, error)
}
