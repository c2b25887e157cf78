package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/shopspring/decimal"
)

// DefaultCoinGeckoURL is the public CoinGecko API.
const DefaultCoinGeckoURL = "https://api.coingecko.com"

// coinIDs maps asset symbols to CoinGecko coin ids.
var coinIDs = map[string]string{
	"USDT": "tether",
	"USDC": "usd-coin",
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
}

// CoinGecko quotes the spot price from the CoinGecko simple price API.
type CoinGecko struct {
	client  *http.Client
	now     func() time.Time
	baseURL string
	asset   string
	fiat    string
}

// NewCoinGecko creates a CoinGecko source.
func NewCoinGecko(cfg Config) *CoinGecko {
	cfg = cfg.withDefaults()
	return &CoinGecko{
		client:  newHTTPClient(cfg.Timeout),
		now:     time.Now,
		baseURL: strings.TrimRight(cfg.CoinGeckoURL, "/"),
		asset:   cfg.Asset,
		fiat:    cfg.Fiat,
	}
}

// Name identifies the source in quotes and logs.
func (c *CoinGecko) Name() string {
	return "coingecko"
}

// Fetch returns the current spot price.
func (c *CoinGecko) Fetch(ctx context.Context) (Quote, error) {
	id, ok := coinIDs[strings.ToUpper(c.asset)]
	if !ok {
		return Quote{}, common.Permanent(fmt.Errorf("coingecko: unsupported asset %q", c.asset))
	}
	currency := strings.ToLower(c.fiat)

	query := url.Values{}
	query.Set("ids", id)
	query.Set("vs_currencies", currency)
	endpoint := c.baseURL + "/api/v3/simple/price?" + query.Encode()

	var response map[string]map[string]decimal.Decimal
	if err := doJSON(ctx, c.client, http.MethodGet, endpoint, nil, &response); err != nil {
		return Quote{}, fmt.Errorf("coingecko: %w", err)
	}

	price, ok := response[id][currency]
	if !ok || !price.IsPositive() {
		return Quote{}, common.Permanent(fmt.Errorf("coingecko: %w for %s/%s", ErrNoPrice, id, currency))
	}

	return Quote{
		Asset:     c.asset,
		Fiat:      c.fiat,
		Price:     price,
		Source:    c.Name(),
		FetchedAt: c.now().UTC(),
	}, nil
}
