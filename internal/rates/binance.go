package rates

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/shopspring/decimal"
)

// DefaultBinanceURL is the public Binance P2P endpoint.
const DefaultBinanceURL = "https://p2p.binance.com"

const binanceSearchPath = "/bapi/c2c/v2/friendly/c2c/adv/search"

// BinanceP2P quotes the average price of the first adverts on the Binance
// peer-to-peer market.
type BinanceP2P struct {
	client     *http.Client
	now        func() time.Time
	baseURL    string
	asset      string
	fiat       string
	tradeType  string
	sampleSize int
}

// NewBinanceP2P creates a Binance P2P source.
func NewBinanceP2P(cfg Config) *BinanceP2P {
	cfg = cfg.withDefaults()
	return &BinanceP2P{
		client:     newHTTPClient(cfg.Timeout),
		now:        time.Now,
		baseURL:    strings.TrimRight(cfg.BinanceURL, "/"),
		asset:      cfg.Asset,
		fiat:       cfg.Fiat,
		tradeType:  cfg.TradeType,
		sampleSize: cfg.SampleSize,
	}
}

// Name identifies the source in quotes and logs.
func (b *BinanceP2P) Name() string {
	return "binance-p2p"
}

type binanceSearchRequest struct {
	PublisherType *string  `json:"publisherType"`
	Asset         string   `json:"asset"`
	Fiat          string   `json:"fiat"`
	TradeType     string   `json:"tradeType"`
	PayTypes      []string `json:"payTypes"`
	Page          int      `json:"page"`
	Rows          int      `json:"rows"`
}

type binanceSearchResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    []struct {
		Adv struct {
			Price string `json:"price"`
		} `json:"adv"`
	} `json:"data"`
	Success bool `json:"success"`
}

// Fetch returns the mean price of the first adverts.
func (b *BinanceP2P) Fetch(ctx context.Context) (Quote, error) {
	request := binanceSearchRequest{
		Asset:     b.asset,
		Fiat:      b.fiat,
		TradeType: b.tradeType,
		PayTypes:  []string{},
		Page:      1,
		Rows:      b.sampleSize,
	}

	var response binanceSearchResponse
	if err := doJSON(ctx, b.client, http.MethodPost, b.baseURL+binanceSearchPath, request, &response); err != nil {
		return Quote{}, fmt.Errorf("binance p2p: %w", err)
	}
	if !response.Success {
		return Quote{}, common.Permanent(fmt.Errorf("binance p2p: %w: code %s %s", ErrNoAdverts, response.Code, response.Message))
	}

	var prices []decimal.Decimal
	for _, item := range response.Data {
		if len(prices) == b.sampleSize {
			break
		}
		price, err := decimal.NewFromString(item.Adv.Price)
		if err != nil || !price.IsPositive() {
			continue
		}
		prices = append(prices, price)
	}
	if len(prices) == 0 {
		return Quote{}, common.Permanent(fmt.Errorf("binance p2p: %w", ErrNoAdverts))
	}

	return Quote{
		Asset:     b.asset,
		Fiat:      b.fiat,
		Price:     decimal.Avg(prices[0], prices[1:]...).Round(2),
		Source:    b.Name(),
		FetchedAt: b.now().UTC(),
	}, nil
}
