package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	"github.com/Veraticus/cashbook/internal/service"
)

// Service serves the current rate from the first healthy source, caching
// live quotes and falling back to the last stored quote.
type Service struct {
	cache   *quoteCache
	limiter *rateLimiter
	store   *Store
	logger  *slog.Logger
	asset   string
	fiat    string
	sources []Source
	retry   service.RetryOptions
	fetchMu sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSources replaces the default Binance then CoinGecko chain.
func WithSources(sources ...Source) ServiceOption {
	return func(s *Service) {
		s.sources = sources
	}
}

// WithStore persists quotes for stale fallback.
func WithStore(store *Store) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithRetry sets the retry policy for each source.
func WithRetry(opts service.RetryOptions) ServiceOption {
	return func(s *Service) {
		s.retry = opts
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a rate service.
func NewService(cfg Config, opts ...ServiceOption) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cache:   newQuoteCache(cfg.CacheTTL),
		limiter: newRateLimiter(cfg.RequestsPerMinute),
		logger:  slog.Default(),
		asset:   cfg.Asset,
		fiat:    cfg.Fiat,
		sources: []Source{NewBinanceP2P(cfg), NewCoinGecko(cfg)},
		retry: service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the rate, served from cache while fresh. When every
// source fails the last stored quote is returned with Stale set.
func (s *Service) Current(ctx context.Context) (Quote, error) {
	key := pairKey(s.asset, s.fiat)
	if quote, ok := s.cache.get(key); ok {
		return quote, nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	// Another caller may have refreshed the cache while we waited.
	if quote, ok := s.cache.get(key); ok {
		return quote, nil
	}

	quote, err := s.fetch(ctx)
	if err == nil {
		s.cache.set(key, quote)
		if s.store != nil {
			if saveErr := s.store.Save(quote); saveErr != nil {
				s.logger.Warn("Failed to persist quote", "error", saveErr)
			}
		}
		return quote, nil
	}

	if s.store != nil {
		if last, lastErr := s.store.Last(s.asset, s.fiat); lastErr == nil {
			last.Stale = true
			s.logger.Warn("Serving stale rate", "source", last.Source, "fetched_at", last.FetchedAt, "error", err)
			return last, nil
		}
	}
	return Quote{}, fmt.Errorf("%w: %w", common.ErrRateUnavailable, err)
}

// Refresh drops the cached quote so the next Current call hits upstream.
func (s *Service) Refresh() {
	s.cache.clear()
}

func (s *Service) fetch(ctx context.Context) (Quote, error) {
	var errs []error
	for _, source := range s.sources {
		if err := s.limiter.wait(ctx); err != nil {
			return Quote{}, err
		}

		var quote Quote
		err := common.WithRetry(ctx, func() error {
			var fetchErr error
			quote, fetchErr = source.Fetch(ctx)
			return fetchErr
		}, s.retry)
		if err == nil {
			s.logger.Debug("Fetched rate", "source", source.Name(), "price", quote.Price.String())
			return quote, nil
		}

		s.logger.Warn("Rate source failed", "source", source.Name(), "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Quote{}, errors.New("no rate sources configured")
	}
	return Quote{}, errors.Join(errs...)
}

// Close releases the limiter and the quote store.
func (s *Service) Close() error {
	s.limiter.Close()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
