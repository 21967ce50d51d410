package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/jellydator/ttlcache/v3"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

const (
	defaultCacheTTL       = 30 * time.Second
	defaultMaxConcurrency = 8
	defaultMaxTries       = 3
)

type ProviderConfig struct {
	Logger *slog.Logger
	Source Source

	// CacheTTL bounds quote staleness between refreshes.
	CacheTTL       time.Duration
	MaxConcurrency int
	MaxTries       uint
}

func (c *ProviderConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Source == nil {
		return fmt.Errorf("source is required")
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}
	if c.MaxTries == 0 {
		c.MaxTries = defaultMaxTries
	}
	return nil
}

// Provider caches resolved quotes and fans fetches out over a bounded worker
// pool, retrying transient RPC failures with exponential backoff.
type Provider struct {
	log   *slog.Logger
	cfg   ProviderConfig
	cache *ttlcache.Cache[fundtypes.PricingSourceRef, Quote]
	pool  pond.ResultPool[Quote]
}

func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[fundtypes.PricingSourceRef, Quote](cfg.CacheTTL),
		ttlcache.WithDisableTouchOnHit[fundtypes.PricingSourceRef, Quote](),
	)
	go cache.Start()
	return &Provider{
		log:   cfg.Logger,
		cfg:   cfg,
		cache: cache,
		pool:  pond.NewResultPool[Quote](cfg.MaxConcurrency),
	}, nil
}

func (p *Provider) Close() {
	p.cache.Stop()
	p.pool.StopAndWait()
}

// Quote returns the cached quote for a pricing source, fetching through the
// worker pool on a miss.
func (p *Provider) Quote(ctx context.Context, ref fundtypes.PricingSourceRef) (Quote, error) {
	if item := p.cache.Get(ref); item != nil {
		return item.Value(), nil
	}
	quote, err := p.pool.SubmitErr(func() (Quote, error) {
		return p.fetch(ctx, ref)
	}).Wait()
	if err != nil {
		return Quote{}, err
	}
	p.cache.Set(ref, quote, ttlcache.DefaultTTL)
	return quote, nil
}

func (p *Provider) fetch(ctx context.Context, ref fundtypes.PricingSourceRef) (Quote, error) {
	return backoff.Retry(ctx, func() (Quote, error) {
		quote, err := p.cfg.Source.Resolve(ctx, ref)
		if err != nil {
			if isPermanent(err) {
				return Quote{}, backoff.Permanent(err)
			}
			p.log.Warn("quote fetch failed, retrying",
				slog.String("kind", ref.Kind.String()),
				slog.String("address", ref.Address.String()),
				slog.String("error", err.Error()),
			)
			return Quote{}, err
		}
		return quote, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(p.cfg.MaxTries),
	)
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedPricingSource) ||
		errors.Is(err, ErrQuoteNotFound) ||
		errors.Is(err, ErrZeroSupply)
}

// Refresh resolves all given references concurrently and primes the cache.
func (p *Provider) Refresh(ctx context.Context, refs []fundtypes.PricingSourceRef) error {
	group := p.pool.NewGroup()
	for _, ref := range refs {
		group.SubmitErr(func() (Quote, error) {
			quote, err := p.fetch(ctx, ref)
			if err != nil {
				return Quote{}, fmt.Errorf("refresh %s %s: %w", ref.Kind, ref.Address, err)
			}
			p.cache.Set(ref, quote, ttlcache.DefaultTTL)
			return quote, nil
		})
	}
	_, err := group.Wait()
	return err
}

// PriceFunc adapts the provider to the fund's price update hook.
func (p *Provider) PriceFunc(ctx context.Context) fundtypes.PriceFunc {
	return func(ref fundtypes.PricingSourceRef) (uint64, uint8, error) {
		quote, err := p.Quote(ctx, ref)
		if err != nil {
			return 0, 0, err
		}
		return quote.OneTokenAsSOL, quote.Decimals, nil
	}
}
