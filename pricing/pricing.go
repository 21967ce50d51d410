// Package pricing resolves the SOL price of supported tokens from their
// on-chain pricing sources, with caching and bounded concurrency in front of
// the RPC layer.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

var (
	ErrUnsupportedPricingSource = errors.New("pricing: unsupported pricing source")
	ErrQuoteNotFound            = errors.New("pricing: no quote for pricing source")
	ErrZeroSupply               = errors.New("pricing: token supply is zero")
)

// Quote is one resolved price: lamports per whole token at a slot.
type Quote struct {
	OneTokenAsSOL uint64
	Decimals      uint8
	Slot          uint64
}

// Source resolves quotes for pricing source references.
type Source interface {
	Resolve(ctx context.Context, ref fundtypes.PricingSourceRef) (Quote, error)
}

// StaticSource serves quotes from a fixed table. Used in tests and as an
// override layer for sources the RPC resolver does not decode.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[fundtypes.PricingSourceRef]Quote
}

func NewStaticSource() *StaticSource {
	return &StaticSource{quotes: map[fundtypes.PricingSourceRef]Quote{}}
}

func (s *StaticSource) Set(ref fundtypes.PricingSourceRef, quote Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[ref] = quote
}

func (s *StaticSource) Resolve(_ context.Context, ref fundtypes.PricingSourceRef) (Quote, error) {
	if ref.Kind == fundtypes.PricingSourceOneToOne || ref.Kind == fundtypes.PricingSourceNone {
		return Quote{OneTokenAsSOL: 1_000_000_000, Decimals: 9}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote, ok := s.quotes[ref]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, ref.Kind)
	}
	return quote, nil
}

// FallbackSource tries each source in order, moving on when one reports the
// reference unsupported or missing.
type FallbackSource []Source

func (f FallbackSource) Resolve(ctx context.Context, ref fundtypes.PricingSourceRef) (Quote, error) {
	var lastErr error
	for _, source := range f {
		quote, err := source.Resolve(ctx, ref)
		if err == nil {
			return quote, nil
		}
		if !errors.Is(err, ErrUnsupportedPricingSource) && !errors.Is(err, ErrQuoteNotFound) {
			return Quote{}, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrQuoteNotFound
	}
	return Quote{}, lastErr
}
