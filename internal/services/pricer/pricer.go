// Package pricer contains the price source adapters. Each adapter talks to one
// external feed and normalizes its answer into a domain.PriceRecord.
package pricer

import (
	"context"

	"github.com/vadiminshakov/pricefeed/internal/domain"
	"golang.org/x/time/rate"
)

// Source is a single price feed.
type Source interface {
	// Name is a human readable identifier used in logs and metrics.
	Name() string
	// Kind is the fallback class of the feed.
	Kind() domain.Source
	// FetchPrice returns the current price of asset or an error.
	// Assets without a configured feed yield domain.ErrUnsupportedAsset.
	FetchPrice(ctx context.Context, asset string) (domain.PriceRecord, error)
}

// NewLimiter builds an outbound limiter for rps requests per second, nil means unlimited.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// wait blocks on the limiter if one is set.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
